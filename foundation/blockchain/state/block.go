package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The selected transactions leave the
// mempool for the search and go back if the block does not make it onto the
// chain. The interrupted function is polled on every nonce attempt.
func (s *State) MineNewBlock(ctx context.Context, miner database.Address, interrupted func() bool) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: select transactions")

	s.mu.Lock()
	selected := s.selectForBlock(s.genesis.BlockLimitation)
	prevBlock := s.db.LatestBlock()
	difficulty := s.difficulty
	reward := s.genesis.MinerReward
	s.mu.Unlock()

	trans := make([]database.Tx, len(selected))
	for i, tx := range selected {
		trans[i] = tx.Tx
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: difficulty[%d]: trans[%d]", difficulty, len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be
	// interrupted or cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		Miner:       miner,
		MinerReward: reward,
		Difficulty:  difficulty,
		PrevBlock:   prevBlock,
		Trans:       trans,
		Interrupted: interrupted,
		EvHandler:   s.evHandler,
	})
	if err != nil {
		s.Requeue(selected)
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.validateUpdateDatabase(block); err != nil {
		s.Requeue(selected)
		return database.Block{}, err
	}

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain. A search in
// progress on the old tip is interrupted.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.PreviousHash, block.Hash, len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash)

	if err := s.validateUpdateDatabase(block); err != nil {
		return err
	}

	s.evHandler("state: ProcessProposedBlock: signal mining to stop")
	s.Worker.SignalInterrupt()

	return nil
}

// Append validates the block as the next block of the chain and adds it.
func (s *State) Append(block database.Block) error {
	return s.validateUpdateDatabase(block)
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against the
// consensus rules. If the block passes, then the block is added to the chain,
// the included transactions leave the mempool and the difficulty is
// retargeted when due.
func (s *State) validateUpdateDatabase(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate block")

	if err := block.ValidateBlock(s.db.LatestBlock(), s.difficulty, s.genesis.MinerReward, s.evHandler); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: write to chain")

	s.db.Write(block)

	s.evHandler("state: validateUpdateDatabase: remove from mempool")

	for _, tx := range block.Transactions {
		if !s.mempool.Delete(tx.ID()) {
			s.evHandler("state: validateUpdateDatabase: tx[%s] not found in mempool", tx)
		}
	}

	s.adjustDifficulty()

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockTransJSON, err := json.Marshal(block.Transactions)
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`state: block: {"hash":%q,"previous_hash":%q,"difficulty":%d,"miner":%q,"trans":%s}`, block.Hash, block.PreviousHash, block.Difficulty, string(block.Miner), string(blockTransJSON))
}
