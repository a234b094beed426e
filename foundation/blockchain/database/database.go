// Package database handles all the lower level support for maintaining the
// blockchain in memory and deriving account balances from it.
package database

import (
	"errors"
	"fmt"
	"sync"
)

// ChainError reports the first block that fails chain verification.
type ChainError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (ce *ChainError) Error() string {
	return fmt.Sprintf("block[%d]: %s", ce.Index, ce.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (ce *ChainError) Unwrap() error {
	return ce.Err
}

// =============================================================================

// Database manages the ordered chain of blocks. Balances are derived from the
// chain on demand and never stored.
type Database struct {
	mu       sync.RWMutex
	blocks   []Block
	included map[string]struct{}
}

// New constructs a new database that starts with the specified genesis block.
func New(genesis Block) *Database {
	db := Database{
		blocks:   []Block{genesis},
		included: make(map[string]struct{}),
	}
	db.index(genesis)

	return &db
}

// Write adds a new block to the end of the chain. Validation is the job of
// the caller.
func (db *Database) Write(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = append(db.blocks, block)
	db.index(block)
}

// Reset replaces the entire chain with the specified blocks after they pass
// verification. The current chain is kept when they don't.
func (db *Database) Reset(blocks []Block) error {
	if len(blocks) == 0 {
		return errors.New("chain has no genesis block")
	}

	if err := verify(blocks); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = append([]Block(nil), blocks...)
	db.included = make(map[string]struct{})
	for _, block := range db.blocks {
		db.index(block)
	}

	return nil
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// GetBlock returns the block at the specified index.
func (db *Database) GetBlock(index int) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if index < 0 || index >= len(db.blocks) {
		return Block{}, fmt.Errorf("block index %d out of range, chain length %d", index, len(db.blocks))
	}

	return db.blocks[index], nil
}

// Blocks returns the chain in order starting with the genesis block. The
// slice is a copy but the blocks share their transaction slices.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]Block(nil), db.blocks...)
}

// Len returns the number of blocks in the chain.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Included reports whether the transaction with the specified id is already
// part of a block on the chain.
func (db *Database) Included(txID string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.included[txID]
	return exists
}

// Balance derives the balance for the specified address by walking the whole
// chain. Mining rewards and received amounts are credited, sent amounts and
// fees are debited. Fees are not credited to anyone.
func (db *Database) Balance(address Address) int64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var balance int64
	for _, block := range db.blocks {
		if block.Miner == address {
			balance += int64(block.MinerReward)
		}

		for _, tx := range block.Transactions {
			if tx.Sender == address {
				balance -= int64(tx.Amounts + tx.Fee)
			}
			if tx.Receiver == address {
				balance += int64(tx.Amounts)
			}
		}
	}

	return balance
}

// Verify recomputes the content hash of every block and checks the link and
// POW of every block after genesis. The returned error is a *ChainError
// naming the first block that fails.
func (db *Database) Verify() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return verify(db.blocks)
}

// =============================================================================

func (db *Database) index(block Block) {
	for _, tx := range block.Transactions {
		db.included[tx.ID()] = struct{}{}
	}
}

func verify(blocks []Block) error {
	for i, block := range blocks {
		if block.Hash != block.ContentHash() {
			return &ChainError{Index: i, Err: ErrHashMismatch}
		}

		if i == 0 {
			continue
		}

		if block.PreviousHash != blocks[i-1].Hash {
			return &ChainError{Index: i, Err: ErrLinkMismatch}
		}

		if !IsHashSolved(block.Difficulty, block.Hash) {
			return &ChainError{Index: i, Err: ErrDifficultyNotMet}
		}
	}

	return nil
}
