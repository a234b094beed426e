package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// Set of error variables for block validation.
var (
	ErrHashMismatch      = errors.New("block hash does not match block content")
	ErrLinkMismatch      = errors.New("previous hash does not match the chain tip")
	ErrDifficultyNotMet  = errors.New("block hash does not meet the difficulty")
	ErrRewardMismatch    = errors.New("block reward does not match the ledger reward")
	ErrValueOutOfRange   = errors.New("transaction value out of range")
	ErrMiningInterrupted = errors.New("mining interrupted")
)

// ZeroHash represents the previous hash of the genesis block.
const ZeroHash = signature.ZeroHash

// =============================================================================

// Block represents a group of transactions batched together.
type Block struct {
	PreviousHash string  `json:"previous_hash"` // Hash of the previous block in the chain.
	Hash         string  `json:"hash"`          // Content hash of this block.
	Difficulty   uint    `json:"difficulty"`    // Number of leading 0's needed in the hash.
	Nonce        uint64  `json:"nonce"`         // Value identified to solve the hash solution.
	Timestamp    int64   `json:"timestamp"`     // Unix seconds the block was constructed.
	Miner        Address `json:"miner"`         // Account receiving the mining reward.
	MinerReward  uint64  `json:"miner_reward"`  // Reward credited to the miner.
	Transactions []Tx    `json:"transactions"`  // Order matters, it feeds the hash.
}

// blockContent is the canonical form of a block that is hashed. The fields
// are declared in sorted key order and the block's own hash is left out.
type blockContent struct {
	Difficulty   uint    `json:"difficulty"`
	Miner        Address `json:"miner"`
	MinerReward  uint64  `json:"miner_reward"`
	Nonce        uint64  `json:"nonce"`
	PreviousHash string  `json:"previous_hash"`
	Timestamp    int64   `json:"timestamp"`
	Transactions []Tx    `json:"transactions"`
}

// ContentHash returns the hash of the block's content. This is the only hash
// function used for blocks: mining, storing and verifying all call it.
func (b Block) ContentHash() string {
	trans := make([]Tx, len(b.Transactions))
	for i, tx := range b.Transactions {
		trans[i] = tx.normalize()
	}

	bc := blockContent{
		Difficulty:   b.Difficulty,
		Miner:        b.Miner,
		MinerReward:  b.MinerReward,
		Nonce:        b.Nonce,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: trans,
	}

	return signature.Hash(bc)
}

// ValidateBlock takes a block and validates it to be the next block after the
// specified previous block. The difficulty is the minimum the ledger
// currently requires and the reward is the one the ledger pays.
func (b Block) ValidateBlock(previousBlock Block, difficulty uint, reward uint64, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%s]: check: previous hash does match the tip", b.Hash)

	if b.PreviousHash != previousBlock.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrLinkMismatch, b.PreviousHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: miner reward matches the ledger", b.Hash)

	if b.MinerReward != reward {
		return fmt.Errorf("%w: got %d, exp %d", ErrRewardMismatch, b.MinerReward, reward)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: transaction values fit a balance", b.Hash)

	// Balances are signed 64 bit values.
	for _, tx := range b.Transactions {
		if tx.Amounts > math.MaxInt64 || tx.Fee > math.MaxInt64-tx.Amounts {
			return fmt.Errorf("%w: tx[%s]", ErrValueOutOfRange, tx)
		}
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block difficulty is the same or greater than required", b.Hash)

	if b.Difficulty < difficulty {
		return fmt.Errorf("%w: block difficulty %d, required %d", ErrDifficultyNotMet, b.Difficulty, difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block hash has been solved", b.Hash)

	if !IsHashSolved(b.Difficulty, b.Hash) {
		return fmt.Errorf("%w: %s, difficulty %d", ErrDifficultyNotMet, b.Hash, b.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: block hash does match block content", b.Hash)

	if hash := b.ContentHash(); b.Hash != hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, b.Hash, hash)
	}

	return nil
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func IsHashSolved(difficulty uint, hash string) bool {
	if len(hash) != len(ZeroHash) || difficulty > uint(len(hash)) {
		return false
	}

	return hash[:difficulty] == ZeroHash[:difficulty]
}

// =============================================================================

// GenesisArgs represents the set of arguments required to construct the
// genesis block.
type GenesisArgs struct {
	Address     Address
	MinerReward uint64
	Difficulty  uint
	Timestamp   int64
}

// NewGenesisBlock constructs the first block of the chain. The reward is
// minted to the mint address and paid to the genesis address by a synthetic
// transaction, so the genesis address starts with exactly one reward.
func NewGenesisBlock(args GenesisArgs) Block {
	if args.Timestamp == 0 {
		args.Timestamp = time.Now().UTC().Unix()
	}

	tx := Tx{
		Sender:    MintAddress,
		Receiver:  args.Address,
		Amounts:   args.MinerReward,
		Fee:       0,
		Message:   "Genesis Block",
		Timestamp: args.Timestamp,
		HashValue: ZeroHash,
		Metadata:  map[string]any{"note": "Genesis"},
	}

	b := Block{
		PreviousHash: ZeroHash,
		Difficulty:   args.Difficulty,
		Timestamp:    args.Timestamp,
		Miner:        MintAddress,
		MinerReward:  args.MinerReward,
		Transactions: []Tx{tx},
	}
	b.Hash = b.ContentHash()

	return b
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Miner       Address
	MinerReward uint64
	Difficulty  uint
	PrevBlock   Block
	Trans       []Tx
	Interrupted func() bool
	EvHandler   func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	trans := args.Trans
	if trans == nil {
		trans = []Tx{}
	}

	nb := Block{
		PreviousHash: args.PrevBlock.Hash,
		Difficulty:   args.Difficulty,
		Timestamp:    time.Now().UTC().Unix(),
		Miner:        args.Miner,
		MinerReward:  args.MinerReward,
		Transactions: trans,
	}

	if err := nb.performPOW(ctx, args.Interrupted, args.EvHandler); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, interrupted func() bool, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started")
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Transactions {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// Choose a random 32 bit starting point for the nonce. After this, the
	// nonce will be incremented by 1 until a solution is found by us or
	// another node.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return err
	}
	b.Nonce = nBig.Uint64()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// The interrupt is a single atomic read so it is polled on every
		// attempt. The context is more expensive and only checked periodically.
		if interrupted != nil && interrupted() {
			ev("database: PerformPOW: MINING: INTERRUPTED")
			return ErrMiningInterrupted
		}
		if attempts%65_536 == 0 && ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.ContentHash()
		if !IsHashSolved(b.Difficulty, hash) {
			b.Nonce++
			continue
		}
		b.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.PreviousHash, b.Hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}
