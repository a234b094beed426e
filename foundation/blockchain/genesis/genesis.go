// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file. It carries the consensus parameters
// every node on the chain must agree on.
type Genesis struct {
	Date                   time.Time `json:"date"`
	GenesisAddress         string    `json:"genesis_address"`          // Account receiving the genesis reward.
	Difficulty             uint      `json:"difficulty"`               // Starting number of leading 0's required in a block hash.
	BlockTime              int64     `json:"block_time"`               // Target seconds between blocks.
	AdjustDifficultyBlocks uint      `json:"adjust_difficulty_blocks"` // Number of blocks between difficulty retargets.
	MinerReward            uint64    `json:"miner_reward"`             // Reward for mining a block.
	BlockLimitation        int       `json:"block_limitation"`         // The maximum number of transactions that can be in a block.
}

// Default returns the genesis values used when no genesis file exists.
func Default() Genesis {
	return Genesis{
		Difficulty:             1,
		BlockTime:              30,
		AdjustDifficultyBlocks: 10,
		MinerReward:            10,
		BlockLimitation:        32,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. A missing file produces the
// default values. Fields left out of the file keep their default values.
func Load(path string) (Genesis, error) {
	genesis := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return genesis, nil
		}
		return Genesis{}, err
	}

	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("parsing genesis file %q: %w", path, err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// WithFallbackAddress returns a copy of the genesis where an empty genesis
// address is replaced by the specified address. Without a funded account no
// transaction can ever be admitted.
func (g Genesis) WithFallbackAddress(address string) Genesis {
	if g.GenesisAddress == "" {
		g.GenesisAddress = address
	}
	return g
}

// Validate checks the consensus parameters can drive a chain.
func (g Genesis) Validate() error {
	switch {
	case g.Difficulty == 0:
		return errors.New("genesis: difficulty must be at least 1")
	case g.BlockTime <= 0:
		return errors.New("genesis: block time must be positive")
	case g.AdjustDifficultyBlocks == 0:
		return errors.New("genesis: adjust difficulty blocks must be at least 1")
	case g.BlockLimitation <= 0:
		return errors.New("genesis: block limitation must be positive")
	}

	return nil
}
