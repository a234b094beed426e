// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// ErrInsufficientBalance is returned when a transaction moves more value
// than the sender holds on the chain.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrAlreadyIncluded is returned when a transaction is already part of a
// block on the chain.
var ErrAlreadyIncluded = errors.New("transaction already included in the chain")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalInterrupt()
	SignalShareTx(tx database.SignedTx)
}

// nopWorker is in place until worker.Run registers the real worker.
type nopWorker struct{}

func (nopWorker) Shutdown()                       {}
func (nopWorker) SignalStartMining()              {}
func (nopWorker) SignalInterrupt()                {}
func (nopWorker) SignalShareTx(database.SignedTx) {}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis        genesis.Genesis
	Host           string
	KnownPeers     *peer.PeerSet
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the blockchain database. The chain, the mempool and the
// difficulty are one unit guarded by a single mutex.
type State struct {
	mu             sync.Mutex
	host           string
	evHandler      EventHandler
	genesis        genesis.Genesis
	difficulty     uint
	retargetHeight int

	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	db         *database.Database

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	if cfg.SelectStrategy == "" {
		cfg.SelectStrategy = selector.StrategyFee
	}

	// Construct a mempool with the specified select strategy.
	mempool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	var timestamp int64
	if !cfg.Genesis.Date.IsZero() {
		timestamp = cfg.Genesis.Date.UTC().Unix()
	} else {
		timestamp = time.Now().UTC().Unix()
	}

	genesisBlock := database.NewGenesisBlock(database.GenesisArgs{
		Address:     database.Address(cfg.Genesis.GenesisAddress),
		MinerReward: cfg.Genesis.MinerReward,
		Difficulty:  cfg.Genesis.Difficulty,
		Timestamp:   timestamp,
	})

	ev("state: New: genesis block[%s]: address[%s]", genesisBlock.Hash, database.Address(cfg.Genesis.GenesisAddress))

	// Create the State to provide support for managing the blockchain.
	state := State{
		host:           cfg.Host,
		evHandler:      ev,
		genesis:        cfg.Genesis,
		difficulty:     cfg.Genesis.Difficulty,
		retargetHeight: 1,

		knownPeers: knownPeers,
		mempool:    mempool,
		db:         database.New(genesisBlock),

		Worker: nopWorker{},
	}

	// The Worker is a placeholder here. The call to worker.Run will assign
	// itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}
