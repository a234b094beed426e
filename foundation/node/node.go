package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
)

// ErrNotStarted is returned by operations that need the miner before Start
// has been called.
var ErrNotStarted = errors.New("node not started")

// Config represents the configuration required to start a node.
type Config struct {
	Genesis        genesis.Genesis
	Host           string
	KnownPeers     []string
	Seed           string
	SelectStrategy string

	MinerAddress database.Address
	Mining       bool
	AllowEmpty   bool
	IdleInterval time.Duration

	DialTimeout        time.Duration
	IOTimeout          time.Duration
	MaxMessageSize     int64
	MaxConns           int
	MaxConcurrentSends int
	UPnP               bool

	EvHandler state.EventHandler
}

// Node manages the ledger, the miner and the peer network of one
// participant.
type Node struct {
	cfg       Config
	evHandler state.EventHandler
	state     *state.State
	network   *network.Network
	worker    *worker.Worker
}

// New constructs a node with a genesis chain. Nothing runs until Start.
func New(cfg Config) (*Node, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	peerSet := peer.NewPeerSet()
	for _, host := range cfg.KnownPeers {
		if p := peer.New(host); p.Valid() && !p.Match(cfg.Host) {
			peerSet.Add(p)
		}
	}

	st, err := state.New(state.Config{
		Genesis:        cfg.Genesis,
		Host:           cfg.Host,
		KnownPeers:     peerSet,
		SelectStrategy: cfg.SelectStrategy,
		EvHandler:      ev,
	})
	if err != nil {
		return nil, err
	}

	n := Node{
		cfg:       cfg,
		evHandler: ev,
		state:     st,
	}

	n.network = network.New(network.Config{
		Host:               cfg.Host,
		Handler:            &n,
		DialTimeout:        cfg.DialTimeout,
		IOTimeout:          cfg.IOTimeout,
		MaxMessageSize:     cfg.MaxMessageSize,
		MaxConns:           cfg.MaxConns,
		MaxConcurrentSends: cfg.MaxConcurrentSends,
		UPnP:               cfg.UPnP,
		EvHandler:          ev,
	})

	return &n, nil
}

// Start clones the seed when one is configured, starts the miner, binds the
// peer listener and announces this node to the known peers. Only a failure
// to bind the listener is returned.
func (n *Node) Start(ctx context.Context) error {
	if n.cfg.Seed != "" {
		if err := n.clone(ctx, n.cfg.Seed); err != nil {
			n.evHandler("node: Start: clone: seed[%s]: ERROR: %s", n.cfg.Seed, err)
		}
		n.AddPeer(n.cfg.Seed)
	}

	// The worker registers itself with the state.
	n.worker = worker.Run(n.state, worker.Config{
		MinerAddress: n.cfg.MinerAddress,
		Broadcaster:  n,
		Enabled:      n.cfg.Mining,
		AllowEmpty:   n.cfg.AllowEmpty,
		IdleInterval: n.cfg.IdleInterval,
		EvHandler:    n.evHandler,
	})

	if err := n.network.Listen(); err != nil {
		return fmt.Errorf("binding peer listener: %w", err)
	}

	if err := n.network.AnnounceNode(ctx, n.state.KnownPeers(), n.state.Host()); err != nil {
		n.evHandler("node: Start: announce: %s", err)
	}

	n.evHandler("node: Start: host[%s]: blocks[%d]: difficulty[%d]", n.network.Addr(), len(n.state.Blocks()), n.state.Difficulty())

	return nil
}

// Shutdown stops the miner and the peer network.
func (n *Node) Shutdown() {
	n.evHandler("node: shutdown: started")
	defer n.evHandler("node: shutdown: completed")

	n.state.Shutdown()
	n.network.Shutdown()
}

// clone replaces the local state with the snapshot held by the seed.
func (n *Node) clone(ctx context.Context, seed string) error {
	n.evHandler("node: clone: seed[%s]: started", seed)

	snap, err := n.network.CloneBlockchain(ctx, seed)
	if err != nil {
		return err
	}

	if err := n.state.Replace(snap); err != nil {
		return err
	}

	n.evHandler("node: clone: seed[%s]: blocks[%d]: completed", seed, len(snap.Chain))

	return nil
}

// =============================================================================

// Addr returns the address the peer listener is bound to.
func (n *Node) Addr() string {
	return n.network.Addr()
}

// State returns the ledger owned by the node.
func (n *Node) State() *state.State {
	return n.state
}

// MinerAddress returns the address paid for blocks this node mines.
func (n *Node) MinerAddress() database.Address {
	return n.cfg.MinerAddress
}
