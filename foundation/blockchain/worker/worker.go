// Package worker implements mining and transaction sharing for the
// blockchain.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// defaultIdleInterval represents how often an idle miner checks the mempool
// when no start signal arrives.
const defaultIdleInterval = 5 * time.Second

// Broadcaster represents the behavior required to share mined blocks and
// new transactions with the known peers.
type Broadcaster interface {
	BroadcastBlock(ctx context.Context, block database.Block)
	BroadcastTransaction(ctx context.Context, tx database.SignedTx)
}

// Config represents the configuration for the worker.
type Config struct {
	MinerAddress database.Address
	Broadcaster  Broadcaster
	Enabled      bool
	AllowEmpty   bool
	IdleInterval time.Duration
	EvHandler    state.EventHandler
}

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state       *state.State
	cfg         Config
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	ticker      *time.Ticker
	shut        chan struct{}
	startMining chan bool
	txSharing   chan database.SignedTx
	epoch       atomic.Uint64
	evHandler   state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = defaultIdleInterval
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = nopBroadcaster{}
	}

	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:       st,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		ticker:      time.NewTicker(cfg.IdleInterval),
		shut:        make(chan struct{}),
		startMining: make(chan bool, 1),
		txSharing:   make(chan database.SignedTx, maxTxShareRequests),
		evHandler:   evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.shareTxOperations,
	}
	if cfg.Enabled {
		operations = append(operations, w.miningOperations)
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: cancel mining")
	w.cancel()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalInterrupt tells any mining search in progress that the chain tip
// changed. It is a single atomic write so it never blocks.
func (w *Worker) SignalInterrupt() {
	w.epoch.Add(1)
	w.evHandler("worker: SignalInterrupt: MINING: INTERRUPT: signaled")
}

// SignalShareTx signals a share transaction operation. If
// maxTxShareRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalShareTx(tx database.SignedTx) {
	select {
	case w.txSharing <- tx:
		w.evHandler("worker: SignalShareTx: share Tx signaled")
	default:
		w.evHandler("worker: SignalShareTx: queue full, transactions won't be shared.")
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// nopBroadcaster is used when the node has no peer network.
type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastBlock(context.Context, database.Block)          {}
func (nopBroadcaster) BroadcastTransaction(context.Context, database.SignedTx) {}
