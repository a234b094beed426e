package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// ErrInterrupted is returned when a mining search was abandoned because the
// chain tip changed underneath it.
var ErrInterrupted = database.ErrMiningInterrupted

// Mine builds a block on the current tip for the miner address and searches
// for a nonce that solves it. The block is appended and shared with the
// known peers on success. A block arriving from a peer while searching
// interrupts the search and the selected transactions go back to the mempool.
func (w *Worker) Mine(ctx context.Context, miner database.Address) (database.Block, error) {

	// The epoch is captured before the tip is read by the state so a block
	// appended in between is always observed as an interrupt.
	epoch := w.epoch.Load()
	interrupted := func() bool {
		return w.epoch.Load() != epoch
	}

	block, err := w.state.MineNewBlock(ctx, miner, interrupted)
	if err != nil {
		return database.Block{}, err
	}

	// Any other search running on the old tip is now stale.
	w.SignalInterrupt()

	// WOW, we mined a block. Propose the new block to the network.
	w.cfg.Broadcaster.BroadcastBlock(ctx, block)

	return block, nil
}

// =============================================================================

// miningOperations handles mining. The loop mines back to back while there
// is work and otherwise waits for a start signal or the idle ticker.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		if w.isShutdown() {
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}

		if !w.cfg.AllowEmpty && w.state.MempoolLength() == 0 {
			select {
			case <-w.startMining:
			case <-w.ticker.C:
			case <-w.shut:
				w.evHandler("worker: miningOperations: received shut signal")
				return
			}
			continue
		}

		w.runMiningOperation()
	}
}

// runMiningOperation mines one block and adjusts the difficulty.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Drain the start mining channel since this operation covers it.
	select {
	case <-w.startMining:
	default:
	}

	t := time.Now()
	block, err := w.Mine(w.ctx, w.cfg.MinerAddress)
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, ErrInterrupted):
			w.evHandler("worker: runMiningOperation: MINING: INTERRUPTED: resume on new tip")
		case w.ctx.Err() != nil:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	difficulty := w.state.AdjustDifficulty()
	w.evHandler("worker: runMiningOperation: MINING: block[%s]: difficulty[%d]", block.Hash, difficulty)
}
