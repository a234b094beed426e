// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"sort"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
)

// entry keeps the arrival sequence so selection ties stay in arrival order.
type entry struct {
	tx  database.SignedTx
	seq uint64
}

// Mempool represents a cache of admitted transactions that are not yet part
// of a block, keyed by transaction identity.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]entry
	nextSeq  uint64
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() *Mempool {
	mp, _ := NewWithStrategy(selector.StrategyFee)
	return mp
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]entry),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool. A replaced
// transaction keeps its place in arrival order.
func (mp *Mempool) Upsert(tx database.SignedTx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	id := tx.ID()
	if e, exists := mp.pool[id]; exists {
		e.tx = tx
		mp.pool[id] = e
		return len(mp.pool)
	}

	mp.pool[id] = entry{tx: tx, seq: mp.nextSeq}
	mp.nextSeq++

	return len(mp.pool)
}

// Exists reports whether a transaction with the specified id is in the pool.
func (mp *Mempool) Exists(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[id]
	return exists
}

// Delete removes the transaction with the specified id from the mempool and
// reports whether it was there.
func (mp *Mempool) Delete(id string) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[id]; !exists {
		return false
	}

	delete(mp.pool, id)
	return true
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]entry)
}

// Copy returns a list of the current transactions in arrival order.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.ordered()
}

// PickBest uses the configured select strategy to return the next set of
// transactions for the next block. Pass -1 for all the transactions. The
// transactions are not removed from the pool.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	mp.mu.RLock()
	txs := mp.ordered()
	mp.mu.RUnlock()

	return mp.selectFn(txs, howMany)
}

// ordered returns the transactions in arrival order. The caller must hold
// the lock.
func (mp *Mempool) ordered() []database.SignedTx {
	entries := make([]entry, 0, len(mp.pool))
	for _, e := range mp.pool {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	txs := make([]database.SignedTx, len(entries))
	for i, e := range entries {
		txs[i] = e.tx
	}

	return txs
}
