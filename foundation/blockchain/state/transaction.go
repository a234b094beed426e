package state

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
// On success the transaction is shared with the known peers.
func (s *State) UpsertWalletTransaction(signedTx database.SignedTx) error {
	added, err := s.admitTransaction(signedTx)
	if err != nil {
		return err
	}

	if added {
		s.Worker.SignalShareTx(signedTx)
		s.Worker.SignalStartMining()
	}

	return nil
}

// UpsertNodeTransaction accepts a transaction relayed by a peer for
// inclusion. The signature is verified like any other transaction.
func (s *State) UpsertNodeTransaction(signedTx database.SignedTx) error {
	added, err := s.admitTransaction(signedTx)
	if err != nil {
		return err
	}

	if added {
		s.Worker.SignalStartMining()
	}

	return nil
}

// SelectForBlock removes and returns up to limit transactions from the
// mempool, the highest fees first.
func (s *State) SelectForBlock(limit int) []database.SignedTx {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectForBlock(limit)
}

// Requeue puts transactions that were selected for a block that never made
// it onto the chain back into the mempool. Transactions that reached the
// chain in the meantime are dropped.
func (s *State) Requeue(txs []database.SignedTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if s.db.Included(tx.ID()) {
			s.evHandler("state: Requeue: tx[%s] already included, dropped", tx)
			continue
		}

		s.mempool.Upsert(tx)
		s.evHandler("state: Requeue: tx[%s] back in mempool", tx)
	}
}

// =============================================================================

// admitTransaction validates the signature and the sender's balance against
// the current chain and adds the transaction to the mempool. Pending mempool
// transactions are not reserved against the balance. It reports false when
// the transaction was already waiting in the mempool.
func (s *State) admitTransaction(signedTx database.SignedTx) (bool, error) {
	if err := signedTx.Validate(); err != nil {
		return false, err
	}

	id := signedTx.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Included(id) {
		return false, ErrAlreadyIncluded
	}

	if s.mempool.Exists(id) {
		return false, nil
	}

	balance := s.db.Balance(signedTx.Sender)
	need := signedTx.Amounts + signedTx.Fee
	if need < signedTx.Amounts || balance < 0 || need > uint64(balance) {
		return false, fmt.Errorf("%w: balance %d, needed %d", ErrInsufficientBalance, balance, need)
	}

	n := s.mempool.Upsert(signedTx)
	s.evHandler("state: admitTransaction: tx[%s]: mempool[%d]", signedTx, n)

	return true, nil
}

// selectForBlock does the work of SelectForBlock. The caller must hold the
// lock.
func (s *State) selectForBlock(limit int) []database.SignedTx {
	txs := s.mempool.PickBest(limit)
	for _, tx := range txs {
		s.mempool.Delete(tx.ID())
	}

	return txs
}
