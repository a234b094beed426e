package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type broadcaster struct {
	mu     sync.Mutex
	blocks []database.Block
	txs    []database.SignedTx
}

func (b *broadcaster) BroadcastBlock(ctx context.Context, block database.Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = append(b.blocks, block)
}

func (b *broadcaster) BroadcastTransaction(ctx context.Context, tx database.SignedTx) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs = append(b.txs, tx)
}

func (b *broadcaster) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks), len(b.txs)
}

// setup builds a state with a funded genesis account and a signed
// transaction from it ready to admit.
func setup(t *testing.T, difficulty uint) (*state.State, database.SignedTx) {
	pk, err := signature.GenerateKey(1024)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	addr := database.PublicKeyToAddress(&pk.PublicKey)

	gen := genesis.Default()
	gen.GenesisAddress = string(addr)
	gen.Difficulty = difficulty

	st, err := state.New(state.Config{Genesis: gen, Host: "127.0.0.1:9080"})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	tx, err := database.NewTx(addr, "B", 5, 1, "").Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
	}

	return st, tx
}

// solve builds an empty block on top of prev and finds a nonce for it.
func solve(prev database.Block, difficulty uint) database.Block {
	b := database.Block{
		PreviousHash: prev.Hash,
		Difficulty:   difficulty,
		Timestamp:    time.Now().UTC().Unix(),
		Miner:        "P",
		MinerReward:  10,
		Transactions: []database.Tx{},
	}
	for {
		b.Hash = b.ContentHash()
		if database.IsHashSolved(difficulty, b.Hash) {
			return b
		}
		b.Nonce++
	}
}

func waitFor(t *testing.T, what string, fn func() bool) {
	deadline := time.Now().Add(10 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould see %s before the deadline.", failed, what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// =============================================================================

func Test_MiningOperations(t *testing.T) {
	st, tx := setup(t, 1)
	bc := broadcaster{}

	w := worker.Run(st, worker.Config{
		MinerAddress: "M",
		Broadcaster:  &bc,
		Enabled:      true,
		IdleInterval: 50 * time.Millisecond,
	})
	defer st.Shutdown()

	t.Log("Given the need to mine transactions as they arrive.")
	{
		if err := st.UpsertWalletTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
		}

		waitFor(t, "the transaction mined", func() bool {
			return st.Balance("B") == 5
		})
		t.Logf("\t%s\tShould mine the transaction into a block.", success)

		waitFor(t, "the block and transaction shared", func() bool {
			blocks, txs := bc.counts()
			return blocks >= 1 && txs == 1
		})
		t.Logf("\t%s\tShould share the transaction and the block with peers.", success)

		if st.Balance("M") < 10 {
			t.Fatalf("\t%s\tShould pay the miner the reward.", failed)
		}
		t.Logf("\t%s\tShould pay the miner the reward.", success)

		if _, err := w.Mine(context.Background(), "N"); err != nil {
			t.Fatalf("\t%s\tShould be able to mine an empty block on request: %v", failed, err)
		}
		if st.Balance("N") != 10 {
			t.Fatalf("\t%s\tShould pay the requesting miner.", failed)
		}
		t.Logf("\t%s\tShould be able to mine an empty block on request.", success)
	}
}

func Test_Interrupt(t *testing.T) {
	st, tx := setup(t, 64)

	w := worker.Run(st, worker.Config{MinerAddress: "M"})
	defer st.Shutdown()

	t.Log("Given the need to interrupt a mining search when the tip changes.")
	{
		if err := st.UpsertWalletTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			_, err := w.Mine(ctx, "M")
			errCh <- err
		}()

		// The transaction leaves the mempool once the search has started.
		waitFor(t, "the search started", func() bool {
			return st.MempoolLength() == 0
		})

		w.SignalInterrupt()

		err := <-errCh
		if !errors.Is(err, worker.ErrInterrupted) {
			t.Fatalf("\t%s\tShould abandon the search with an interrupted error: %v", failed, err)
		}
		t.Logf("\t%s\tShould abandon the search with an interrupted error.", success)

		if st.MempoolLength() != 1 {
			t.Fatalf("\t%s\tShould return the selected transaction to the mempool.", failed)
		}
		t.Logf("\t%s\tShould return the selected transaction to the mempool.", success)

		if len(st.Blocks()) != 1 {
			t.Fatalf("\t%s\tShould not append the abandoned candidate.", failed)
		}
		t.Logf("\t%s\tShould not append the abandoned candidate.", success)
	}
}

func Test_PeerBlockInterruptsMining(t *testing.T) {
	const difficulty = 4

	pk, err := signature.GenerateKey(1024)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	addr := database.PublicKeyToAddress(&pk.PublicKey)

	gen := genesis.Default()
	gen.GenesisAddress = string(addr)
	gen.Difficulty = difficulty

	// The events are watched so the peer block lands while the search on
	// the genesis tip is running.
	searching := make(chan struct{}, 1)
	interrupted := make(chan struct{}, 1)
	ev := func(v string, args ...any) {
		switch {
		case strings.HasPrefix(v, "database: PerformPOW: MINING: started"):
			select {
			case searching <- struct{}{}:
			default:
			}
		case strings.HasPrefix(v, "database: PerformPOW: MINING: INTERRUPTED"):
			select {
			case interrupted <- struct{}{}:
			default:
			}
		}
	}

	st, err := state.New(state.Config{Genesis: gen, Host: "127.0.0.1:9080", EvHandler: ev})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	tx, err := database.NewTx(addr, "B", 5, 1, "").Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
	}

	genesisBlock := st.LatestBlock()
	peerBlock := solve(genesisBlock, difficulty)

	bc := broadcaster{}
	worker.Run(st, worker.Config{
		MinerAddress: "M",
		Broadcaster:  &bc,
		Enabled:      true,
		IdleInterval: time.Minute,
	})
	defer st.Shutdown()

	t.Log("Given the need to give up a search when a peer block extends the tip.")
	{
		if err := st.UpsertWalletTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
		}

		select {
		case <-searching:
		case <-time.After(10 * time.Second):
			t.Fatalf("\t%s\tShould start searching on the genesis tip.", failed)
		}

		if err := st.ProcessProposedBlock(peerBlock); err != nil {
			t.Fatalf("\t%s\tShould accept the peer block on the genesis tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the peer block on the genesis tip.", success)

		select {
		case <-interrupted:
		case <-time.After(10 * time.Second):
			t.Fatalf("\t%s\tShould abandon the search on the old tip.", failed)
		}
		t.Logf("\t%s\tShould abandon the search on the old tip.", success)

		blocks := st.Blocks()
		if len(blocks) < 2 || blocks[1].Hash != peerBlock.Hash {
			t.Fatalf("\t%s\tShould keep the peer block as block 1 without the abandoned candidate.", failed)
		}
		t.Logf("\t%s\tShould keep the peer block as block 1 without the abandoned candidate.", success)

		waitFor(t, "a block mined on the new tip", func() bool {
			blocks, _ := bc.counts()
			return blocks >= 1
		})

		bc.mu.Lock()
		mined := bc.blocks[0]
		bc.mu.Unlock()

		if mined.PreviousHash != peerBlock.Hash {
			t.Logf("\t%s\tgot: %s", failed, mined.PreviousHash)
			t.Logf("\t%s\texp: %s", failed, peerBlock.Hash)
			t.Fatalf("\t%s\tShould resume mining on the peer block.", failed)
		}
		t.Logf("\t%s\tShould resume mining on the peer block.", success)

		if len(mined.Transactions) != 1 || mined.Transactions[0].ID() != tx.ID() {
			t.Fatalf("\t%s\tShould mine the requeued transaction on the new tip.", failed)
		}
		t.Logf("\t%s\tShould mine the requeued transaction on the new tip.", success)

		if st.Balance("B") != 5 || st.Balance("P") != 10 {
			t.Fatalf("\t%s\tShould credit the transfer and the peer's reward.", failed)
		}
		t.Logf("\t%s\tShould credit the transfer and the peer's reward.", success)
	}
}
