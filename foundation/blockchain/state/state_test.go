package state_test

import (
	"context"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerAddr = database.Address("M")

type account struct {
	key  *rsa.PrivateKey
	addr database.Address
}

func newAccount(t *testing.T) account {
	pk, err := signature.GenerateKey(1024)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	return account{key: pk, addr: database.PublicKeyToAddress(&pk.PublicKey)}
}

func (a account) send(t *testing.T, to database.Address, amounts uint64, fee uint64) database.SignedTx {
	signedTx, err := database.NewTx(a.addr, to, amounts, fee, "").Sign(a.key)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
	}
	return signedTx
}

func newState(t *testing.T, gen genesis.Genesis) *state.State {
	st, err := state.New(state.Config{
		Genesis:    gen,
		Host:       "127.0.0.1:9080",
		KnownPeers: peer.NewPeerSet(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	return st
}

func mine(t *testing.T, st *state.State) database.Block {
	block, err := st.MineNewBlock(context.Background(), minerAddr, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}
	return block
}

// solve builds an empty block on top of prev with the specified timestamp
// and finds a nonce for it.
func solve(prev database.Block, ts int64, difficulty uint) database.Block {
	b := database.Block{
		PreviousHash: prev.Hash,
		Difficulty:   difficulty,
		Timestamp:    ts,
		Miner:        minerAddr,
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

// countingWorker records the signals the state sends to the worker.
type countingWorker struct {
	interrupts int
}

func (w *countingWorker) Shutdown()                       {}
func (w *countingWorker) SignalStartMining()              {}
func (w *countingWorker) SignalInterrupt()                { w.interrupts++ }
func (w *countingWorker) SignalShareTx(database.SignedTx) {}

// =============================================================================

func Test_TransferScenario(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)
	b := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)
	st := newState(t, gen)

	t.Log("Given the need to move value between accounts.")
	{
		if bal := st.Balance(g.addr); bal != 10 {
			t.Fatalf("\t%s\tShould start the genesis address with the reward, got %d.", failed, bal)
		}
		t.Logf("\t%s\tShould start the genesis address with the reward.", success)

		if err := st.UpsertWalletTransaction(g.send(t, a.addr, 10, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to admit G->A: %v", failed, err)
		}
		mine(t, st)

		if st.Balance(a.addr) != 10 || st.Balance(g.addr) != 0 {
			t.Logf("\t%s\tgot: A %d, G %d", failed, st.Balance(a.addr), st.Balance(g.addr))
			t.Fatalf("\t%s\tShould move 10 from G to A.", failed)
		}
		t.Logf("\t%s\tShould move 10 from G to A.", success)

		if err := st.UpsertWalletTransaction(a.send(t, b.addr, 5, 1)); err != nil {
			t.Fatalf("\t%s\tShould be able to admit A->B: %v", failed, err)
		}
		mine(t, st)

		if st.Balance(a.addr) != 4 || st.Balance(b.addr) != 5 {
			t.Logf("\t%s\tgot: A %d, B %d", failed, st.Balance(a.addr), st.Balance(b.addr))
			t.Fatalf("\t%s\tShould move 5 from A to B and burn the fee.", failed)
		}
		t.Logf("\t%s\tShould move 5 from A to B and burn the fee.", success)

		var total int64
		for _, addr := range []database.Address{g.addr, a.addr, b.addr, minerAddr, database.MintAddress} {
			total += st.Balance(addr)
		}
		if exp := int64(10 - 1 + 20); total != exp {
			t.Logf("\t%s\tgot: %d", failed, total)
			t.Logf("\t%s\texp: %d", failed, exp)
			t.Fatalf("\t%s\tShould have total supply equal to rewards minus fees.", failed)
		}
		t.Logf("\t%s\tShould have total supply equal to rewards minus fees.", success)

		if st.MempoolLength() != 0 {
			t.Fatalf("\t%s\tShould have an empty mempool after mining.", failed)
		}
		t.Logf("\t%s\tShould have an empty mempool after mining.", success)

		if err := st.Verify(); err != nil {
			t.Fatalf("\t%s\tShould be able to verify the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the chain.", success)
	}
}

func Test_Admission(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)

	forged := g.send(t, a.addr, 1, 0)
	forged.Amounts = 5

	badKey := g.send(t, a.addr, 1, 0)
	badKey.Sender = "not-a-key"

	type table struct {
		name string
		tx   database.SignedTx
		err  error
	}

	tt := []table{
		{name: "insufficient", tx: a.send(t, g.addr, 1, 0), err: state.ErrInsufficientBalance},
		{name: "fee-too-high", tx: g.send(t, a.addr, 10, 1), err: state.ErrInsufficientBalance},
		{name: "bad-signature", tx: forged, err: signature.ErrBadSignature},
		{name: "malformed-key", tx: badKey, err: signature.ErrMalformedKey},
	}

	t.Log("Given the need to reject bad transactions.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the %q transaction.", testID, tst.name)
			{
				f := func(t *testing.T) {
					st := newState(t, gen)

					err := st.UpsertWalletTransaction(tst.tx)
					if !errors.Is(err, tst.err) {
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould get the right error.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the right error.", success, testID)

					if st.MempoolLength() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould not change the mempool.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not change the mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Relay(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)
	st := newState(t, gen)

	t.Log("Given the need to accept transactions relayed by peers.")
	{
		tx := g.send(t, a.addr, 3, 1)
		if err := st.UpsertNodeTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a relayed transaction: %v", failed, err)
		}
		if err := st.UpsertNodeTransaction(tx); err != nil || st.MempoolLength() != 1 {
			t.Fatalf("\t%s\tShould keep a single copy of a relayed transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep a single copy of a relayed transaction.", success)

		forged := tx
		forged.Receiver = g.addr
		if err := st.UpsertNodeTransaction(forged); !errors.Is(err, signature.ErrBadSignature) {
			t.Fatalf("\t%s\tShould verify the signature of a relayed transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify the signature of a relayed transaction.", success)

		mine(t, st)

		if err := st.UpsertNodeTransaction(tx); !errors.Is(err, state.ErrAlreadyIncluded) {
			t.Fatalf("\t%s\tShould reject a transaction already on the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a transaction already on the chain.", success)
	}
}

func Test_SelectForBlock(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)
	st := newState(t, gen)

	t.Log("Given the need to select the best paying transactions.")
	{
		for _, fee := range []uint64{1, 3, 2} {
			if err := st.UpsertWalletTransaction(g.send(t, a.addr, 1, fee)); err != nil {
				t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
			}
		}

		txs := st.SelectForBlock(2)
		if len(txs) != 2 || txs[0].Fee != 3 || txs[1].Fee != 2 {
			t.Fatalf("\t%s\tShould select the two highest fees: %v", failed, txs)
		}
		t.Logf("\t%s\tShould select the two highest fees.", success)

		if st.MempoolLength() != 1 {
			t.Fatalf("\t%s\tShould remove the selected transactions from the mempool.", failed)
		}
		t.Logf("\t%s\tShould remove the selected transactions from the mempool.", success)

		st.Requeue(txs)
		if st.MempoolLength() != 3 {
			t.Fatalf("\t%s\tShould be able to requeue the selected transactions.", failed)
		}
		t.Logf("\t%s\tShould be able to requeue the selected transactions.", success)
	}
}

func Test_InterruptedMining(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)
	gen.Difficulty = 64
	st := newState(t, gen)

	t.Log("Given the need to abandon a mining search when a peer block arrives.")
	{
		if err := st.UpsertWalletTransaction(g.send(t, a.addr, 5, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
		}

		tip := st.LatestBlock()
		_, err := st.MineNewBlock(context.Background(), minerAddr, func() bool { return true })
		if !errors.Is(err, database.ErrMiningInterrupted) {
			t.Fatalf("\t%s\tShould stop mining with an interrupted error: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop mining with an interrupted error.", success)

		if st.LatestBlock().Hash != tip.Hash {
			t.Fatalf("\t%s\tShould not append the abandoned candidate.", failed)
		}
		t.Logf("\t%s\tShould not append the abandoned candidate.", success)

		if st.MempoolLength() != 1 {
			t.Fatalf("\t%s\tShould return the selected transactions to the mempool.", failed)
		}
		t.Logf("\t%s\tShould return the selected transactions to the mempool.", success)
	}
}

func Test_ProposedBlock(t *testing.T) {
	gen := genesis.Default()
	gen.GenesisAddress = "G"
	gen.Date = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Log("Given the need to accept the first valid block for a tip.")
	{
		st := newState(t, gen)
		w := countingWorker{}
		st.Worker = &w
		tip := st.LatestBlock()
		ts := gen.Date.Unix()

		first := solve(tip, ts+30, 1)
		second := solve(tip, ts+31, 1)

		if err := st.ProcessProposedBlock(first); err != nil {
			t.Fatalf("\t%s\tShould accept the first block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the first block.", success)

		if w.interrupts != 1 {
			t.Fatalf("\t%s\tShould interrupt the miner after accepting a block, got %d.", failed, w.interrupts)
		}
		t.Logf("\t%s\tShould interrupt the miner after accepting a block.", success)

		if err := st.ProcessProposedBlock(second); !errors.Is(err, database.ErrLinkMismatch) {
			t.Fatalf("\t%s\tShould reject a competing block for the same tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a competing block for the same tip.", success)

		if w.interrupts != 1 {
			t.Fatalf("\t%s\tShould not interrupt the miner for a rejected block.", failed)
		}

		tampered := solve(st.LatestBlock(), ts+60, 1)
		tampered.Timestamp++
		if err := st.Append(tampered); !errors.Is(err, database.ErrHashMismatch) {
			t.Fatalf("\t%s\tShould reject a block whose hash does not match: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block whose hash does not match.", success)

		overpaid := solve(st.LatestBlock(), ts+60, 1)
		overpaid.MinerReward = 1000
		for !database.IsHashSolved(1, overpaid.ContentHash()) {
			overpaid.Nonce++
		}
		overpaid.Hash = overpaid.ContentHash()
		if err := st.Append(overpaid); !errors.Is(err, database.ErrRewardMismatch) {
			t.Fatalf("\t%s\tShould reject a block paying more than the ledger reward: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block paying more than the ledger reward.", success)

		if len(st.Blocks()) != 2 {
			t.Fatalf("\t%s\tShould have two blocks in the chain, got %d.", failed, len(st.Blocks()))
		}
		t.Logf("\t%s\tShould have two blocks in the chain.", success)
	}
}

func Test_AdjustDifficulty(t *testing.T) {
	type table struct {
		name     string
		start    uint
		span     int64
		expected uint
	}

	tt := []table{
		{name: "slow-blocks", start: 2, span: 450, expected: 1},
		{name: "fast-blocks", start: 1, span: 150, expected: 2},
		{name: "slow-blocks-floor", start: 1, span: 450, expected: 1},
		{name: "slow-by-a-fraction", start: 2, span: 305, expected: 1},
		{name: "on-target", start: 1, span: 300, expected: 2},
	}

	t.Log("Given the need to retarget the difficulty.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen ten blocks span %d seconds.", testID, tst.span)
			{
				f := func(t *testing.T) {
					gen := genesis.Default()
					gen.GenesisAddress = "G"
					gen.Difficulty = tst.start
					gen.Date = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
					st := newState(t, gen)

					ts := gen.Date.Unix()
					for i := 1; i <= 10; i++ {
						if got := st.Difficulty(); got != tst.start {
							t.Fatalf("\t%s\tTest %d:\tShould not retarget before block 10, got %d at block %d.", failed, testID, got, i)
						}

						block := solve(st.LatestBlock(), ts+tst.span*int64(i)/10, tst.start)
						if err := st.Append(block); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to append block %d: %v", failed, testID, i, err)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould not retarget before the period ends.", success, testID)

					if got := st.Difficulty(); got != tst.expected {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.expected)
						t.Fatalf("\t%s\tTest %d:\tShould retarget the difficulty.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould retarget the difficulty.", success, testID)

					if got := st.AdjustDifficulty(); got != tst.expected {
						t.Fatalf("\t%s\tTest %d:\tShould not retarget twice at the same length, got %d.", failed, testID, got)
					}
					t.Logf("\t%s\tTest %d:\tShould not retarget twice at the same length.", success, testID)

					if tst.expected > tst.start {
						block := solve(st.LatestBlock(), ts+tst.span+tst.span/10, tst.start)
						if err := st.Append(block); !errors.Is(err, database.ErrDifficultyNotMet) {
							t.Fatalf("\t%s\tTest %d:\tShould reject a block below the new difficulty: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould reject a block below the new difficulty.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_SnapshotReplace(t *testing.T) {
	g := newAccount(t)
	a := newAccount(t)

	gen := genesis.Default()
	gen.GenesisAddress = string(g.addr)

	t.Log("Given the need to clone the state of another node.")
	{
		seed := newState(t, gen)
		if err := seed.UpsertWalletTransaction(g.send(t, a.addr, 4, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a transaction: %v", failed, err)
		}
		mine(t, seed)
		if err := seed.UpsertWalletTransaction(g.send(t, a.addr, 1, 1)); err != nil {
			t.Fatalf("\t%s\tShould be able to admit a second transaction: %v", failed, err)
		}
		seed.AddKnownPeer(peer.New("127.0.0.1:9081"))

		snap, err := seed.Snapshot()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to take a snapshot: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to take a snapshot.", success)

		other := gen
		other.GenesisAddress = "someone-else"
		clone, err := state.New(state.Config{Genesis: other, Host: "127.0.0.1:9082"})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		bad := snap
		bad.Chain = append([]database.Block(nil), snap.Chain...)
		bad.Chain[1].Miner = "thief"
		if err := clone.Replace(bad); !errors.Is(err, database.ErrHashMismatch) {
			t.Fatalf("\t%s\tShould reject a tampered snapshot: %v", failed, err)
		}
		if len(clone.Blocks()) != 1 {
			t.Fatalf("\t%s\tShould keep the current chain after a rejected snapshot.", failed)
		}
		t.Logf("\t%s\tShould reject a tampered snapshot.", success)

		if err := clone.Replace(snap); err != nil {
			t.Fatalf("\t%s\tShould be able to replace the state: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to replace the state.", success)

		if clone.LatestBlock().Hash != seed.LatestBlock().Hash {
			t.Fatalf("\t%s\tShould have the same tip as the seed.", failed)
		}
		if clone.Balance(a.addr) != 4 || clone.MempoolLength() != 1 {
			t.Fatalf("\t%s\tShould have the same balances and mempool as the seed.", failed)
		}
		t.Logf("\t%s\tShould have the same chain and mempool as the seed.", success)

		peers := clone.KnownPeers()
		if len(peers) != 2 {
			t.Fatalf("\t%s\tShould know the seed and its peers, got %v.", failed, peers)
		}
		t.Logf("\t%s\tShould know the seed and its peers.", success)
	}
}
