package mempool_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func tran(receiver database.Address, fee uint64) database.SignedTx {
	tx := database.NewTx("A", receiver, 10, fee, "")
	return database.SignedTx{Tx: tx}
}

func TestCRUD(t *testing.T) {
	type table struct {
		name string
		txs  []database.SignedTx
		best []database.Address
	}

	tt := []table{
		{
			name: "basic",
			txs: []database.SignedTx{
				tran("F01813", 10),
				tran("dd6B97", 50),
				tran("bEE6AC", 100),
				tran("6Fe6CF", 10),
			},
			best: []database.Address{
				"bEE6AC",
				"dd6B97",
				"F01813",
				"6Fe6CF",
			},
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp := mempool.New()

					for _, tx := range tst.txs {
						mp.Upsert(tx)
						t.Logf("\t%s\tTest %d:\tShould be able to add new transaction: %s", success, testID, tx)
					}

					for i, tx := range mp.Copy() {
						if tx.Receiver != tst.txs[i].Receiver {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx.Receiver)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.txs[i].Receiver)
							t.Fatalf("\t%s\tTest %d:\tShould get back the transactions in arrival order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the transactions in arrival order.", success, testID)

					for i, tx := range mp.PickBest(4) {
						if tx.Receiver != tst.best[i] {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx.Receiver)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right fee order.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right fee order: %d", success, testID, tx.Fee)
					}

					if mp.Count() != len(tst.txs) {
						t.Fatalf("\t%s\tTest %d:\tShould not remove transactions when picking.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not remove transactions when picking.", success, testID)

					mp.Upsert(tst.txs[0])
					if mp.Count() != len(tst.txs) {
						t.Fatalf("\t%s\tTest %d:\tShould not duplicate a transaction with the same identity.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not duplicate a transaction with the same identity.", success, testID)

					if !mp.Delete(mp.Copy()[1].ID()) {
						t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
					}
					if l := len(mp.Copy()); l != 3 {
						t.Fatalf("\t%s\tTest %d:\tShould have three transactions after removal, got %d.", failed, testID, l)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

					if mp.Delete("0xunknown") {
						t.Fatalf("\t%s\tTest %d:\tShould report a missing transaction on delete.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould report a missing transaction on delete.", success, testID)

					mp.Truncate()
					if l := len(mp.Copy()); l != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestStrategy(t *testing.T) {
	if _, err := mempool.NewWithStrategy("nonce"); err == nil {
		t.Fatalf("\t%s\tShould not be able to use an unknown strategy.", failed)
	}
	t.Logf("\t%s\tShould not be able to use an unknown strategy.", success)
}
