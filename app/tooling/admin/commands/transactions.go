package commands

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Transactions prints the transactions on the chain, optionally only those
// sent or received by the address given as the second argument.
func Transactions(args []string, chain []database.Block) error {
	var only database.Address
	if len(args) == 2 {
		only = database.Address(args[1])
	}

	for i, block := range chain {
		for _, tx := range block.Transactions {
			if only != "" && tx.Sender != only && tx.Receiver != only {
				continue
			}

			fmt.Printf("Block: %d  ID: %s  From: %s  To: %s  Amounts: %d  Fee: %d  Message: %s\n",
				i, tx.ID(), short(tx.Sender), short(tx.Receiver), tx.Amounts, tx.Fee, tx.Message)
		}
	}

	return nil
}

// Verify checks every block of the chain and reports the first failure.
func Verify(chain []database.Block) error {
	db := database.New(chain[0])
	if err := db.Reset(chain); err != nil {
		return err
	}

	fmt.Printf("Chain verified: blocks[%d] tip[%s]\n", db.Len(), db.LatestBlock().Hash)

	return nil
}
