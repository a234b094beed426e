// Package commands contains the admin audit commands.
package commands

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Balances prints the derived balance of every address on the chain, or of
// the single address given as the second argument. Fees are burned so the
// total is the minted supply less the fees paid.
func Balances(args []string, db *database.Database, chain []database.Block) error {
	var only database.Address
	if len(args) == 2 {
		only = database.Address(args[1])
	}

	fmt.Printf("LatestBlockHash: %s\n\n", db.LatestBlock().Hash)

	var total int64
	for _, address := range addresses(chain) {
		if only != "" && address != only {
			continue
		}

		bal := db.Balance(address)
		total += bal
		fmt.Printf("Address: %s  Balance: %d\n", short(address), bal)
	}

	if only == "" {
		fmt.Printf("\nTotal: %d\n", total)
	}

	return nil
}

// addresses returns every address that appears on the chain, sorted.
func addresses(chain []database.Block) []database.Address {
	set := make(map[database.Address]struct{})
	for _, block := range chain {
		set[block.Miner] = struct{}{}
		for _, tx := range block.Transactions {
			set[tx.Sender] = struct{}{}
			set[tx.Receiver] = struct{}{}
		}
	}

	list := make([]database.Address, 0, len(set))
	for address := range set {
		list = append(list, address)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })

	return list
}

// short trims long key based addresses for display.
func short(address database.Address) string {
	if len(address) <= 24 {
		return string(address)
	}
	return string(address[:12]) + "..." + string(address[len(address)-8:])
}
