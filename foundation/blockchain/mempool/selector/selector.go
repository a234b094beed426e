// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee  = "fee"
	StrategyFIFO = "fifo"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// Func defines a function that takes the mempool transactions in arrival
// order and selects howMany of them in an order based on the function's
// strategy. Receiving -1 for howMany must return all the transactions in the
// strategy's ordering.
type Func func(transactions []database.SignedTx, howMany int) []database.SignedTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// feeSelect returns the transactions paying the highest fee first. Equal fees
// keep the older transaction first, then arrival order.
var feeSelect = func(txs []database.SignedTx, howMany int) []database.SignedTx {
	sort.Stable(byFee(txs))
	return take(txs, howMany)
}

// fifoSelect returns the transactions in the order they arrived.
var fifoSelect = func(txs []database.SignedTx, howMany int) []database.SignedTx {
	return take(txs, howMany)
}

func take(txs []database.SignedTx, howMany int) []database.SignedTx {
	if howMany < 0 || howMany > len(txs) {
		howMany = len(txs)
	}

	final := make([]database.SignedTx, howMany)
	copy(final, txs[:howMany])

	return final
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []database.SignedTx

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in descending order to pick the
// transactions that pay the most.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Fee != bf[j].Fee {
		return bf[i].Fee > bf[j].Fee
	}
	return bf[i].Timestamp < bf[j].Timestamp
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}
