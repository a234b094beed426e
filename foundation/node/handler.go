package node

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// These methods serve the inbound peer requests.

// Balance serves get_balance.
func (n *Node) Balance(address database.Address) int64 {
	return n.state.Balance(address)
}

// SubmitTransaction serves transaction. An admitted transaction is relayed
// to the known peers.
func (n *Node) SubmitTransaction(tx database.SignedTx) error {
	return n.state.UpsertWalletTransaction(tx)
}

// Snapshot serves clone_blockchain.
func (n *Node) Snapshot() (state.Snapshot, error) {
	return n.state.Snapshot()
}

// ProposeBlock serves broadcast_block. A block that extends the tip
// interrupts the miner.
func (n *Node) ProposeBlock(block database.Block) error {
	return n.state.ProcessProposedBlock(block)
}

// RelayTransaction serves broadcast_transaction. The signature is verified
// like any other transaction but the transaction is not relayed again.
func (n *Node) RelayTransaction(tx database.SignedTx) error {
	return n.state.UpsertNodeTransaction(tx)
}
