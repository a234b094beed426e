package node

import (
	"context"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// GetBalance returns the balance of the address derived from the chain.
func (n *Node) GetBalance(address database.Address) int64 {
	return n.state.Balance(address)
}

// AddTransaction admits a signed transaction from a wallet and shares it
// with the known peers. The result and a reason are returned for the caller
// to report.
func (n *Node) AddTransaction(tx database.SignedTx) (bool, string) {
	if err := n.state.UpsertWalletTransaction(tx); err != nil {
		return false, err.Error()
	}
	return true, "transaction added to mempool"
}

// MineBlock mines one block paying the miner address and shares it with the
// known peers.
func (n *Node) MineBlock(ctx context.Context, miner database.Address) (database.Block, error) {
	if n.worker == nil {
		return database.Block{}, ErrNotStarted
	}

	block, err := n.worker.Mine(ctx, miner)
	if err != nil {
		return database.Block{}, err
	}

	n.state.AdjustDifficulty()

	return block, nil
}

// VerifyBlockchain checks the hash and link of every block in the chain.
func (n *Node) VerifyBlockchain() error {
	return n.state.Verify()
}

// GenerateAddress creates a new key pair and returns the address with the
// private key in its string form.
func (n *Node) GenerateAddress() (database.Address, string, error) {
	privateKey, err := signature.GenerateKey(signature.DefaultKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("generating key: %w", err)
	}

	address := database.PublicKeyToAddress(&privateKey.PublicKey)
	return address, signature.PrivateKeyToString(privateKey), nil
}

// BroadcastBlock sends the block to the known peers. Peer failures are
// logged.
func (n *Node) BroadcastBlock(ctx context.Context, block database.Block) {
	if err := n.network.BroadcastBlock(ctx, n.state.KnownPeers(), block); err != nil {
		n.evHandler("node: BroadcastBlock: block[%s]: %s", block.Hash, err)
	}
}

// BroadcastTransaction sends the transaction to the known peers. Peer
// failures are logged.
func (n *Node) BroadcastTransaction(ctx context.Context, tx database.SignedTx) {
	if err := n.network.BroadcastTransaction(ctx, n.state.KnownPeers(), tx); err != nil {
		n.evHandler("node: BroadcastTransaction: tx[%s]: %s", tx, err)
	}
}

// KnownPeers returns the hosts of the known peers.
func (n *Node) KnownPeers() []string {
	peers := n.state.KnownPeers()

	hosts := make([]string, len(peers))
	for i, p := range peers {
		hosts[i] = p.Host
	}
	return hosts
}

// AddPeer adds the host to the known peers. It reports false for an invalid
// host, this node, or a host that is already known.
func (n *Node) AddPeer(host string) bool {
	p := peer.New(host)
	if !p.Valid() {
		return false
	}
	return n.state.AddKnownPeer(p)
}

// RemovePeer removes the host from the known peers.
func (n *Node) RemovePeer(host string) {
	n.state.RemoveKnownPeer(peer.New(host))
}

// Chain returns a copy of the blocks from genesis to the tip.
func (n *Node) Chain() []database.Block {
	return n.state.Blocks()
}

// Mempool returns a copy of the admitted transactions not yet mined.
func (n *Node) Mempool() []database.SignedTx {
	return n.state.Mempool()
}

// Difficulty returns the current mining difficulty.
func (n *Node) Difficulty() uint {
	return n.state.Difficulty()
}

// Genesis returns the consensus parameters of the ledger.
func (n *Node) Genesis() genesis.Genesis {
	return n.state.Genesis()
}
