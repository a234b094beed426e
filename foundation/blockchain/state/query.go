package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// Balance returns the balance derived from the chain for the address.
func (s *State) Balance(address database.Address) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Balance(address)
}

// Verify checks the hash and link of every block in the chain.
func (s *State) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Verify()
}

// LatestBlock returns a copy the current latest block.
func (s *State) LatestBlock() database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.LatestBlock()
}

// Blocks returns the chain starting with the genesis block.
func (s *State) Blocks() []database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Blocks()
}

// Mempool returns a copy of the mempool in arrival order.
func (s *State) Mempool() []database.SignedTx {
	return s.mempool.Copy()
}

// MempoolLength returns the current length of the mempool.
func (s *State) MempoolLength() int {
	return s.mempool.Count()
}

// Difficulty returns the difficulty the next block must meet.
func (s *State) Difficulty() uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.difficulty
}

// Genesis returns a copy of the consensus parameters.
func (s *State) Genesis() genesis.Genesis {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.genesis
}

// Host returns the peer address of this node.
func (s *State) Host() string {
	return s.host
}

// =============================================================================

// KnownPeers retrieves a copy of the known peer list without this node.
func (s *State) KnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer. This node is never
// added to its own set.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) {
		return false
	}
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer removes a peer from the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}
