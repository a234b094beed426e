package state

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/jinzhu/copier"
)

// Snapshot is the full state handed to a node cloning this one.
type Snapshot struct {
	Chain      []database.Block    `json:"chain"`
	Mempool    []database.SignedTx `json:"mempool"`
	Difficulty uint                `json:"difficulty"`
	Genesis    genesis.Genesis     `json:"config"`
	KnownPeers []string            `json:"known_peers"`
}

// Snapshot returns a deep copy of the chain, mempool, consensus parameters
// and known peers, including this node.
func (s *State) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Difficulty: s.difficulty,
		Genesis:    s.genesis,
	}

	opt := copier.Option{DeepCopy: true}
	if err := copier.CopyWithOption(&snap.Chain, s.db.Blocks(), opt); err != nil {
		return Snapshot{}, fmt.Errorf("copying chain: %w", err)
	}
	if err := copier.CopyWithOption(&snap.Mempool, s.mempool.Copy(), opt); err != nil {
		return Snapshot{}, fmt.Errorf("copying mempool: %w", err)
	}

	if s.host != "" {
		snap.KnownPeers = append(snap.KnownPeers, s.host)
	}
	for _, p := range s.knownPeers.Copy(s.host) {
		snap.KnownPeers = append(snap.KnownPeers, p.Host)
	}

	return snap, nil
}

// Replace swaps the chain, mempool, consensus parameters and known peers for
// the ones in the snapshot. The snapshot chain must pass full verification
// and the current state is kept when it doesn't. Mempool transactions with a
// bad signature are dropped.
func (s *State) Replace(snap Snapshot) error {
	if err := snap.Genesis.Validate(); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}

	if snap.Difficulty == 0 {
		return fmt.Errorf("snapshot difficulty must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Reset(snap.Chain); err != nil {
		return fmt.Errorf("snapshot chain: %w", err)
	}

	s.mempool.Truncate()
	for _, tx := range snap.Mempool {
		if err := tx.Validate(); err != nil {
			s.evHandler("state: Replace: tx[%s]: dropped: %s", tx, err)
			continue
		}
		if s.db.Included(tx.ID()) {
			continue
		}
		s.mempool.Upsert(tx)
	}

	s.genesis = snap.Genesis
	s.difficulty = snap.Difficulty
	s.retargetHeight = s.db.Len()

	peers := make([]peer.Peer, 0, len(snap.KnownPeers))
	for _, host := range snap.KnownPeers {
		if p := peer.New(host); p.Valid() && !p.Match(s.host) {
			peers = append(peers, p)
		}
	}
	s.knownPeers.Replace(peers)

	s.evHandler("state: Replace: blocks[%d]: mempool[%d]: difficulty[%d]: peers[%d]", s.db.Len(), s.mempool.Count(), s.difficulty, len(peers))

	return nil
}
