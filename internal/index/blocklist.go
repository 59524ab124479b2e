package index

import (
	"sync"
	"sync/atomic"

	"github.com/wayneblacklock/plundrr/internal/domain"
)

// Blocklist maps user id to the set of blocked seller ids, kept with the
// same snapshot-and-swap discipline and version gating as Rules. Removals
// take effect for the next evaluation; there is no grace period.
type Blocklist struct {
	mu       sync.Mutex
	snap     atomic.Pointer[BlockSnapshot]
	versions map[string]int64
}

// BlockSnapshot is one published, immutable blocklist state.
type BlockSnapshot struct {
	users map[string]map[string]struct{}
	pairs int
}

// NewBlocklist creates an empty blocklist.
func NewBlocklist() *Blocklist {
	b := &Blocklist{versions: make(map[string]int64)}
	b.snap.Store(&BlockSnapshot{users: make(map[string]map[string]struct{})})
	return b
}

// Snapshot returns the current published state.
func (b *Blocklist) Snapshot() *BlockSnapshot {
	return b.snap.Load()
}

// Len returns the number of blocked (user, seller) pairs.
func (b *Blocklist) Len() int {
	return b.snap.Load().pairs
}

// Upsert applies one blocklist entry delta. Returns false when stale.
func (b *Blocklist) Upsert(e domain.BlocklistEntry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.gate(e.EntityID(), e.Version) {
		return false
	}
	b.publish(e.UserID, e.SellerID, true)
	return true
}

// Remove applies a tombstone for one (user, seller) pair.
func (b *Blocklist) Remove(userID, sellerID string, version int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := userID + domain.BlockEntityIDSep + sellerID
	if !b.gate(id, version) {
		return false
	}
	b.publish(userID, sellerID, false)
	return true
}

func (b *Blocklist) gate(id string, version int64) bool {
	if prev, ok := b.versions[id]; ok && version <= prev {
		return false
	}
	b.versions[id] = version
	return true
}

// publish rebuilds the affected user's set and swaps in a new snapshot.
// Unaffected users share their sets with the prior snapshot.
func (b *Blocklist) publish(userID, sellerID string, blocked bool) {
	old := b.snap.Load()

	next := &BlockSnapshot{
		users: make(map[string]map[string]struct{}, len(old.users)+1),
		pairs: old.pairs,
	}
	for u, set := range old.users {
		if u != userID {
			next.users[u] = set
		}
	}

	prior := old.users[userID]
	set := make(map[string]struct{}, len(prior)+1)
	for s := range prior {
		set[s] = struct{}{}
	}

	if blocked {
		if _, had := set[sellerID]; !had {
			next.pairs++
		}
		set[sellerID] = struct{}{}
	} else {
		if _, had := set[sellerID]; had {
			next.pairs--
		}
		delete(set, sellerID)
	}
	if len(set) > 0 {
		next.users[userID] = set
	}

	b.snap.Store(next)
}

// IsBlocked reports whether seller is blocked for user in this snapshot.
func (bs *BlockSnapshot) IsBlocked(userID, sellerID string) bool {
	set, ok := bs.users[userID]
	if !ok {
		return false
	}
	_, blocked := set[sellerID]
	return blocked
}
