// Package ledger implements the dedup/notification ledger: an idempotent
// insert keyed by (search_id, listing_id) that gates dispatch so each pair
// notifies at most once, even under retried or duplicate listing delivery.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/wayneblacklock/plundrr/internal/domain"
)

// store is the consumer interface for ledger operations (ISP).
type store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Store implements the ledger on SET NX with a retention TTL. Entries must
// outlive the realistic duplicate-delivery window: eviction within the
// window would permit re-notification, so the TTL defaults to 30 days and
// zero disables expiry entirely.
type Store struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a ledger store. ttl <= 0 keeps entries forever.
func New(s store, ttl time.Duration) *Store {
	return &Store{store: s, ttl: ttl, now: time.Now}
}

// Record attempts the idempotent insert for one (search, listing) pair.
// Returns true only for the first-ever successful insertion; concurrent
// attempts on the same key resolve server-side so exactly one caller
// observes first=true. Never read-then-write.
func (s *Store) Record(ctx context.Context, searchID, listingID string) (bool, error) {
	key := ledgerKey(searchID, listingID)
	stamp := s.now().UTC().Format(time.RFC3339Nano)

	first, err := s.store.SetNX(ctx, key, []byte(stamp), s.ttl)
	if err != nil {
		return false, fmt.Errorf("ledger SET NX %s: %w", key, err)
	}
	return first, nil
}

func ledgerKey(searchID, listingID string) string {
	return fmt.Sprintf("%sledger:%s:%s", domain.KeyPrefix, searchID, listingID)
}
