package watcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/search"
	"github.com/wayneblacklock/plundrr/internal/index"
)

// --- Mocks ---

type mockStore struct {
	searches map[string]search.SavedSearch
	blocks   map[string]domain.BlocklistEntry

	listSearchErr error
	listBlockErr  error
	getSearchErr  error
	getBlockErr   error

	getSearchCalls int
}

func (m *mockStore) ListSearches(_ context.Context) ([]search.SavedSearch, error) {
	if m.listSearchErr != nil {
		return nil, m.listSearchErr
	}
	var out []search.SavedSearch
	for _, s := range m.searches {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStore) ListBlocks(_ context.Context) ([]domain.BlocklistEntry, error) {
	if m.listBlockErr != nil {
		return nil, m.listBlockErr
	}
	var out []domain.BlocklistEntry
	for _, e := range m.blocks {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockStore) GetSearch(_ context.Context, id string) (search.SavedSearch, error) {
	m.getSearchCalls++
	if m.getSearchErr != nil {
		return search.SavedSearch{}, m.getSearchErr
	}
	s, ok := m.searches[id]
	if !ok {
		return search.SavedSearch{}, domain.ErrSearchNotFound
	}
	return s, nil
}

func (m *mockStore) GetBlock(_ context.Context, entityID string) (domain.BlocklistEntry, error) {
	if m.getBlockErr != nil {
		return domain.BlocklistEntry{}, m.getBlockErr
	}
	e, ok := m.blocks[entityID]
	if !ok {
		return domain.BlocklistEntry{}, domain.ErrBlockNotFound
	}
	return e, nil
}

// mockFeed serves a fixed batch sequence, then blocks until ctx is done.
type mockFeed struct {
	batches [][]domain.ChangeEvent
	next    int
}

func (m *mockFeed) Start() string { return "0" }

func (m *mockFeed) Next(ctx context.Context, lastID string) ([]domain.ChangeEvent, string, error) {
	if m.next < len(m.batches) {
		b := m.batches[m.next]
		m.next++
		return b, fmt.Sprintf("%d-0", m.next), nil
	}
	<-ctx.Done()
	return nil, lastID, ctx.Err()
}

// --- Fixtures ---

func storedSearch(id, userID string, terms []string, active bool, version int64) search.SavedSearch {
	return search.Reconstruct(id, userID, "test", terms, nil, false, active, version)
}

func newTestService(store CriteriaStore, feed ChangeFeed, rules *index.Rules, blocks *index.Blocklist) *Service {
	return New(store, feed, rules, blocks, zap.NewNop()).
		WithBackoff(time.Millisecond, 5*time.Millisecond)
}

// runUntilDrained runs the service with a deadline long enough for the mock
// feed to serve every batch.
func runUntilDrained(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}
}

// --- Tests ---

func TestResync_PopulatesIndexes(t *testing.T) {
	store := &mockStore{
		searches: map[string]search.SavedSearch{
			"s-1": storedSearch("s-1", "u-1", []string{"plush"}, true, 1),
			"s-2": storedSearch("s-2", "u-2", nil, true, 1), // ineligible
		},
		blocks: map[string]domain.BlocklistEntry{
			"u-1:sel-9": {UserID: "u-1", SellerID: "sel-9", Version: 1},
		},
	}
	rules := index.NewRules()
	blocks := index.NewBlocklist()
	svc := newTestService(store, &mockFeed{}, rules, blocks)

	if err := svc.Resync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.Len() != 1 {
		t.Errorf("expected 1 indexed search, got %d", rules.Len())
	}
	if !blocks.Snapshot().IsBlocked("u-1", "sel-9") {
		t.Error("blocklist entry not applied")
	}
	if svc.LastApplied().IsZero() {
		t.Error("LastApplied not recorded")
	}
}

func TestResync_StoreError(t *testing.T) {
	store := &mockStore{listSearchErr: domain.ErrCriteriaStoreUnavailable}
	svc := newTestService(store, &mockFeed{}, index.NewRules(), index.NewBlocklist())

	err := svc.Resync(context.Background())
	if !errors.Is(err, domain.ErrCriteriaStoreUnavailable) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestRun_AppliesFeedDeltas(t *testing.T) {
	store := &mockStore{
		searches: map[string]search.SavedSearch{
			"s-1": storedSearch("s-1", "u-1", []string{"plush"}, true, 2),
		},
		blocks: map[string]domain.BlocklistEntry{
			"u-1:sel-9": {UserID: "u-1", SellerID: "sel-9", Version: 1},
		},
	}
	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2}},
		{{Type: domain.EntityBlock, EntityID: "u-1:sel-9", Version: 1}},
	}}
	rules := index.NewRules()
	blocks := index.NewBlocklist()

	runUntilDrained(t, newTestService(store, feed, rules, blocks))

	if rules.Len() != 1 {
		t.Errorf("search delta not applied, len=%d", rules.Len())
	}
	if !blocks.Snapshot().IsBlocked("u-1", "sel-9") {
		t.Error("blocklist delta not applied")
	}
}

func TestRun_OutOfOrderVersionsConverge(t *testing.T) {
	store := &mockStore{
		searches: map[string]search.SavedSearch{
			// The store always holds the latest row.
			"s-1": storedSearch("s-1", "u-1", []string{"card"}, true, 3),
		},
	}
	// Events arrive out of order; each apply re-reads the store, and version
	// gating makes the replays no-ops once v3 landed.
	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 3}},
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 1}},
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2}},
	}}
	rules := index.NewRules()

	runUntilDrained(t, newTestService(store, feed, rules, index.NewBlocklist()))

	sp, ok := rules.Snapshot().Search("s-1")
	if !ok {
		t.Fatal("search missing")
	}
	if sp.Version() != 3 {
		t.Errorf("converged to version %d, want 3", sp.Version())
	}
}

func TestRun_TombstoneRemoves(t *testing.T) {
	store := &mockStore{
		searches: map[string]search.SavedSearch{
			"s-1": storedSearch("s-1", "u-1", []string{"plush"}, true, 1),
		},
	}
	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2, Tombstone: true}},
	}}
	rules := index.NewRules()

	runUntilDrained(t, newTestService(store, feed, rules, index.NewBlocklist()))

	if rules.Len() != 0 {
		t.Errorf("tombstone not applied, len=%d", rules.Len())
	}
	// A replay of the original upsert must not resurrect the search.
	if rules.Upsert(storedSearch("s-1", "u-1", []string{"plush"}, true, 1)) {
		t.Error("stale upsert applied after tombstone")
	}
}

func TestRun_DeactivationRemovesImmediately(t *testing.T) {
	store := &mockStore{
		searches: map[string]search.SavedSearch{
			"s-1": storedSearch("s-1", "u-1", []string{"plush"}, true, 1),
		},
	}
	rules := index.NewRules()
	blocks := index.NewBlocklist()
	svc := newTestService(store, &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 1}},
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2}},
	}}, rules, blocks)

	// Swap the stored row to inactive before the second event is served.
	store.searches["s-1"] = storedSearch("s-1", "u-1", []string{"plush"}, false, 2)

	runUntilDrained(t, svc)

	if rules.Len() != 0 {
		t.Errorf("deactivated search still indexed, len=%d", rules.Len())
	}
}

func TestRun_DeletedEntityRetainsPriorState(t *testing.T) {
	store := &mockStore{searches: map[string]search.SavedSearch{}}
	rules := index.NewRules()
	rules.Upsert(storedSearch("s-1", "u-1", []string{"plush"}, true, 1))

	// GetSearch returns not-found: the tombstone is still in flight, so the
	// indexed state stays as is.
	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2}},
	}}

	runUntilDrained(t, newTestService(store, feed, rules, index.NewBlocklist()))

	if rules.Len() != 1 {
		t.Errorf("prior state dropped on not-found, len=%d", rules.Len())
	}
}

func TestRun_InvalidEntityRetainsPriorState(t *testing.T) {
	store := &mockStore{getSearchErr: errors.New("version: not a number")}
	rules := index.NewRules()
	rules.Upsert(storedSearch("s-1", "u-1", []string{"plush"}, true, 1))

	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 2}},
	}}

	runUntilDrained(t, newTestService(store, feed, rules, index.NewBlocklist()))

	sp, ok := rules.Snapshot().Search("s-1")
	if !ok {
		t.Fatal("prior state dropped for invalid entity")
	}
	if sp.Version() != 1 {
		t.Errorf("version changed to %d for invalid entity", sp.Version())
	}
}

func TestRun_TransientStoreErrorRetriesSameEvent(t *testing.T) {
	store := &mockStore{getSearchErr: fmt.Errorf("read: %w", domain.ErrCriteriaStoreUnavailable)}
	rules := index.NewRules()
	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntitySearch, EntityID: "s-1", Version: 1}},
	}}
	svc := newTestService(store, feed, rules, index.NewBlocklist())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = svc.Run(ctx)

	if store.getSearchCalls < 2 {
		t.Errorf("expected retries on transient store error, got %d calls", store.getSearchCalls)
	}
	if svc.FeedOK() {
		t.Error("FeedOK should be false during a store outage")
	}
}

func TestRun_BlockTombstone(t *testing.T) {
	store := &mockStore{blocks: map[string]domain.BlocklistEntry{}}
	blocks := index.NewBlocklist()
	blocks.Upsert(domain.BlocklistEntry{UserID: "u-1", SellerID: "sel-9", Version: 1})

	feed := &mockFeed{batches: [][]domain.ChangeEvent{
		{{Type: domain.EntityBlock, EntityID: "u-1:sel-9", Version: 2, Tombstone: true}},
	}}

	runUntilDrained(t, newTestService(store, feed, index.NewRules(), blocks))

	if blocks.Snapshot().IsBlocked("u-1", "sel-9") {
		t.Error("block tombstone not applied")
	}
}
