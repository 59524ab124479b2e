package watcher

import (
	"context"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/search"
)

// CriteriaStore reads saved searches and blocklist entries.
type CriteriaStore interface {
	ListSearches(ctx context.Context) ([]search.SavedSearch, error)
	ListBlocks(ctx context.Context) ([]domain.BlocklistEntry, error)
	GetSearch(ctx context.Context, id string) (search.SavedSearch, error)
	GetBlock(ctx context.Context, entityID string) (domain.BlocklistEntry, error)
}

// ChangeFeed tails the criteria change-event stream.
type ChangeFeed interface {
	Start() string
	Next(ctx context.Context, lastID string) ([]domain.ChangeEvent, string, error)
}

// RuleWriter applies search deltas to the rule index.
type RuleWriter interface {
	Upsert(s search.SavedSearch) bool
	Remove(id string, version int64) bool
	Len() int
}

// BlockWriter applies blocklist deltas.
type BlockWriter interface {
	Upsert(e domain.BlocklistEntry) bool
	Remove(userID, sellerID string, version int64) bool
	Len() int
}
