// Package criteria is the read-only adapter over the criteria store's
// keyspace. The engine never writes SavedSearch or BlocklistEntry — the
// external CRUD layer owns them; this repository only lists, fetches, and
// tails their change feed.
package criteria

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/search"
	"github.com/wayneblacklock/plundrr/internal/metrics"
)

// store is the consumer interface for criteria reads (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/watcher.CriteriaStore.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a criteria repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// ListSearches returns every stored saved search, eligible or not; the
// index decides eligibility. Used for the full resync on startup. Corrupt
// rows are skipped, not fatal: one bad entity must not halt matching for
// everyone else.
func (r *Repo) ListSearches(ctx context.Context) ([]search.SavedSearch, error) {
	keys, err := r.store.Scan(ctx, searchKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan searches: %w: %w", domain.ErrCriteriaStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch searches: %w: %w", domain.ErrCriteriaStoreUnavailable, err)
	}

	out := make([]search.SavedSearch, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			// Deleted between SCAN and HGETALL; the feed tombstone covers it.
			continue
		}
		id := searchIDFromKey(keys[i])
		s, err := searchFromHash(id, m)
		if err != nil {
			r.skipInvalid(string(domain.EntitySearch), id, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ListBlocks returns every stored blocklist entry, for the startup resync.
// Corrupt rows are skipped the same way ListSearches skips them.
func (r *Repo) ListBlocks(ctx context.Context) ([]domain.BlocklistEntry, error) {
	keys, err := r.store.Scan(ctx, blockKeyPattern())
	if err != nil {
		return nil, fmt.Errorf("scan blocklist: %w: %w", domain.ErrCriteriaStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch blocklist: %w: %w", domain.ErrCriteriaStoreUnavailable, err)
	}

	out := make([]domain.BlocklistEntry, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		id := blockIDFromKey(keys[i])
		userID, sellerID, ok := domain.SplitBlockEntityID(id)
		if !ok {
			r.skipInvalid(string(domain.EntityBlock), id, fmt.Errorf("malformed blocklist key %s", keys[i]))
			continue
		}
		e, err := blockFromHash(userID, sellerID, m)
		if err != nil {
			r.skipInvalid(string(domain.EntityBlock), id, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// skipInvalid records a corrupt stored row that the resync is leaving out.
func (r *Repo) skipInvalid(entityType, entityID string, err error) {
	applyErr := domain.NewCriteriaApply(entityType, entityID, err.Error())
	r.logger.Error("skipping corrupt criteria row", zap.Error(applyErr))
	metrics.CriteriaEvents.WithLabelValues("invalid").Inc()
}

// GetSearch fetches one saved search by id.
func (r *Repo) GetSearch(ctx context.Context, id string) (search.SavedSearch, error) {
	m, err := r.store.HGetAll(ctx, searchKey(id))
	if err != nil {
		return search.SavedSearch{}, fmt.Errorf(
			"get search %s: %w: %w", id, domain.ErrCriteriaStoreUnavailable, err,
		)
	}
	if len(m) == 0 {
		return search.SavedSearch{}, domain.ErrSearchNotFound
	}
	return searchFromHash(id, m)
}

// GetBlock fetches one blocklist entry by its change-feed entity id.
func (r *Repo) GetBlock(ctx context.Context, entityID string) (domain.BlocklistEntry, error) {
	userID, sellerID, ok := domain.SplitBlockEntityID(entityID)
	if !ok {
		return domain.BlocklistEntry{}, fmt.Errorf("malformed blocklist entity id %q", entityID)
	}

	m, err := r.store.HGetAll(ctx, blockKey(userID, sellerID))
	if err != nil {
		return domain.BlocklistEntry{}, fmt.Errorf(
			"get block %s: %w: %w", entityID, domain.ErrCriteriaStoreUnavailable, err,
		)
	}
	if len(m) == 0 {
		return domain.BlocklistEntry{}, domain.ErrBlockNotFound
	}
	return blockFromHash(userID, sellerID, m)
}

func searchKey(id string) string {
	return domain.KeyPrefix + "search:" + id
}

func searchIDFromKey(key string) string {
	return strings.TrimPrefix(key, searchKey(""))
}

func blockKey(userID, sellerID string) string {
	return domain.KeyPrefix + "block:" + userID + domain.BlockEntityIDSep + sellerID
}

func blockKeyPattern() string {
	return domain.KeyPrefix + "block:*"
}

func blockIDFromKey(key string) string {
	return strings.TrimPrefix(key, domain.KeyPrefix+"block:")
}
