// Package watcher consumes the criteria store's change feed and applies
// version-gated, idempotent deltas to the rule index and blocklist. The
// engine keeps matching against its last good snapshot whenever the store
// is unreachable; there is a bounded staleness window between a criteria
// change committing and the matcher seeing it, never a lost update.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/metrics"
)

// Application results, used as metric labels.
const (
	resultApplied = "applied"
	resultStale   = "stale"
	resultInvalid = "invalid"
	resultError   = "error"
)

// Service runs the resync-then-tail loop.
type Service struct {
	store  CriteriaStore
	feed   ChangeFeed
	rules  RuleWriter
	blocks BlockWriter
	logger *zap.Logger

	baseBackoff time.Duration
	maxBackoff  time.Duration

	feedOK      atomic.Bool
	lastApplied atomic.Int64 // unix nanos of the last applied delta
}

// New creates a watcher service.
func New(store CriteriaStore, feed ChangeFeed, rules RuleWriter, blocks BlockWriter, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		feed:        feed,
		rules:       rules,
		blocks:      blocks,
		logger:      logger,
		baseBackoff: time.Second,
		maxBackoff:  time.Minute,
	}
}

// WithBackoff overrides the retry backoff bounds.
func (s *Service) WithBackoff(base, maxB time.Duration) *Service {
	s.baseBackoff = base
	s.maxBackoff = maxB
	return s
}

// FeedOK reports whether the last criteria store interaction succeeded.
func (s *Service) FeedOK() bool {
	return s.feedOK.Load()
}

// LastApplied returns when the watcher last applied a delta (zero if never).
func (s *Service) LastApplied() time.Time {
	n := s.lastApplied.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Resync loads the full criteria set and applies it through the same
// version-gated path as feed deltas, so running it at any time is safe.
func (s *Service) Resync(ctx context.Context) error {
	searches, err := s.store.ListSearches(ctx)
	if err != nil {
		return fmt.Errorf("resync searches: %w", err)
	}
	blocks, err := s.store.ListBlocks(ctx)
	if err != nil {
		return fmt.Errorf("resync blocklist: %w", err)
	}

	for _, sr := range searches {
		s.rules.Upsert(sr)
	}
	for _, e := range blocks {
		s.blocks.Upsert(e)
	}
	s.markApplied()
	s.updateGauges()

	s.logger.Info("criteria resync complete",
		zap.Int("searches", len(searches)),
		zap.Int("blocklist_entries", len(blocks)),
		zap.Int("indexed", s.rules.Len()),
	)
	return nil
}

// Run resyncs, then tails the change feed until ctx is cancelled. Transient
// store outages back off exponentially; matching continues on the last good
// snapshot throughout.
func (s *Service) Run(ctx context.Context) error {
	backoff := s.baseBackoff
	for {
		err := s.Resync(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.feedOK.Store(false)
		s.logger.Warn("criteria resync failed, retrying",
			zap.Error(err), zap.Duration("backoff", backoff))
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}

	s.feedOK.Store(true)
	lastID := s.feed.Start()
	backoff = s.baseBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		events, next, err := s.feed.Next(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.feedOK.Store(false)
			metrics.CriteriaEvents.WithLabelValues(resultError).Inc()
			s.logger.Warn("change feed read failed, retrying",
				zap.Error(err), zap.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, s.maxBackoff)
			continue
		}
		s.feedOK.Store(true)
		backoff = s.baseBackoff

		for _, ev := range events {
			if err := s.applyWithRetry(ctx, ev); err != nil {
				return err
			}
		}
		lastID = next
	}
}

// applyWithRetry retries one event across transient store outages so the
// feed cursor never skips an undelivered delta. Returns only ctx errors.
func (s *Service) applyWithRetry(ctx context.Context, ev domain.ChangeEvent) error {
	backoff := s.baseBackoff
	for {
		result, err := s.apply(ctx, ev)
		if err == nil {
			metrics.CriteriaEvents.WithLabelValues(result).Inc()
			s.updateGauges()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.feedOK.Store(false)
		s.logger.Warn("criteria apply failed, retrying",
			zap.String("entity_type", string(ev.Type)),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}
}

// apply processes one change event. The returned error is reserved for
// transient store failures; invalid entities are absorbed here (logged and
// counted, prior indexed state retained) so one bad row never halts
// matching for unrelated users or searches.
func (s *Service) apply(ctx context.Context, ev domain.ChangeEvent) (string, error) {
	switch ev.Type {
	case domain.EntitySearch:
		return s.applySearch(ctx, ev)
	case domain.EntityBlock:
		return s.applyBlock(ctx, ev)
	default:
		s.logger.Warn("unknown change entity type", zap.String("entity_type", string(ev.Type)))
		return resultInvalid, nil
	}
}

func (s *Service) applySearch(ctx context.Context, ev domain.ChangeEvent) (string, error) {
	if ev.Tombstone {
		if s.rules.Remove(ev.EntityID, ev.Version) {
			s.markApplied()
			return resultApplied, nil
		}
		return resultStale, nil
	}

	sr, err := s.store.GetSearch(ctx, ev.EntityID)
	if err != nil {
		if errors.Is(err, domain.ErrSearchNotFound) {
			// Deleted after the event was emitted; the tombstone is on its
			// way. Retain prior indexed state until it arrives.
			return resultStale, nil
		}
		if errors.Is(err, domain.ErrCriteriaStoreUnavailable) {
			return "", err
		}
		s.logger.Error("invalid search entity, prior index state retained",
			zap.String("search_id", ev.EntityID),
			zap.Error(domain.NewCriteriaApply(string(domain.EntitySearch), ev.EntityID, err.Error())),
		)
		return resultInvalid, nil
	}

	if s.rules.Upsert(sr) {
		s.markApplied()
		return resultApplied, nil
	}
	return resultStale, nil
}

func (s *Service) applyBlock(ctx context.Context, ev domain.ChangeEvent) (string, error) {
	if ev.Tombstone {
		userID, sellerID, ok := domain.SplitBlockEntityID(ev.EntityID)
		if !ok {
			s.logger.Error("malformed blocklist entity id",
				zap.String("entity_id", ev.EntityID))
			return resultInvalid, nil
		}
		if s.blocks.Remove(userID, sellerID, ev.Version) {
			s.markApplied()
			return resultApplied, nil
		}
		return resultStale, nil
	}

	e, err := s.store.GetBlock(ctx, ev.EntityID)
	if err != nil {
		if errors.Is(err, domain.ErrBlockNotFound) {
			return resultStale, nil
		}
		if errors.Is(err, domain.ErrCriteriaStoreUnavailable) {
			return "", err
		}
		s.logger.Error("invalid blocklist entity, prior state retained",
			zap.String("entity_id", ev.EntityID),
			zap.Error(domain.NewCriteriaApply(string(domain.EntityBlock), ev.EntityID, err.Error())),
		)
		return resultInvalid, nil
	}

	if s.blocks.Upsert(e) {
		s.markApplied()
		return resultApplied, nil
	}
	return resultStale, nil
}

func (s *Service) markApplied() {
	s.lastApplied.Store(time.Now().UnixNano())
}

func (s *Service) updateGauges() {
	metrics.IndexedSearches.Set(float64(s.rules.Len()))
	metrics.BlockedPairs.Set(float64(s.blocks.Len()))
}

// sleep waits d or until ctx is done; returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, maxB time.Duration) time.Duration {
	next := cur * 2
	if next > maxB {
		return maxB
	}
	return next
}
