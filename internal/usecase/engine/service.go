// Package engine runs the listing evaluation pipeline: a bounded queue fed
// by the ingestion transport, drained by a pool of workers that normalize,
// match, dedup-gate, and dispatch. Listings queue rather than drop; a full
// queue surfaces as ErrQueueFull, the throttle signal for the source.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/listing"
	"github.com/wayneblacklock/plundrr/internal/metrics"
)

// Evaluation outcomes, used as metric labels.
const (
	outcomeMatched   = "matched"
	outcomeNoMatch   = "no_match"
	outcomeMalformed = "malformed"
)

// Service owns the queue and the worker pool.
type Service struct {
	matcher Matcher
	ledger  Ledger
	sink    domain.NotificationSink
	logger  *zap.Logger

	queue   chan listing.Listing
	workers int
	wg      sync.WaitGroup
}

// New creates the pipeline with the given worker count and queue capacity.
func New(m Matcher, l Ledger, sink domain.NotificationSink, workers, queueSize int, logger *zap.Logger) *Service {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Service{
		matcher: m,
		ledger:  l,
		sink:    sink,
		logger:  logger,
		queue:   make(chan listing.Listing, queueSize),
		workers: workers,
	}
}

// Submit enqueues one raw listing for evaluation. Returns ErrQueueFull when
// the queue is at capacity; the caller should throttle and retry.
func (s *Service) Submit(l listing.Listing) error {
	select {
	case s.queue <- l:
		metrics.QueueDepth.Set(float64(len(s.queue)))
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// QueueDepth returns the number of listings waiting for evaluation.
func (s *Service) QueueDepth() int {
	return len(s.queue)
}

// Run starts the worker pool and blocks until ctx is cancelled and the
// workers have drained their in-flight evaluations.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting evaluation workers",
		zap.Int("workers", s.workers),
		zap.Int("queue_capacity", cap(s.queue)),
	)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case l := <-s.queue:
					metrics.QueueDepth.Set(float64(len(s.queue)))
					s.process(ctx, l)
				}
			}
		}()
	}

	s.wg.Wait()
	s.logger.Info("evaluation workers stopped")
}

// process runs one listing to completion in-memory. Per-listing failures
// are isolated: a malformed listing or a ledger error never halts matching
// for other listings or searches.
func (s *Service) process(ctx context.Context, l listing.Listing) {
	n, err := listing.Normalize(l)
	if err != nil {
		// Skipped, not retried: retry cannot fix malformed input.
		metrics.ListingsEvaluated.WithLabelValues(outcomeMalformed).Inc()
		s.logger.Warn("skipping malformed listing",
			zap.String("listing_id", l.ID), zap.Error(err))
		return
	}

	events := s.matcher.Evaluate(n)
	if len(events) == 0 {
		metrics.ListingsEvaluated.WithLabelValues(outcomeNoMatch).Inc()
		return
	}
	metrics.ListingsEvaluated.WithLabelValues(outcomeMatched).Inc()
	metrics.MatchEvents.Add(float64(len(events)))

	for _, ev := range events {
		if err := s.dispatch(ctx, ev); err != nil {
			s.logger.Error("dispatch failed",
				zap.String("search_id", ev.SearchID),
				zap.String("listing_id", ev.ListingID),
				zap.Error(err),
			)
		}
	}
}

// dispatch gates one event through the ledger and publishes first-time
// matches. A losing ledger race is a normal outcome, not an error.
func (s *Service) dispatch(ctx context.Context, ev domain.MatchEvent) error {
	first, err := s.ledger.Record(ctx, ev.SearchID, ev.ListingID)
	if err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	if !first {
		metrics.NotificationsSuppressed.Inc()
		return nil
	}

	if err := s.sink.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	metrics.NotificationsPublished.Inc()
	return nil
}

// Healthy reports whether the queue has headroom. Used by the health
// surface; sustained saturation means the source must throttle.
func (s *Service) Healthy() bool {
	return len(s.queue) < cap(s.queue)
}
