package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
)

// Log writes match events to the logger. Local/dev sink.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging sink.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Publish logs one match event.
func (s *Log) Publish(_ context.Context, ev domain.MatchEvent) error {
	s.logger.Info("match",
		zap.String("search_id", ev.SearchID),
		zap.String("user_id", ev.UserID),
		zap.String("listing_id", ev.ListingID),
		zap.Time("matched_at", ev.MatchedAt),
	)
	return nil
}
