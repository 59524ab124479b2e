// Package sink provides NotificationSink implementations. The engine's
// contract ends at Publish: downstream dispatch (email, push, webhook) is an
// external consumer of whatever the sink feeds.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/wayneblacklock/plundrr/internal/domain"
)

// streamStore is the consumer interface for stream publishing (ISP).
type streamStore interface {
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
}

// DefaultStream is where match events land for the external dispatcher.
const DefaultStream = domain.KeyPrefix + "notifications"

// Stream publishes match events to an append-only stream.
type Stream struct {
	store  streamStore
	stream string
}

// NewStream creates a stream sink.
func NewStream(s streamStore, stream string) *Stream {
	if stream == "" {
		stream = DefaultStream
	}
	return &Stream{store: s, stream: stream}
}

// Publish appends one match event.
func (s *Stream) Publish(ctx context.Context, ev domain.MatchEvent) error {
	_, err := s.store.XAdd(ctx, s.stream, map[string]string{
		"search_id":  ev.SearchID,
		"user_id":    ev.UserID,
		"listing_id": ev.ListingID,
		"matched_at": ev.MatchedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
