package domain

import (
	"context"
	"time"
)

// MatchEvent is the engine's sole output: a first-time match between one
// saved search and one listing, ready for the external dispatcher.
type MatchEvent struct {
	SearchID  string
	UserID    string
	ListingID string
	MatchedAt time.Time
}

// NotificationSink receives first-time match events. Implementations own
// delivery mechanics; the engine's contract ends at Publish returning nil.
type NotificationSink interface {
	Publish(ctx context.Context, ev MatchEvent) error
}
