package engine

import (
	"context"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/listing"
)

// Matcher evaluates one normalized listing against current criteria.
type Matcher interface {
	Evaluate(n listing.Normalized) []domain.MatchEvent
}

// Ledger is the idempotent (search, listing) insert gating dispatch.
type Ledger interface {
	Record(ctx context.Context, searchID, listingID string) (first bool, err error)
}
