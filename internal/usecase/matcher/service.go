// Package matcher evaluates one normalized listing against the current rule
// index and blocklist snapshots, producing candidate match events.
package matcher

import (
	"strings"
	"time"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/listing"
	"github.com/wayneblacklock/plundrr/internal/domain/search"
)

// Service evaluates listings. Stateless apart from the snapshot sources;
// safe for concurrent use by the worker pool.
type Service struct {
	rules  RuleSource
	blocks BlockSource
	now    func() time.Time
}

// New creates a matcher service.
func New(rules RuleSource, blocks BlockSource) *Service {
	return &Service{rules: rules, blocks: blocks, now: time.Now}
}

// WithClock overrides the match timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Evaluate runs one listing against the current criteria snapshots and
// returns zero or more match events, at most one per eligible search. An
// empty result is a normal outcome, never an error. The snapshot pair is
// fetched once, so the whole evaluation sees a single consistent criteria
// state regardless of concurrent updates.
func (s *Service) Evaluate(n listing.Normalized) []domain.MatchEvent {
	snap := s.rules.Snapshot()
	blocks := s.blocks.Snapshot()

	// Body tokens already contain the title tokens, so they are the union
	// of everything any candidate could scan.
	candidates := snap.Candidates(n.BodyTokens)
	if len(candidates) == 0 {
		return nil
	}

	var events []domain.MatchEvent
	for _, id := range candidates {
		sp, ok := snap.Search(id)
		if !ok {
			continue
		}
		if !matches(&sp, n) {
			continue
		}
		if blocks.IsBlocked(sp.UserID(), n.SellerID) {
			continue
		}
		events = append(events, domain.MatchEvent{
			SearchID:  sp.ID(),
			UserID:    sp.UserID(),
			ListingID: n.ID,
			MatchedAt: s.now().UTC(),
		})
	}
	return events
}

// matches applies the boolean predicate for one search: an include-term hit
// and no exclude-term hit over the scanned field set. Strict-title searches
// scan title tokens only; excludes are checked against the same scan set as
// includes, so description noise cannot disqualify a strict-title search.
func matches(sp *search.SavedSearch, n listing.Normalized) bool {
	scan := n.BodyTokens
	if sp.StrictTitle() {
		scan = n.TitleTokens
	}
	return anyTermHit(sp.Terms(), scan) && !anyTermHit(sp.Excludes(), scan)
}

// anyTermHit reports whether any term is a substring of any token
// (term "plush" hits token "plushes").
func anyTermHit(terms, tokens []string) bool {
	for _, term := range terms {
		for _, tok := range tokens {
			if strings.Contains(tok, term) {
				return true
			}
		}
	}
	return false
}
