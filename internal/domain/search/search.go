// Package search holds the SavedSearch aggregate: the user-defined rule
// (include terms, exclude terms, strict-title toggle, active flag) the
// matching engine evaluates listings against.
package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/wayneblacklock/plundrr/internal/domain/listing"
)

// SavedSearch is an immutable value object. The engine only observes it;
// creation, update, and deletion belong to the external CRUD layer, which
// bumps Version on every mutation.
type SavedSearch struct {
	id          string
	userID      string
	name        string
	terms       []string
	excludes    []string
	strictTitle bool
	active      bool
	version     int64
}

// New validates and creates a SavedSearch. Terms and excludes must already
// be normalized term sets (see ParseTerms). An empty terms set is legal here
// — the search simply never becomes eligible for indexing.
func New(
	id, userID, name string, terms, excludes []string,
	strictTitle, active bool, version int64,
) (SavedSearch, error) {
	if id == "" {
		return SavedSearch{}, fmt.Errorf("search ID is required")
	}
	if userID == "" {
		return SavedSearch{}, fmt.Errorf("search %s: user ID is required", id)
	}
	if version < 0 {
		return SavedSearch{}, fmt.Errorf("search %s: version must be non-negative, got %d", id, version)
	}
	return SavedSearch{
		id:          id,
		userID:      userID,
		name:        name,
		terms:       slices.Clone(terms),
		excludes:    slices.Clone(excludes),
		strictTitle: strictTitle,
		active:      active,
		version:     version,
	}, nil
}

// Reconstruct creates a SavedSearch without validation (storage hydration).
func Reconstruct(
	id, userID, name string, terms, excludes []string,
	strictTitle, active bool, version int64,
) SavedSearch {
	return SavedSearch{
		id: id, userID: userID, name: name,
		terms: terms, excludes: excludes,
		strictTitle: strictTitle, active: active, version: version,
	}
}

// ID returns the search identifier.
func (s *SavedSearch) ID() string { return s.id }

// UserID returns the owning user.
func (s *SavedSearch) UserID() string { return s.userID }

// Name returns the user-visible label.
func (s *SavedSearch) Name() string { return s.name }

// Terms returns the normalized include terms.
func (s *SavedSearch) Terms() []string { return s.terms }

// Excludes returns the normalized exclude terms.
func (s *SavedSearch) Excludes() []string { return s.excludes }

// StrictTitle reports whether matching is restricted to title tokens.
func (s *SavedSearch) StrictTitle() bool { return s.strictTitle }

// Active reports the user-controlled on/off toggle.
func (s *SavedSearch) Active() bool { return s.active }

// Version returns the monotonic per-entity counter.
func (s *SavedSearch) Version() int64 { return s.version }

// Eligible reports whether the search belongs in the rule index: active and
// with at least one include term. A search with empty terms never matches
// anything, even if active.
func (s *SavedSearch) Eligible() bool {
	return s.active && len(s.terms) > 0
}

// ParseTerms maps a free-form comma-separated term string (user-entered
// config) to an explicit normalized term set. Each comma chunk is tokenized
// like listing text, so every resulting term is a single lowercase token and
// matching stays OR-across-terms. Computed once at criteria-update time,
// never reparsed per match.
func ParseTerms(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		for _, tok := range listing.Tokenize(chunk) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	slices.Sort(out)
	return out
}
