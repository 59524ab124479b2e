// Package index maintains the read-mostly structures the matcher evaluates
// against: the term-to-search inverted index and the per-user seller
// blocklist. Both publish immutable snapshots by atomic pointer swap, so
// concurrent evaluations never observe a partially-applied update and never
// block writers.
package index

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wayneblacklock/plundrr/internal/domain/search"
)

// Rules is the rule index: term -> postings of search ids, plus per-search
// snapshots. A search is present iff it is active with non-empty terms.
// Mutations are version-gated per entity id, which makes at-least-once,
// out-of-order change delivery idempotent. Tombstone versions are retained
// so a stale upsert cannot resurrect a removed search.
type Rules struct {
	mu       sync.Mutex
	snap     atomic.Pointer[Snapshot]
	versions map[string]int64
}

// Snapshot is one published, immutable index state. Readers keep the
// snapshot they fetched for the whole evaluation.
type Snapshot struct {
	postings map[string][]string
	searches map[string]search.SavedSearch
}

// NewRules creates an empty rule index.
func NewRules() *Rules {
	r := &Rules{versions: make(map[string]int64)}
	r.snap.Store(&Snapshot{
		postings: make(map[string][]string),
		searches: make(map[string]search.SavedSearch),
	})
	return r
}

// Snapshot returns the current published state.
func (r *Rules) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Len returns the number of indexed searches.
func (r *Rules) Len() int {
	return len(r.snap.Load().searches)
}

// Upsert applies one search delta. Ineligible searches (inactive or with
// empty terms) are removed rather than indexed, keeping the invariant that
// the index holds exactly the eligible searches. Returns false when the
// delta is stale (version not strictly greater than the applied one).
func (r *Rules) Upsert(s search.SavedSearch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gate(s.ID(), s.Version()) {
		return false
	}
	if s.Eligible() {
		r.publish(s.ID(), &s)
	} else {
		r.publish(s.ID(), nil)
	}
	return true
}

// Remove applies a tombstone: the search leaves every posting list and its
// snapshot is dropped. No-op (returning false) when stale or absent.
func (r *Rules) Remove(id string, version int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gate(id, version) {
		return false
	}
	r.publish(id, nil)
	return true
}

// Version returns the last applied version for an entity id (0 if never seen).
func (r *Rules) Version(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[id]
}

// gate records version if strictly newer; callers hold mu.
func (r *Rules) gate(id string, version int64) bool {
	if prev, ok := r.versions[id]; ok && version <= prev {
		return false
	}
	r.versions[id] = version
	return true
}

// publish builds the next snapshot off to the side and swaps it in.
// s == nil removes the search. Callers hold mu; readers are unaffected
// until the final pointer store.
func (r *Rules) publish(id string, s *search.SavedSearch) {
	old := r.snap.Load()

	next := &Snapshot{
		postings: make(map[string][]string, len(old.postings)+1),
		searches: make(map[string]search.SavedSearch, len(old.searches)+1),
	}
	for k, v := range old.searches {
		if k != id {
			next.searches[k] = v
		}
	}

	// Drop the search from every posting list it was on. Untouched lists are
	// shared with the prior snapshot; published slices are never mutated.
	for term, ids := range old.postings {
		if !slices.Contains(ids, id) {
			next.postings[term] = ids
			continue
		}
		if len(ids) == 1 {
			continue
		}
		trimmed := make([]string, 0, len(ids)-1)
		for _, v := range ids {
			if v != id {
				trimmed = append(trimmed, v)
			}
		}
		next.postings[term] = trimmed
	}

	if s != nil {
		next.searches[id] = *s
		for _, term := range s.Terms() {
			next.postings[term] = insertSorted(next.postings[term], id)
		}
	}

	r.snap.Store(next)
}

// Candidates returns the union of postings for every indexed term that
// occurs as a substring of some token. This is a necessary-but-not-
// sufficient superset: excludes and strict-field checks resolve per search
// in the matcher. Excludes cannot be indexed positively (disqualification is
// a negative condition), so they are never consulted here.
func (sn *Snapshot) Candidates(tokens []string) []string {
	if len(sn.postings) == 0 || len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for term, ids := range sn.postings {
		if !termHitsTokens(term, tokens) {
			continue
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Search returns the indexed snapshot for a candidate id.
func (sn *Snapshot) Search(id string) (search.SavedSearch, bool) {
	s, ok := sn.searches[id]
	return s, ok
}

// Len returns the number of searches in this snapshot.
func (sn *Snapshot) Len() int {
	return len(sn.searches)
}

// termHitsTokens reports whether term is a substring of any token
// ("plush" hits "plushes").
func termHitsTokens(term string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, term) {
			return true
		}
	}
	return false
}

func insertSorted(ids []string, id string) []string {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:i]...)
	out = append(out, id)
	out = append(out, ids[i:]...)
	return out
}
