// Package listing holds the listing input type and its canonical tokenized
// form. Listings are ephemeral: they enter and leave within one evaluation
// and are never persisted by the engine except as a dedup key.
package listing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/wayneblacklock/plundrr/internal/domain"
)

// Listing is a raw marketplace listing as delivered by the ingestion source.
type Listing struct {
	ID          string `json:"id"`
	SellerID    string `json:"seller_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Normalized is the canonical tokenized form consumed by the matcher.
// BodyTokens is the title concatenated with the description, so it is always
// a superset of TitleTokens. Duplicate tokens are preserved: matching is
// substring-per-token, not frequency-based, and deduplication buys nothing.
type Normalized struct {
	ID          string
	SellerID    string
	TitleTokens []string
	BodyTokens  []string
}

// Normalize converts a raw listing into canonical tokenized form.
// Deterministic and side-effect-free. Returns domain.ErrMalformedListing
// when id or seller_id is missing.
func Normalize(l Listing) (Normalized, error) {
	if strings.TrimSpace(l.ID) == "" {
		return Normalized{}, fmt.Errorf("%w: missing id", domain.ErrMalformedListing)
	}
	if strings.TrimSpace(l.SellerID) == "" {
		return Normalized{}, fmt.Errorf("%w: listing %s missing seller_id", domain.ErrMalformedListing, l.ID)
	}

	title := Tokenize(l.Title)
	body := title
	if l.Description != "" {
		body = append(append(make([]string, 0, len(title)+8), title...), Tokenize(l.Description)...)
	}

	return Normalized{
		ID:          l.ID,
		SellerID:    l.SellerID,
		TitleTokens: title,
		BodyTokens:  body,
	}, nil
}

// Tokenize lowercases, strips punctuation, and splits on whitespace.
// Punctuation inside a word splits it ("re-print" -> "re", "print").
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	lowered := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)
	return strings.Fields(lowered)
}
