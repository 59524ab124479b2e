package criteria

import (
	"fmt"
	"strconv"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/search"
)

// Search hash layout (HGETALL plundrr:search:<id>):
//   user_id, name, terms, excludes, strict_title, active, version
// terms/excludes are the free-form comma-separated strings the CRUD layer
// stores; they are parsed into normalized term sets here, once per criteria
// update, never per match.

// searchFromHash hydrates a SavedSearch from an HGETALL result map.
func searchFromHash(id string, m map[string]string) (search.SavedSearch, error) {
	userID := m["user_id"]
	if userID == "" {
		return search.SavedSearch{}, fmt.Errorf("search %s: missing user_id", id)
	}

	version, err := strconv.ParseInt(m["version"], 10, 64)
	if err != nil {
		return search.SavedSearch{}, fmt.Errorf("search %s: invalid version %q: %w", id, m["version"], err)
	}

	return search.Reconstruct(
		id,
		userID,
		m["name"],
		search.ParseTerms(m["terms"]),
		search.ParseTerms(m["excludes"]),
		parseBool(m["strict_title"]),
		parseBool(m["active"]),
		version,
	), nil
}

// blockFromHash hydrates a BlocklistEntry from an HGETALL result map.
func blockFromHash(userID, sellerID string, m map[string]string) (domain.BlocklistEntry, error) {
	version, err := strconv.ParseInt(m["version"], 10, 64)
	if err != nil {
		return domain.BlocklistEntry{}, fmt.Errorf(
			"block %s%s%s: invalid version %q: %w",
			userID, domain.BlockEntityIDSep, sellerID, m["version"], err,
		)
	}
	return domain.BlocklistEntry{UserID: userID, SellerID: sellerID, Version: version}, nil
}

// parseBool accepts the encodings the CRUD layer has used over time.
func parseBool(s string) bool {
	switch s {
	case "1", "true", "t", "yes":
		return true
	}
	return false
}
