package domain

import "strings"

// BlockEntityIDSep joins user and seller into a blocklist entity id for the
// change feed ("<user_id>:<seller_id>").
const BlockEntityIDSep = ":"

// BlocklistEntry suppresses one seller's listings for one user, across all
// of that user's searches. Unique per (UserID, SellerID).
type BlocklistEntry struct {
	UserID   string
	SellerID string
	Version  int64
}

// EntityID returns the change-feed identifier for the entry.
func (e BlocklistEntry) EntityID() string {
	return e.UserID + BlockEntityIDSep + e.SellerID
}

// SplitBlockEntityID parses a blocklist entity id back into user and seller.
// Returns ok=false when the id is not two non-empty segments.
func SplitBlockEntityID(id string) (userID, sellerID string, ok bool) {
	userID, sellerID, found := strings.Cut(id, BlockEntityIDSep)
	if !found || userID == "" || sellerID == "" {
		return "", "", false
	}
	return userID, sellerID, true
}
