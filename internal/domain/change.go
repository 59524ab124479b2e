package domain

// EntityType discriminates criteria change feed events.
type EntityType string

const (
	// EntitySearch marks a SavedSearch change.
	EntitySearch EntityType = "search"
	// EntityBlock marks a BlocklistEntry change.
	EntityBlock EntityType = "block"
)

// ChangeEvent is one entry of the criteria store's change feed. Delivery is
// at-least-once and possibly out of order; Version gates application.
type ChangeEvent struct {
	Type      EntityType
	EntityID  string
	Version   int64
	Tombstone bool
}
