package matcher

import "github.com/wayneblacklock/plundrr/internal/index"

// RuleSource publishes rule index snapshots.
type RuleSource interface {
	Snapshot() *index.Snapshot
}

// BlockSource publishes blocklist snapshots.
type BlockSource interface {
	Snapshot() *index.BlockSnapshot
}
