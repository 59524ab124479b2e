package criteria

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wayneblacklock/plundrr/internal/db"
	"github.com/wayneblacklock/plundrr/internal/domain"
)

// feedStore is the consumer interface for feed reads (ISP).
type feedStore interface {
	XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]db.StreamEntry, error)
}

// DefaultStream is the change-event stream the CRUD layer appends to.
const DefaultStream = domain.KeyPrefix + "criteria:events"

// Feed tails the criteria change-event stream. Entries carry
// {entity_type, entity_id, version, tombstone}; delivery is at-least-once
// and possibly out of order — version gating downstream makes that safe,
// which is also why tailing starts from the stream head ("0"): replaying
// events already covered by the resync is a no-op.
type Feed struct {
	store  feedStore
	stream string
	batch  int64
	block  time.Duration
}

// NewFeed creates a change feed reader.
func NewFeed(s feedStore, stream string, batch int64, block time.Duration) *Feed {
	if stream == "" {
		stream = DefaultStream
	}
	if batch <= 0 {
		batch = 100
	}
	return &Feed{store: s, stream: stream, batch: batch, block: block}
}

// Start returns the cursor tailing begins from.
func (f *Feed) Start() string { return "0" }

// Next returns events after lastID and the cursor to resume from. An empty
// batch with nextID == lastID means the blocking read timed out. Malformed
// entries are skipped; the cursor still advances past them.
func (f *Feed) Next(ctx context.Context, lastID string) ([]domain.ChangeEvent, string, error) {
	entries, err := f.store.XRead(ctx, f.stream, lastID, f.batch, f.block)
	if err != nil {
		return nil, lastID, fmt.Errorf(
			"read %s after %s: %w: %w", f.stream, lastID, domain.ErrCriteriaStoreUnavailable, err,
		)
	}
	if len(entries) == 0 {
		return nil, lastID, nil
	}

	out := make([]domain.ChangeEvent, 0, len(entries))
	next := lastID
	for _, e := range entries {
		next = e.ID
		ev, err := eventFromFields(e.Fields)
		if err != nil {
			// Skip the entry but keep the cursor moving; a poison event must
			// not stall every subsequent criteria update.
			continue
		}
		out = append(out, ev)
	}
	return out, next, nil
}

func eventFromFields(fields map[string]string) (domain.ChangeEvent, error) {
	typ := domain.EntityType(fields["entity_type"])
	switch typ {
	case domain.EntitySearch, domain.EntityBlock:
	default:
		return domain.ChangeEvent{}, fmt.Errorf("unknown entity_type %q", fields["entity_type"])
	}

	id := fields["entity_id"]
	if id == "" {
		return domain.ChangeEvent{}, fmt.Errorf("missing entity_id")
	}

	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("invalid version %q: %w", fields["version"], err)
	}

	return domain.ChangeEvent{
		Type:      typ,
		EntityID:  id,
		Version:   version,
		Tombstone: parseBool(fields["tombstone"]),
	}, nil
}
