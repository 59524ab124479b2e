package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/wayneblacklock/plundrr/internal/db"
)

// XAdd appends an entry to a stream with a server-assigned id.
func (s *Store) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(stream).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// XRead returns up to count entries after lastID, blocking up to block when
// the stream has no new entries. A block timeout yields (nil, nil).
func (s *Store) XRead(
	ctx context.Context, stream, lastID string, count int64, block time.Duration,
) ([]db.StreamEntry, error) {
	var cmd rueidis.Completed
	if block > 0 {
		cmd = s.b().Xread().Count(count).Block(block.Milliseconds()).
			Streams().Key(stream).Id(lastID).Build()
	} else {
		cmd = s.b().Xread().Count(count).
			Streams().Key(stream).Id(lastID).Build()
	}

	res, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			// Block timed out with nothing to read.
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXRead, Err: err}
	}

	raw := res[stream]
	out := make([]db.StreamEntry, len(raw))
	for i, e := range raw {
		out[i] = db.StreamEntry{ID: e.ID, Fields: e.FieldValues}
	}
	return out, nil
}
