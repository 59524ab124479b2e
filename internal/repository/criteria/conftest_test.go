package criteria

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/db"
)

// mockStore implements the consumer interfaces for tests.
type mockStore struct {
	hGetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hGetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
	xReadFn        func(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]db.StreamEntry, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hGetAllFn != nil {
		return m.hGetAllFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hGetAllMultiFn != nil {
		return m.hGetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]db.StreamEntry, error) {
	if m.xReadFn != nil {
		return m.xReadFn(ctx, stream, lastID, count, block)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, zap.NewNop()), ms
}

func searchHash(userID, terms string) map[string]string {
	return map[string]string{
		"user_id": userID,
		"name":    "test search",
		"terms":   terms,
		"active":  "1",
		"version": "1",
	}
}
