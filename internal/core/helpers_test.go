package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"mindmate.io/companion/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestUser(t *testing.T, s *store.SQLiteStore, username string) int64 {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, "hash")
	require.NoError(t, err)
	return u.ID
}

// memoryCache is a HistoryCache that records invalidations.
type memoryCache struct {
	mu            sync.Mutex
	views         map[int64][]SessionView
	generations   map[int64]int64
	invalidations int
	getErr        error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{views: make(map[int64][]SessionView), generations: make(map[int64]int64)}
}

func (c *memoryCache) Get(_ context.Context, userID int64) ([]SessionView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.views[userID]
	return v, ok, nil
}

func (c *memoryCache) Generation(_ context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

func (c *memoryCache) Set(_ context.Context, userID, generation int64, views []SessionView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] == generation {
		c.views[userID] = views
	}
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, userID)
	c.generations[userID]++
	c.invalidations++
	return nil
}

func (c *memoryCache) cached(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.views[userID]
	return ok
}

// hookedStore runs afterList once, right after the next history read.
type hookedStore struct {
	*store.SQLiteStore
	afterList func()
}

func (h *hookedStore) ListSessionsWithMessages(ctx context.Context, userID int64) ([]store.SessionWithMessages, error) {
	out, err := h.SQLiteStore.ListSessionsWithMessages(ctx, userID)
	if hook := h.afterList; hook != nil {
		h.afterList = nil
		hook()
	}
	return out, err
}
