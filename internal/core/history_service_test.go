package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindmate.io/companion/internal/store"
)

func TestNewSessionView(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	topic := "grief"

	v := NewSessionView(store.Session{ID: "a", Type: store.SessionTopic, Topic: &topic, CreatedAt: created}, nil)
	assert.Equal(t, "Topic Session - grief", v.Title)
	assert.Equal(t, "grief", v.Topic)
	assert.True(t, v.Empty)
	assert.Equal(t, "no messages", v.Placeholder)
	assert.NotNil(t, v.Messages)

	v = NewSessionView(store.Session{ID: "b", Type: store.SessionDiagnosis, CreatedAt: created},
		[]store.Message{{ID: "m1", Author: store.AuthorUser, Content: "hi"}})
	assert.Equal(t, "Diagnosis Session - General", v.Title)
	assert.False(t, v.Empty)
	assert.Empty(t, v.Placeholder)
}

func TestRenderHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	sessions := NewSessionService(db)
	history := NewHistoryService(db, nil)

	views, err := history.RenderHistory(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, views)

	older, err := sessions.StartSession(ctx, alice, store.SessionGeneral, "")
	require.NoError(t, err)
	for _, m := range []store.NewMessage{
		{SessionID: older.ID, Author: store.AuthorUser, Content: "first"},
		{SessionID: older.ID, Author: store.AuthorAssistant, Content: "second"},
		{SessionID: older.ID, Author: store.AuthorUser, Content: "third"},
	} {
		_, err := db.AppendMessage(ctx, m)
		require.NoError(t, err)
	}
	newer, err := sessions.StartSession(ctx, alice, store.SessionTopic, "sleep")
	require.NoError(t, err)
	_, err = sessions.StartSession(ctx, bob, store.SessionGeneral, "")
	require.NoError(t, err)

	views, err = history.RenderHistory(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, newer.ID, views[0].SessionID)
	assert.True(t, views[0].Empty)
	assert.Equal(t, "Topic Session - sleep", views[0].Title)

	assert.Equal(t, older.ID, views[1].SessionID)
	require.Len(t, views[1].Messages, 3)
	assert.Equal(t, "first", views[1].Messages[0].Content)
	assert.Equal(t, "second", views[1].Messages[1].Content)
	assert.Equal(t, "third", views[1].Messages[2].Content)

	again, err := history.RenderHistory(ctx, alice)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, views[0].SessionID, again[0].SessionID)
	assert.Len(t, again[1].Messages, 3)
}

func TestRenderHistoryReadThroughCache(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	userID := newTestUser(t, db, "alice")
	cache := newMemoryCache()
	history := NewHistoryService(db, cache)

	_, err := NewSessionService(db).StartSession(ctx, userID, store.SessionGeneral, "")
	require.NoError(t, err)

	views, err := history.RenderHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, cache.cached(userID))

	// a write that bypasses invalidation is not visible until the entry is dropped
	_, err = NewSessionService(db).StartSession(ctx, userID, store.SessionDiagnosis, "")
	require.NoError(t, err)
	views, err = history.RenderHistory(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	history.Invalidate(ctx, userID)
	views, err = history.RenderHistory(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestRenderHistoryIgnoresCacheFailures(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	userID := newTestUser(t, db, "alice")
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")

	_, err := NewSessionService(db).StartSession(ctx, userID, store.SessionGeneral, "")
	require.NoError(t, err)

	views, err := NewHistoryService(db, cache).RenderHistory(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
