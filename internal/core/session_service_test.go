package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/store"
)

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	userID := newTestUser(t, db, "alice")
	svc := NewSessionService(db)

	general, err := svc.StartSession(ctx, userID, store.SessionGeneral, "")
	require.NoError(t, err)
	assert.Nil(t, general.Topic)
	assert.Nil(t, general.EndedAt)
	assert.NotEmpty(t, general.ID)

	topic, err := svc.StartSession(ctx, userID, store.SessionTopic, "  grief ")
	require.NoError(t, err)
	require.NotNil(t, topic.Topic)
	assert.Equal(t, "grief", *topic.Topic)
	assert.NotEqual(t, general.ID, topic.ID)

	open, err := svc.OpenSessions(ctx, userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{general.ID, topic.ID}, open)
}

func TestStartSessionValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	userID := newTestUser(t, db, "bob")
	svc := NewSessionService(db)

	_, err := svc.StartSession(ctx, userID, store.SessionType("chat"), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.StartSession(ctx, userID, store.SessionTopic, " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.StartSession(ctx, userID, store.SessionDiagnosis, "sleep")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.StartSession(ctx, userID+100, store.SessionGeneral, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	open, err := svc.OpenSessions(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	userID := newTestUser(t, db, "carol")
	svc := NewSessionService(db)

	s, err := svc.StartSession(ctx, userID, store.SessionGeneral, "")
	require.NoError(t, err)

	first, err := svc.EndSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, first.EndedAt)

	second, err := svc.EndSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, first.EndedAt.Equal(*second.EndedAt))

	_, err = svc.EndSession(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
