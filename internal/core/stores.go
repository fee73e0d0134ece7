package core

import (
	"context"

	"mindmate.io/companion/internal/store"
)

// SessionStore and MessageStore are satisfied by both store.SQLiteStore and store.GormStore.
type SessionStore interface {
	CreateSession(ctx context.Context, userID int64, sessionType store.SessionType, topic *string) (*store.Session, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	EndSession(ctx context.Context, sessionID string) (*store.Session, error)
	ListOpenSessionIDs(ctx context.Context, userID int64) ([]string, error)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, in store.NewMessage) (*store.Message, error)
	ListMessagesBySession(ctx context.Context, sessionID string) ([]store.Message, error)
	ListSessionsWithMessages(ctx context.Context, userID int64) ([]store.SessionWithMessages, error)
}
