package core

import (
	"context"
	"fmt"
	"strings"

	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/observability"
	"mindmate.io/companion/internal/store"
)

// SessionService owns the session lifecycle. It does not enforce a single
// active session per user; that policy lives in ChatService.
type SessionService struct {
	sessions SessionStore
}

func NewSessionService(sessions SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

func (s *SessionService) StartSession(ctx context.Context, userID int64, sessionType store.SessionType, topic string) (*store.Session, error) {
	if !sessionType.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", apperr.ErrInvalidArgument, sessionType)
	}
	topic = strings.TrimSpace(topic)

	var topicPtr *string
	switch {
	case sessionType == store.SessionTopic && topic == "":
		return nil, fmt.Errorf("%w: topic sessions need a topic", apperr.ErrInvalidArgument)
	case sessionType != store.SessionTopic && topic != "":
		return nil, fmt.Errorf("%w: only topic sessions carry a topic", apperr.ErrInvalidArgument)
	case topic != "":
		topicPtr = &topic
	}

	session, err := s.sessions.CreateSession(ctx, userID, sessionType, topicPtr)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("session started",
		"session_id", session.ID, "user_id", userID, "type", sessionType)
	return session, nil
}

// EndSession closes the session; closing an already closed session is a no-op.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) (*store.Session, error) {
	session, err := s.sessions.EndSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("session ended", "session_id", sessionID)
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	return s.sessions.GetSession(ctx, sessionID)
}

// OpenSessions lists the ids of the user's sessions that have no end timestamp.
func (s *SessionService) OpenSessions(ctx context.Context, userID int64) ([]string, error) {
	return s.sessions.ListOpenSessionIDs(ctx, userID)
}
