package core

import (
	"context"
	"strings"
	"time"

	"mindmate.io/companion/internal/observability"
	"mindmate.io/companion/internal/store"
)

const (
	defaultTopicLabel = "General"
	noMessagesText    = "no messages"
)

// SessionView is one session of a user's history, ready for display.
type SessionView struct {
	SessionID   string            `json:"session_id"`
	Type        store.SessionType `json:"type"`
	Topic       string            `json:"topic"`
	Title       string            `json:"title"`
	CreatedAt   time.Time         `json:"created_at"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`
	Messages    []store.Message   `json:"messages"`
	Empty       bool              `json:"empty"`
	Placeholder string            `json:"placeholder,omitempty"`
}

// HistoryCache stores rendered history per user. Implementations must treat a
// miss as (nil, false, nil). Every Invalidate advances the user's generation,
// and Set must drop views rendered under an older generation.
type HistoryCache interface {
	Get(ctx context.Context, userID int64) ([]SessionView, bool, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, generation int64, views []SessionView) error
	Invalidate(ctx context.Context, userID int64) error
}

type HistoryService struct {
	messages MessageStore
	cache    HistoryCache
}

// NewHistoryService accepts a nil cache.
func NewHistoryService(messages MessageStore, cache HistoryCache) *HistoryService {
	return &HistoryService{messages: messages, cache: cache}
}

// RenderHistory returns the user's sessions newest first with their messages in
// chronological order. It never writes to the store.
func (s *HistoryService) RenderHistory(ctx context.Context, userID int64) ([]SessionView, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	// the generation is read before the store so a concurrent write cannot be
	// overwritten by this render's older snapshot
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		views, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.Warn("history cache read failed", "error", err)
		} else if ok {
			log.Debug("history served from cache", "sessions", len(views))
			return views, nil
		}
		if generation, err = s.cache.Generation(ctx, userID); err != nil {
			log.Warn("history cache generation read failed", "error", err)
		} else {
			cacheable = true
		}
	}

	sessions, err := s.messages.ListSessionsWithMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, sw := range sessions {
		views = append(views, NewSessionView(sw.Session, sw.Messages))
	}

	if cacheable {
		if err := s.cache.Set(ctx, userID, generation, views); err != nil {
			log.Warn("history cache write failed", "error", err)
		}
	}
	return views, nil
}

// Invalidate drops the cached history of userID, if any.
func (s *HistoryService) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		observability.LoggerFromContext(ctx).Warn("history cache invalidation failed", "user_id", userID, "error", err)
	}
}

func NewSessionView(session store.Session, messages []store.Message) SessionView {
	topic := defaultTopicLabel
	if session.Topic != nil && strings.TrimSpace(*session.Topic) != "" {
		topic = *session.Topic
	}
	if messages == nil {
		messages = []store.Message{}
	}
	view := SessionView{
		SessionID: session.ID,
		Type:      session.Type,
		Topic:     topic,
		Title:     capitalize(string(session.Type)) + " Session - " + topic,
		CreatedAt: session.CreatedAt,
		EndedAt:   session.EndedAt,
		Messages:  messages,
		Empty:     len(messages) == 0,
	}
	if view.Empty {
		view.Placeholder = noMessagesText
	}
	return view
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
