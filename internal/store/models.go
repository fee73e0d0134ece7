package store

import (
	"fmt"
	"strings"
	"time"

	"mindmate.io/companion/internal/apperr"
)

// SessionType selects the prompt template used for every turn of a session.
type SessionType string

const (
	SessionGeneral   SessionType = "general"
	SessionTopic     SessionType = "topic"
	SessionDiagnosis SessionType = "diagnosis"
)

// ParseSessionType accepts only the three known types.
func ParseSessionType(s string) (SessionType, error) {
	switch t := SessionType(strings.ToLower(strings.TrimSpace(s))); t {
	case SessionGeneral, SessionTopic, SessionDiagnosis:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown session type %q", apperr.ErrInvalidArgument, s)
	}
}

func (t SessionType) Valid() bool {
	switch t {
	case SessionGeneral, SessionTopic, SessionDiagnosis:
		return true
	}
	return false
}

type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

func (a Author) Valid() bool {
	return a == AuthorUser || a == AuthorAssistant
}

// Sentiment scores produced by the model-assisted classifier are bounded to this range.
const (
	MinSentiment = 1.0
	MaxSentiment = 10.0
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID        string      `json:"id"` // UUID
	UserID    int64       `json:"user_id"`
	Type      SessionType `json:"type"`
	Topic     *string     `json:"topic"` // set iff Type == SessionTopic
	CreatedAt time.Time   `json:"created_at"`
	EndedAt   *time.Time  `json:"ended_at"`
}

func (s *Session) Closed() bool {
	return s.EndedAt != nil
}

type Message struct {
	ID        string    `json:"id"` // UUID
	SessionID string    `json:"session_id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Sentiment *float64  `json:"sentiment,omitempty"`
	Emotion   *string   `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage is the input to AppendMessage. Sentiment and Emotion are only
// accepted on user-authored messages.
type NewMessage struct {
	SessionID string
	Author    Author
	Content   string
	Sentiment *float64
	Emotion   *string
}

func (m NewMessage) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: message content is empty", apperr.ErrInvalidArgument)
	}
	if !m.Author.Valid() {
		return fmt.Errorf("%w: unknown author %q", apperr.ErrInvalidArgument, m.Author)
	}
	if m.Author == AuthorAssistant && (m.Sentiment != nil || m.Emotion != nil) {
		return fmt.Errorf("%w: classification is only recorded on user messages", apperr.ErrInvalidArgument)
	}
	if m.Sentiment != nil && (*m.Sentiment < MinSentiment || *m.Sentiment > MaxSentiment) {
		return fmt.Errorf("%w: sentiment %.2f outside [%.0f, %.0f]", apperr.ErrInvalidArgument, *m.Sentiment, MinSentiment, MaxSentiment)
	}
	return nil
}

// SessionWithMessages pairs a session with its ordered message log.
type SessionWithMessages struct {
	Session  Session
	Messages []Message
}
