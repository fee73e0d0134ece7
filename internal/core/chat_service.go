package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/observability"
	"mindmate.io/companion/internal/store"
)

const defaultRetryDelay = 500 * time.Millisecond

type ChatService struct {
	sessions   *SessionService
	messages   MessageStore
	classifier Classifier // nil disables classification
	llm        *LLMService
	history    *HistoryService
	retryDelay time.Duration
}

// ChatOption is a functional option for configuring a ChatService.
type ChatOption func(*ChatService)

// WithRetryDelay sets the pause before the single retry of a failed completion.
func WithRetryDelay(d time.Duration) ChatOption {
	return func(s *ChatService) {
		s.retryDelay = d
	}
}

func NewChatService(sessions *SessionService, messages MessageStore, classifier Classifier, llm *LLMService, history *HistoryService, opts ...ChatOption) *ChatService {
	s := &ChatService{
		sessions:   sessions,
		messages:   messages,
		classifier: classifier,
		llm:        llm,
		history:    history,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TurnResult is one user message and, when the completion succeeded, the reply to it.
type TurnResult struct {
	UserMessage      *store.Message
	AssistantMessage *store.Message
	Classification   *Classification
}

// BeginSession starts a new session and then closes whatever sessions the user
// still had open. Invalid input closes nothing.
func (s *ChatService) BeginSession(ctx context.Context, userID int64, sessionType store.SessionType, topic string) (*store.Session, error) {
	open, err := s.sessions.OpenSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.StartSession(ctx, userID, sessionType, topic)
	if err != nil {
		return nil, err
	}
	for _, id := range open {
		if _, err := s.sessions.EndSession(ctx, id); err != nil {
			observability.LoggerFromContext(ctx).Warn("failed to close previous session", "session_id", id, "error", err)
		}
	}
	s.history.Invalidate(ctx, userID)
	return session, nil
}

// ownedSession hides other users' sessions behind ErrNotFound.
func (s *ChatService) ownedSession(ctx context.Context, userID int64, sessionID string) (*store.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, sessionID)
	}
	return session, nil
}

func (s *ChatService) EndSession(ctx context.Context, userID int64, sessionID string) (*store.Session, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	session, err := s.sessions.EndSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.history.Invalidate(ctx, userID)
	return session, nil
}

func (s *ChatService) SessionMessages(ctx context.Context, userID int64, sessionID string) (*store.Session, []store.Message, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

// SendMessage runs one turn. Classification and the completion both finish
// before anything is written; the user message is always stored before the
// reply. When the completion fails the user message stays stored without a
// reply and the upstream error is returned alongside the partial result.
func (s *ChatService) SendMessage(ctx context.Context, userID int64, sessionID, content string) (*TurnResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", apperr.ErrInvalidArgument)
	}
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Closed() {
		return nil, fmt.Errorf("%w: session %s is closed", apperr.ErrInvalidArgument, sessionID)
	}

	log := observability.LoggerFromContext(ctx).With("session_id", session.ID, "user_id", userID, "type", session.Type)

	var (
		classification *Classification
		reply          string
		replyErr       error
	)
	if session.Type == store.SessionGeneral {
		// the general prompt names the detected concern, so classify first
		classification = s.classify(ctx, content)
		reply, replyErr = s.reply(ctx, session, content, classification)
	} else {
		var g errgroup.Group
		g.Go(func() error {
			classification = s.classify(ctx, content)
			return nil
		})
		g.Go(func() error {
			var err error
			reply, err = s.reply(ctx, session, content, nil)
			return err
		})
		replyErr = g.Wait()
	}

	if replyErr != nil && !isUpstreamFailure(replyErr) {
		return nil, replyErr
	}

	userIn := store.NewMessage{SessionID: session.ID, Author: store.AuthorUser, Content: content}
	if classification != nil {
		userIn.Sentiment = classification.Score
		label := classification.Label
		userIn.Emotion = &label
	}
	userMsg, err := s.messages.AppendMessage(ctx, userIn)
	if err != nil {
		return nil, err
	}
	s.history.Invalidate(ctx, userID)
	result := &TurnResult{UserMessage: userMsg, Classification: classification}

	if replyErr != nil {
		log.Error("completion failed, user message stored without reply", "error", replyErr)
		return result, replyErr
	}

	assistantMsg, err := s.messages.AppendMessage(ctx, store.NewMessage{
		SessionID: session.ID,
		Author:    store.AuthorAssistant,
		Content:   reply,
	})
	if err != nil {
		return result, err
	}
	s.history.Invalidate(ctx, userID)
	result.AssistantMessage = assistantMsg

	log.Info("turn completed", "reply_length", len(reply))
	return result, nil
}

func isUpstreamFailure(err error) bool {
	return errors.Is(err, apperr.ErrUpstreamUnavailable) || errors.Is(err, apperr.ErrEmptyResponse)
}

// classify never fails the turn; an unusable result is stored as unscored.
func (s *ChatService) classify(ctx context.Context, content string) *Classification {
	if s.classifier == nil {
		return nil
	}
	c, err := s.classifier.Classify(ctx, content)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("classification failed, message stays unscored", "error", err)
		return nil
	}
	return c
}

func (s *ChatService) reply(ctx context.Context, session *store.Session, content string, classification *Classification) (string, error) {
	topic := ""
	if session.Topic != nil {
		topic = *session.Topic
	}
	prompt, err := Compose(ctx, session.Type, topic, content, classification)
	if err != nil {
		return "", err
	}
	return s.respondWithRetry(ctx, prompt)
}

// respondWithRetry retries once, and only when the backend could not be reached.
func (s *ChatService) respondWithRetry(ctx context.Context, prompt string) (string, error) {
	reply, err := s.llm.Respond(ctx, prompt)
	if err == nil || !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		return reply, err
	}
	observability.LoggerFromContext(ctx).Warn("completion failed, retrying once", "error", err, "delay", s.retryDelay)

	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", err
	case <-timer.C:
	}
	return s.llm.Respond(ctx, prompt)
}
