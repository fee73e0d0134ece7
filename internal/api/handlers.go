package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/auth"
	"mindmate.io/companion/internal/core"
	"mindmate.io/companion/internal/store"
)

type APIHandler struct {
	auth    *auth.Service
	chat    *core.ChatService
	history *core.HistoryService
}

func NewAPIHandler(authService *auth.Service, chat *core.ChatService, history *core.HistoryService) *APIHandler {
	return &APIHandler{auth: authService, chat: chat, history: history}
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer"})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *APIHandler) ResourcesHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, core.Resources())
}

type StartSessionRequest struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

type StartSessionResponse struct {
	SessionID string         `json:"session_id"`
	Session   *store.Session `json:"session"`
}

func (h *APIHandler) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionType, err := store.ParseSessionType(req.Type)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	session, err := h.chat.BeginSession(r.Context(), userID, sessionType, req.Topic)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, StartSessionResponse{SessionID: session.ID, Session: session})
}

type SessionResponse struct {
	Session *store.Session `json:"session"`
}

func (h *APIHandler) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chat.EndSession(r.Context(), userID, sessionID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, messages, err := h.chat.SessionMessages(r.Context(), userID, sessionID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Session  *store.Session  `json:"session"`
		Messages []store.Message `json:"messages"`
	}{session, messages})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

type PostMessageResponse struct {
	Reply            string         `json:"reply"`
	Emotion          *string        `json:"emotion,omitempty"`
	Sentiment        *float64       `json:"sentiment,omitempty"`
	UserMessage      *store.Message `json:"user_message"`
	AssistantMessage *store.Message `json:"assistant_message"`
}

type DegradedResponse struct {
	Error       string         `json:"error"`
	Degraded    bool           `json:"degraded"`
	UserMessage *store.Message `json:"user_message"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.chat.SendMessage(r.Context(), userID, sessionID, req.Content)
	if err != nil {
		if turn != nil && turn.UserMessage != nil &&
			(errors.Is(err, apperr.ErrUpstreamUnavailable) || errors.Is(err, apperr.ErrEmptyResponse)) {
			respondJSON(w, http.StatusBadGateway, DegradedResponse{
				Error:       publicMessage(http.StatusBadGateway, err),
				Degraded:    true,
				UserMessage: turn.UserMessage,
			})
			return
		}
		respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PostMessageResponse{
		Reply:            turn.AssistantMessage.Content,
		Emotion:          turn.UserMessage.Emotion,
		Sentiment:        turn.UserMessage.Sentiment,
		UserMessage:      turn.UserMessage,
		AssistantMessage: turn.AssistantMessage,
	})
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.history.RenderHistory(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}
