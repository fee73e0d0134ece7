package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/observability"
	"mindmate.io/companion/internal/store"
)

const maxUsernameLength = 64

type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

type Service struct {
	users  UserStore
	tokens *TokenIssuer
}

func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, username, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be 1-%d characters", apperr.ErrInvalidArgument, maxUsernameLength)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", apperr.ErrInvalidArgument)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks the credentials. An unknown user and a wrong password
// produce the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (int64, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, apperr.ErrUnauthenticated
		}
		return 0, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return 0, apperr.ErrUnauthenticated
	}
	return user.ID, nil
}

// Login authenticates and issues a bearer token for the user.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userID, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(userID)
}

// ValidateToken resolves a bearer token to a user id.
func (s *Service) ValidateToken(token string) (int64, error) {
	return s.tokens.Validate(token)
}

// CurrentUser loads the account behind an authenticated request.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*store.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
