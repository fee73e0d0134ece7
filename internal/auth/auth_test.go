package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewService(db, tokens)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "  alice ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	token, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	me, err := svc.CurrentUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, err = svc.CurrentUser(ctx, userID+1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "", "secret-pass")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Register(ctx, "bob", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Register(ctx, "bob", "secret-pass")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "another-pass")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestBadCredentialsAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.Register(ctx, "carol", "secret-pass")
	require.NoError(t, err)

	_, wrongPassword := svc.Authenticate(ctx, "carol", "nope")
	_, unknownUser := svc.Authenticate(ctx, "mallory", "secret-pass")

	require.ErrorIs(t, wrongPassword, apperr.ErrUnauthenticated)
	require.ErrorIs(t, unknownUser, apperr.ErrUnauthenticated)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestTokenValidation(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-a", time.Hour)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		token, err := issuer.Issue(42)
		require.NoError(t, err)
		id, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenIssuer("secret-b", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue(42)
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		past, err := NewTokenIssuer("secret-a", time.Minute)
		require.NoError(t, err)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.Issue(42)
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte("secret-a"))
		require.NoError(t, err)
		_, err = issuer.Validate(signed)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-token")
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})

	_, err = NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}
