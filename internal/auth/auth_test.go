package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/internal/repository/directory/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers map[string]directory.User

func (f fakeUsers) FindUserByID(_ context.Context, id string) (directory.User, error) {
	u, ok := f[id]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return u, nil
}

func TestTokensRoundTripAndExpiry(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	token, err := tokens.Issue("user-1")
	require.NoError(t, err)

	userID, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	now = now.Add(2 * time.Hour)
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := NewTokens("other-secret", time.Hour)
	forged, err := other.Issue("user-1")
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).Verify(forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticator(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	a := NewAuthenticator(tokens, fakeUsers{"u1": {ID: "u1", Username: "alice", Name: "Alice"}})

	token, err := tokens.Issue("u1")
	require.NoError(t, err)
	id, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Username: "alice", Name: "Alice"}, id)

	ghost, err := tokens.Issue("ghost")
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", TokenFromRequest(r))
}

func newTestAccounts(t *testing.T) (*Accounts, *Tokens) {
	t.Helper()

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))

	tokens := NewTokens("secret", time.Hour)
	return NewAccounts(repo, tokens, bcrypt.MinCost), tokens
}

func TestAccountsRegisterAndLogin(t *testing.T) {
	accounts, tokens := newTestAccounts(t)
	ctx := context.Background()

	creds, err := accounts.Register(ctx, &RegisterParams{Username: " Alice ", Name: "Alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", creds.User.Username)

	userID, err := tokens.Verify(creds.Token)
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, userID)

	_, err = accounts.Register(ctx, &RegisterParams{Username: "ALICE", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	login, err := accounts.Login(ctx, "Alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, login.User.ID)

	_, err = accounts.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	profile, err := accounts.Profile(ctx, creds.User.ID)
	require.NoError(t, err)
	assert.Equal(t, creds.User, profile)

	_, err = accounts.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
