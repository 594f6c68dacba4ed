package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sharetube/watchsync/internal/repository/directory"
)

type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type iUserRepo interface {
	FindUserByID(ctx context.Context, id string) (directory.User, error)
}

type Authenticator struct {
	tokens *Tokens
	users  iUserRepo
}

func NewAuthenticator(tokens *Tokens, users iUserRepo) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
	}
}

// Authenticate resolves a bearer token to the identity of an existing user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: user not found", ErrUnauthenticated)
		}
		return Identity{}, fmt.Errorf("failed to find user: %w", err)
	}

	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
	}, nil
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter used by browser websockets.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}

	return r.URL.Query().Get("token")
}
