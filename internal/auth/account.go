package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

type iAccountRepo interface {
	CreateUser(context.Context, *directory.CreateUserParams) (directory.User, error)
	FindUserByID(ctx context.Context, id string) (directory.User, error)
	FindUserByUsername(ctx context.Context, username string) (directory.User, error)
}

type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProfile(u directory.User) Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// Credentials is what register and login hand back to the client.
type Credentials struct {
	User  Profile `json:"user"`
	Token string  `json:"token"`
}

// Accounts registers users and exchanges passwords for bearer tokens.
type Accounts struct {
	users      iAccountRepo
	tokens     *Tokens
	bcryptCost int
	now        func() time.Time
}

func NewAccounts(users iAccountRepo, tokens *Tokens, bcryptCost int) *Accounts {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	return &Accounts{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

type RegisterParams struct {
	Username string
	Name     string
	Password string
}

func (a *Accounts) Register(ctx context.Context, params *RegisterParams) (Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), a.bcryptCost)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.users.CreateUser(ctx, &directory.CreateUserParams{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Username:     strings.ToLower(strings.TrimSpace(params.Username)),
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: string(hash),
		CreatedAt:    a.now(),
	})
	if err != nil {
		if errors.Is(err, directory.ErrConflict) {
			return Credentials{}, ErrUsernameTaken
		}
		return Credentials{}, fmt.Errorf("failed to create user: %w", err)
	}

	return a.credentials(user)
}

// Login checks the password. Unknown users and wrong passwords fail alike.
func (a *Accounts) Login(ctx context.Context, username, password string) (Credentials, error) {
	user, err := a.users.FindUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Credentials{}, ErrInvalidCredentials
		}
		return Credentials{}, fmt.Errorf("failed to find user: %w", err)
	}

	if user.PasswordHash == "" {
		return Credentials{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Credentials{}, ErrInvalidCredentials
	}

	return a.credentials(user)
}

func (a *Accounts) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("failed to find user: %w", err)
	}

	return toProfile(user), nil
}

func (a *Accounts) credentials(user directory.User) (Credentials, error) {
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to issue token: %w", err)
	}

	return Credentials{User: toProfile(user), Token: token}, nil
}
