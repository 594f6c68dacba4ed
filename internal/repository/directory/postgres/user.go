package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sharetube/watchsync/internal/repository/directory"
)

func (r *Repo) CreateUser(ctx context.Context, params *directory.CreateUserParams) (directory.User, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, params.ID, params.Username, params.Name, params.PasswordHash, params.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return directory.User{}, directory.ErrConflict
		}
		return directory.User{}, fmt.Errorf("insert user: %w", err)
	}

	return directory.User{
		ID:           params.ID,
		Username:     params.Username,
		Name:         params.Name,
		PasswordHash: params.PasswordHash,
		CreatedAt:    params.CreatedAt.UTC(),
	}, nil
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (directory.User, error) {
	return r.findUser(ctx, `id = $1`, id)
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (directory.User, error) {
	return r.findUser(ctx, `username = $1`, username)
}

func (r *Repo) findUser(ctx context.Context, where string, arg any) (directory.User, error) {
	var u directory.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, name, password_hash, created_at
		FROM users
		WHERE `+where, arg).Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.User{}, directory.ErrUserNotFound
		}
		return directory.User{}, fmt.Errorf("select user: %w", err)
	}

	return u, nil
}
