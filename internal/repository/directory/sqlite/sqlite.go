package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sharetube/watchsync/internal/repository/directory"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	type                 TEXT NOT NULL,
	stream_url           TEXT NOT NULL,
	host_id              TEXT NOT NULL REFERENCES users (id),
	is_private           INTEGER NOT NULL DEFAULT 0,
	password_hash        TEXT NOT NULL DEFAULT '',
	max_participants     INTEGER NOT NULL,
	current_participants INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id    TEXT NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	is_active  INTEGER NOT NULL DEFAULT 1,
	joined_at  INTEGER NOT NULL,
	left_at    INTEGER,
	PRIMARY KEY (room_id, user_id)
);
`

// Repo is an embedded SQLite room directory for development and tests.
// Timestamps are stored as unix milliseconds.
type Repo struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serialises writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *Repo) CreateUser(ctx context.Context, params *directory.CreateUserParams) (directory.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, params.ID, params.Username, params.Name, params.PasswordHash, toMillis(params.CreatedAt))
	if err != nil {
		if isConstraint(err, "UNIQUE") {
			return directory.User{}, directory.ErrConflict
		}
		return directory.User{}, fmt.Errorf("insert user: %w", err)
	}

	return directory.User{
		ID:           params.ID,
		Username:     params.Username,
		Name:         params.Name,
		PasswordHash: params.PasswordHash,
		CreatedAt:    fromMillis(toMillis(params.CreatedAt)),
	}, nil
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (directory.User, error) {
	return r.findUser(ctx, `id = ?`, id)
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (directory.User, error) {
	return r.findUser(ctx, `username = ?`, username)
}

func (r *Repo) findUser(ctx context.Context, where string, arg any) (directory.User, error) {
	var (
		u         directory.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, name, password_hash, created_at FROM users WHERE `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.User{}, directory.ErrUserNotFound
		}
		return directory.User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)

	return u, nil
}
