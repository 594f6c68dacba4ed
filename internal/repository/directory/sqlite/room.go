package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/repository/directory"
)

const roomColumns = `id, name, description, type, stream_url, host_id, is_private,
	password_hash, max_participants, current_participants, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (directory.Room, error) {
	var (
		room      directory.Room
		createdAt int64
	)
	err := row.Scan(
		&room.ID, &room.Name, &room.Description, &room.Type, &room.StreamURL, &room.HostID,
		&room.IsPrivate, &room.PasswordHash, &room.MaxParticipants, &room.CurrentParticipants,
		&createdAt,
	)
	room.CreatedAt = fromMillis(createdAt)
	return room, err
}

func (r *Repo) CreateRoom(ctx context.Context, params *directory.CreateRoomParams) (directory.Room, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, type, stream_url, host_id, is_private,
			password_hash, max_participants, current_participants, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, params.ID, params.Name, params.Description, params.Type, params.StreamURL, params.HostID,
		params.IsPrivate, params.PasswordHash, params.MaxParticipants, toMillis(params.CreatedAt))
	if err != nil {
		switch {
		case isConstraint(err, "UNIQUE"), isConstraint(err, "PRIMARY KEY"):
			return directory.Room{}, directory.ErrConflict
		case isConstraint(err, "FOREIGN KEY"):
			return directory.Room{}, directory.ErrUserNotFound
		}
		return directory.Room{}, fmt.Errorf("insert room: %w", err)
	}

	return r.FindRoomByID(ctx, params.ID)
}

func (r *Repo) FindRoomByID(ctx context.Context, id string) (directory.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.Room{}, directory.ErrRoomNotFound
		}
		return directory.Room{}, fmt.Errorf("select room: %w", err)
	}

	return room, nil
}

// UpdateRoom overwrites the editable fields of the room.
func (r *Repo) UpdateRoom(ctx context.Context, params *directory.UpdateRoomParams) (directory.Room, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, description = ?, stream_url = ?, is_private = ?, password_hash = ?, max_participants = ?
		WHERE id = ?
	`, params.Name, params.Description, params.StreamURL, params.IsPrivate, params.PasswordHash,
		params.MaxParticipants, params.ID)
	if err != nil {
		return directory.Room{}, fmt.Errorf("update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.Room{}, directory.ErrRoomNotFound
	}

	return r.FindRoomByID(ctx, params.ID)
}

// DeleteRoom removes the room and, through the foreign key cascade, its
// participations.
func (r *Repo) DeleteRoom(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}

// ListPublicRooms returns public rooms, newest first.
func (r *Repo) ListPublicRooms(ctx context.Context, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE is_private = 0
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, params.Limit, params.Offset)
}

// ListRoomsByHost returns the rooms hosted by hostID, newest first.
func (r *Repo) ListRoomsByHost(ctx context.Context, hostID string, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE host_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, hostID, params.Limit, params.Offset)
}

// ListJoinedRooms returns the rooms userID actively participates in, most
// recently joined first.
func (r *Repo) ListJoinedRooms(ctx context.Context, userID string, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT r.id, r.name, r.description, r.type, r.stream_url, r.host_id, r.is_private,
			r.password_hash, r.max_participants, r.current_participants, r.created_at
		FROM room_participants p
		JOIN rooms r ON r.id = p.room_id
		WHERE p.user_id = ? AND p.is_active = 1
		ORDER BY p.joined_at DESC, r.id
		LIMIT ? OFFSET ?
	`, userID, params.Limit, params.Offset)
}

func (r *Repo) listRooms(ctx context.Context, query string, args ...any) ([]directory.Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []directory.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return rooms, nil
}

func (r *Repo) FindParticipation(ctx context.Context, roomID, userID string) (directory.Participation, error) {
	var (
		p        directory.Participation
		joinedAt int64
		leftAt   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT room_id, user_id, is_active, joined_at, left_at
		FROM room_participants
		WHERE room_id = ? AND user_id = ?
	`, roomID, userID).Scan(&p.RoomID, &p.UserID, &p.IsActive, &joinedAt, &leftAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.Participation{}, directory.ErrParticipationNotFound
		}
		return directory.Participation{}, fmt.Errorf("select participation: %w", err)
	}

	p.JoinedAt = fromMillis(joinedAt)
	if leftAt.Valid {
		t := fromMillis(leftAt.Int64)
		p.LeftAt = &t
	}

	return p, nil
}

func (r *Repo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// AddParticipant activates the user's participation, enforcing the room's
// participant cap. Joining an already active participation is a no-op.
func (r *Repo) AddParticipant(ctx context.Context, params *directory.AddParticipantParams) (directory.Participation, error) {
	var result directory.Participation
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var current, capacity int
		err := tx.QueryRowContext(ctx, `
			SELECT current_participants, max_participants FROM rooms WHERE id = ?
		`, params.RoomID).Scan(&current, &capacity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return directory.ErrRoomNotFound
			}
			return fmt.Errorf("select room: %w", err)
		}

		var (
			active   bool
			joinedAt int64
		)
		err = tx.QueryRowContext(ctx, `
			SELECT is_active, joined_at FROM room_participants WHERE room_id = ? AND user_id = ?
		`, params.RoomID, params.UserID).Scan(&active, &joinedAt)
		switch {
		case err == nil && active:
			result = directory.Participation{RoomID: params.RoomID, UserID: params.UserID, IsActive: true, JoinedAt: fromMillis(joinedAt)}
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("select participation: %w", err)
		}

		if current >= capacity {
			return directory.ErrRoomFull
		}

		at := toMillis(params.At)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_participants (room_id, user_id, is_active, joined_at, left_at)
			VALUES (?, ?, 1, ?, NULL)
			ON CONFLICT (room_id, user_id) DO UPDATE
			SET is_active = 1, joined_at = excluded.joined_at, left_at = NULL
		`, params.RoomID, params.UserID, at); err != nil {
			if isConstraint(err, "FOREIGN KEY") {
				return directory.ErrUserNotFound
			}
			return fmt.Errorf("upsert participation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rooms SET current_participants = current_participants + 1 WHERE id = ?
		`, params.RoomID); err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}

		result = directory.Participation{RoomID: params.RoomID, UserID: params.UserID, IsActive: true, JoinedAt: fromMillis(at)}
		return nil
	})
	if err != nil {
		return directory.Participation{}, err
	}

	return result, nil
}

func (r *Repo) RemoveParticipant(ctx context.Context, params *directory.RemoveParticipantParams) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE room_participants
			SET is_active = 0, left_at = ?
			WHERE room_id = ? AND user_id = ? AND is_active = 1
		`, toMillis(params.At), params.RoomID, params.UserID)
		if err != nil {
			return fmt.Errorf("deactivate participation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return directory.ErrParticipationNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rooms SET current_participants = MAX(current_participants - 1, 0) WHERE id = ?
		`, params.RoomID); err != nil {
			return fmt.Errorf("decrement participants: %w", err)
		}

		return nil
	})
}

func (r *Repo) ListParticipants(ctx context.Context, roomID string) ([]directory.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.name, u.created_at, p.joined_at
		FROM room_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.room_id = ? AND p.is_active = 1
		ORDER BY p.joined_at, u.id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []directory.Participant
	for rows.Next() {
		var (
			p                   directory.Participant
			createdAt, joinedAt int64
		)
		if err := rows.Scan(&p.User.ID, &p.User.Username, &p.User.Name, &createdAt, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.User.CreatedAt = fromMillis(createdAt)
		p.JoinedAt = fromMillis(joinedAt)
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}
