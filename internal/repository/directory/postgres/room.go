package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sharetube/watchsync/internal/repository/directory"
)

const roomColumns = `id, name, description, type, stream_url, host_id, is_private,
	password_hash, max_participants, current_participants, created_at`

func scanRoom(row pgx.Row) (directory.Room, error) {
	var room directory.Room
	err := row.Scan(
		&room.ID, &room.Name, &room.Description, &room.Type, &room.StreamURL, &room.HostID,
		&room.IsPrivate, &room.PasswordHash, &room.MaxParticipants, &room.CurrentParticipants,
		&room.CreatedAt,
	)
	return room, err
}

func (r *Repo) CreateRoom(ctx context.Context, params *directory.CreateRoomParams) (directory.Room, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, name, description, type, stream_url, host_id, is_private,
			password_hash, max_participants, current_participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
		RETURNING `+roomColumns,
		params.ID, params.Name, params.Description, params.Type, params.StreamURL, params.HostID,
		params.IsPrivate, params.PasswordHash, params.MaxParticipants, params.CreatedAt.UTC(),
	)

	room, err := scanRoom(row)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return directory.Room{}, directory.ErrConflict
		case isForeignKeyViolation(err):
			return directory.Room{}, directory.ErrUserNotFound
		}
		return directory.Room{}, fmt.Errorf("insert room: %w", err)
	}

	return room, nil
}

func (r *Repo) FindRoomByID(ctx context.Context, id string) (directory.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Room{}, directory.ErrRoomNotFound
		}
		return directory.Room{}, fmt.Errorf("select room: %w", err)
	}

	return room, nil
}

// UpdateRoom overwrites the editable fields of the room.
func (r *Repo) UpdateRoom(ctx context.Context, params *directory.UpdateRoomParams) (directory.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, `
		UPDATE rooms
		SET name = $2, description = $3, stream_url = $4, is_private = $5, password_hash = $6, max_participants = $7
		WHERE id = $1
		RETURNING `+roomColumns,
		params.ID, params.Name, params.Description, params.StreamURL, params.IsPrivate, params.PasswordHash,
		params.MaxParticipants,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Room{}, directory.ErrRoomNotFound
		}
		return directory.Room{}, fmt.Errorf("update room: %w", err)
	}

	return room, nil
}

func (r *Repo) DeleteRoom(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return directory.ErrRoomNotFound
	}

	return nil
}

func (r *Repo) ListPublicRooms(ctx context.Context, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE NOT is_private
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, params.Limit, params.Offset)
}

func (r *Repo) ListRoomsByHost(ctx context.Context, hostID string, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE host_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, hostID, params.Limit, params.Offset)
}

func (r *Repo) ListJoinedRooms(ctx context.Context, userID string, params *directory.ListRoomsParams) ([]directory.Room, error) {
	return r.listRooms(ctx, `
		SELECT r.id, r.name, r.description, r.type, r.stream_url, r.host_id, r.is_private,
			r.password_hash, r.max_participants, r.current_participants, r.created_at
		FROM room_participants p
		JOIN rooms r ON r.id = p.room_id
		WHERE p.user_id = $1 AND p.is_active
		ORDER BY p.joined_at DESC, r.id
		LIMIT $2 OFFSET $3
	`, userID, params.Limit, params.Offset)
}

func (r *Repo) listRooms(ctx context.Context, query string, args ...any) ([]directory.Room, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (directory.Room, error) {
		return scanRoom(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect rooms: %w", err)
	}

	return rooms, nil
}

func (r *Repo) FindParticipation(ctx context.Context, roomID, userID string) (directory.Participation, error) {
	var (
		p      directory.Participation
		leftAt *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT room_id, user_id, is_active, joined_at, left_at
		FROM room_participants
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID).Scan(&p.RoomID, &p.UserID, &p.IsActive, &p.JoinedAt, &leftAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Participation{}, directory.ErrParticipationNotFound
		}
		return directory.Participation{}, fmt.Errorf("select participation: %w", err)
	}
	p.LeftAt = leftAt

	return p, nil
}

// AddParticipant activates the user's participation, enforcing the room's
// participant cap. Joining an already active participation is a no-op.
func (r *Repo) AddParticipant(ctx context.Context, params *directory.AddParticipantParams) (directory.Participation, error) {
	var result directory.Participation
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current, capacity int
		err := tx.QueryRow(ctx, `
			SELECT current_participants, max_participants FROM rooms WHERE id = $1 FOR UPDATE
		`, params.RoomID).Scan(&current, &capacity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return directory.ErrRoomNotFound
			}
			return fmt.Errorf("lock room: %w", err)
		}

		var active bool
		var joinedAt time.Time
		err = tx.QueryRow(ctx, `
			SELECT is_active, joined_at FROM room_participants WHERE room_id = $1 AND user_id = $2
		`, params.RoomID, params.UserID).Scan(&active, &joinedAt)
		switch {
		case err == nil && active:
			result = directory.Participation{RoomID: params.RoomID, UserID: params.UserID, IsActive: true, JoinedAt: joinedAt}
			return nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("select participation: %w", err)
		}

		if current >= capacity {
			return directory.ErrRoomFull
		}

		at := params.At.UTC()
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_participants (room_id, user_id, is_active, joined_at, left_at)
			VALUES ($1, $2, TRUE, $3, NULL)
			ON CONFLICT (room_id, user_id) DO UPDATE
			SET is_active = TRUE, joined_at = EXCLUDED.joined_at, left_at = NULL
		`, params.RoomID, params.UserID, at); err != nil {
			if isForeignKeyViolation(err) {
				return directory.ErrUserNotFound
			}
			return fmt.Errorf("upsert participation: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE rooms SET current_participants = current_participants + 1 WHERE id = $1
		`, params.RoomID); err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}

		result = directory.Participation{RoomID: params.RoomID, UserID: params.UserID, IsActive: true, JoinedAt: at}
		return nil
	})
	if err != nil {
		return directory.Participation{}, err
	}

	return result, nil
}

func (r *Repo) RemoveParticipant(ctx context.Context, params *directory.RemoveParticipantParams) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE room_participants
			SET is_active = FALSE, left_at = $3
			WHERE room_id = $1 AND user_id = $2 AND is_active
		`, params.RoomID, params.UserID, params.At.UTC())
		if err != nil {
			return fmt.Errorf("deactivate participation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return directory.ErrParticipationNotFound
		}

		if _, err := tx.Exec(ctx, `
			UPDATE rooms SET current_participants = GREATEST(current_participants - 1, 0) WHERE id = $1
		`, params.RoomID); err != nil {
			return fmt.Errorf("decrement participants: %w", err)
		}

		return nil
	})
}

func (r *Repo) ListParticipants(ctx context.Context, roomID string) ([]directory.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.username, u.name, u.created_at, p.joined_at
		FROM room_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.room_id = $1 AND p.is_active
		ORDER BY p.joined_at, u.id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []directory.Participant
	for rows.Next() {
		var p directory.Participant
		if err := rows.Scan(&p.User.ID, &p.User.Username, &p.User.Name, &p.User.CreatedAt, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}
