package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping cockroach integration test in short mode")
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		t.Skipf("start cockroach test server: %v", err)
	}
	t.Cleanup(server.Stop)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepo(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	return repo
}

func TestRepoParticipationLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	host, err := repo.CreateUser(ctx, &directory.CreateUserParams{ID: uuid.NewString(), Username: "host", Name: "Host", CreatedAt: now})
	require.NoError(t, err)
	guest, err := repo.CreateUser(ctx, &directory.CreateUserParams{ID: uuid.NewString(), Username: "guest", CreatedAt: now})
	require.NoError(t, err)
	other, err := repo.CreateUser(ctx, &directory.CreateUserParams{ID: uuid.NewString(), Username: "other", CreatedAt: now})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, &directory.CreateUserParams{ID: uuid.NewString(), Username: "host", CreatedAt: now})
	assert.ErrorIs(t, err, directory.ErrConflict)

	room, err := repo.CreateRoom(ctx, &directory.CreateRoomParams{
		ID:              uuid.NewString(),
		Name:            "movie night",
		Type:            "YOUTUBE_LINK",
		StreamURL:       "https://youtu.be/dQw4w9WgXcQ",
		HostID:          host.ID,
		IsPrivate:       true,
		PasswordHash:    "hash",
		MaxParticipants: 1,
		CreatedAt:       now,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, room.CurrentParticipants)

	_, err = repo.FindParticipation(ctx, room.ID, guest.ID)
	assert.ErrorIs(t, err, directory.ErrParticipationNotFound)

	_, err = repo.AddParticipant(ctx, &directory.AddParticipantParams{RoomID: room.ID, UserID: guest.ID, At: now})
	require.NoError(t, err)
	_, err = repo.AddParticipant(ctx, &directory.AddParticipantParams{RoomID: room.ID, UserID: guest.ID, At: now})
	require.NoError(t, err)

	_, err = repo.AddParticipant(ctx, &directory.AddParticipantParams{RoomID: room.ID, UserID: other.ID, At: now})
	assert.True(t, errors.Is(err, directory.ErrRoomFull), "expected room full, got %v", err)

	p, err := repo.FindParticipation(ctx, room.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	participants, err := repo.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "guest", participants[0].User.Username)

	require.NoError(t, repo.RemoveParticipant(ctx, &directory.RemoveParticipantParams{RoomID: room.ID, UserID: guest.ID, At: now}))
	assert.ErrorIs(t, repo.RemoveParticipant(ctx, &directory.RemoveParticipantParams{RoomID: room.ID, UserID: guest.ID, At: now}), directory.ErrParticipationNotFound)

	room, err = repo.FindRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, room.CurrentParticipants)

	_, err = repo.FindRoomByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, directory.ErrRoomNotFound)
	_, err = repo.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestRepoRoomDirectory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	host, err := repo.CreateUser(ctx, &directory.CreateUserParams{ID: uuid.NewString(), Username: "host", PasswordHash: "hash", CreatedAt: now})
	require.NoError(t, err)
	found, err := repo.FindUserByUsername(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, host.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	public, err := repo.CreateRoom(ctx, &directory.CreateRoomParams{
		ID: uuid.NewString(), Name: "open", Type: "EXTERNAL_LINK", StreamURL: "https://cdn.example.com/a.mp4",
		HostID: host.ID, MaxParticipants: 3, CreatedAt: now,
	})
	require.NoError(t, err)

	rooms, err := repo.ListPublicRooms(ctx, &directory.ListRoomsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, public.ID, rooms[0].ID)

	updated, err := repo.UpdateRoom(ctx, &directory.UpdateRoomParams{
		ID: public.ID, Name: "closed", StreamURL: public.StreamURL, IsPrivate: true, PasswordHash: "pw", MaxParticipants: 3,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsPrivate)

	rooms, err = repo.ListPublicRooms(ctx, &directory.ListRoomsParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = repo.ListRoomsByHost(ctx, host.ID, &directory.ListRoomsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	require.NoError(t, repo.DeleteRoom(ctx, public.ID))
	assert.ErrorIs(t, repo.DeleteRoom(ctx, public.ID), directory.ErrRoomNotFound)
}
