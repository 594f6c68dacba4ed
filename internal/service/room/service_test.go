package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/internal/repository/directory/sqlite"
	playbackredis "github.com/sharetube/watchsync/internal/repository/playback/redis"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc      *Service
	dir      *sqlite.Repo
	playback *playbackredis.Repo
	redis    *miniredis.Miniredis
	clock    *testClock
}

func newTestEnv(t *testing.T, wrap func(iPlaybackRepo) iPlaybackRepo) *testEnv {
	t.Helper()

	s := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	dir, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })
	require.NoError(t, dir.EnsureSchema(context.Background()))

	pb := playbackredis.NewRepo(rc, playbackredis.Config{StateTTL: time.Hour, EventLogLimit: 1000})
	var repo iPlaybackRepo = pb
	if wrap != nil {
		repo = wrap(pb)
	}

	clock := newTestClock()
	svc := NewService(repo, dir, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		SeekDebounce: 150 * time.Millisecond,
		BcryptCost:   bcrypt.MinCost,
	}, WithClock(clock.Now))
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, dir: dir, playback: pb, redis: s, clock: clock}
}

func (e *testEnv) user(t *testing.T, id string) string {
	t.Helper()
	_, err := e.dir.CreateUser(context.Background(), &directory.CreateUserParams{
		ID: id, Username: id, Name: id, CreatedAt: e.clock.Now(),
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) room(t *testing.T, hostID string, private bool) Room {
	t.Helper()
	params := &CreateRoomParams{
		HostID:          hostID,
		Name:            "movie night",
		Type:            "YOUTUBE_LINK",
		StreamURL:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		MaxParticipants: 10,
		IsPrivate:       private,
	}
	if private {
		params.Password = "letmein"
	}
	r, err := e.svc.CreateRoom(context.Background(), params)
	require.NoError(t, err)
	return r
}

func (e *testEnv) grant(t *testing.T, roomID, userID string) Grant {
	t.Helper()
	g, err := e.svc.Authorize(context.Background(), roomID, userID)
	require.NoError(t, err)
	return g
}
