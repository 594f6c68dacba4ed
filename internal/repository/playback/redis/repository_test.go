package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/repository/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, cfg Config) (*Repo, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, cfg), s
}

func TestGetOrInitConcurrentCreatesOneState(t *testing.T) {
	repo, s := newTestRepo(t, Config{StateTTL: time.Hour, EventLogLimit: 10})
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	var wg sync.WaitGroup
	results := make([]playback.State, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.GetOrInit(ctx, "room-1", base.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 0.0, results[0].VideoPosition)
	assert.False(t, results[0].IsPlaying)
	assert.Nil(t, results[0].VideoDuration)

	assert.Equal(t, []string{"room:room-1:playback"}, s.Keys())
	assert.True(t, s.TTL("room:room-1:playback") > 0)
}

func TestCommitReplacesState(t *testing.T) {
	repo, _ := newTestRepo(t, Config{})
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	_, err := repo.GetOrInit(ctx, "r", at)
	require.NoError(t, err)

	duration := 300.5
	committed, err := repo.Commit(ctx, &playback.CommitParams{
		RoomID:        "r",
		VideoPosition: 42.25,
		IsPlaying:     true,
		VideoDuration: &duration,
		UpdatedBy:     "u1",
		UpdatedAt:     at.Add(time.Second),
	})
	require.NoError(t, err)

	got, err := repo.GetOrInit(ctx, "r", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, committed, got)
	assert.Equal(t, 42.25, got.VideoPosition)
	assert.True(t, got.IsPlaying)
	require.NotNil(t, got.VideoDuration)
	assert.Equal(t, 300.5, *got.VideoDuration)
	assert.Equal(t, "u1", got.UpdatedBy)
	assert.Equal(t, at.Add(time.Second).UnixMilli(), got.LastUpdated.UnixMilli())

	_, err = repo.Commit(ctx, &playback.CommitParams{
		RoomID:    "r",
		UpdatedBy: "u2",
		UpdatedAt: at.Add(2 * time.Second),
	})
	require.NoError(t, err)

	got, err = repo.GetOrInit(ctx, "r", at)
	require.NoError(t, err)
	assert.Nil(t, got.VideoDuration)
	assert.False(t, got.IsPlaying)
	assert.Equal(t, 0.0, got.VideoPosition)
}

func TestEventLogIsBoundedAndNewestFirst(t *testing.T) {
	repo, _ := newTestRepo(t, Config{EventLogLimit: 3})
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	for i, typ := range []string{"join", "play", "pause", "seek", "leave"} {
		_, err := repo.AppendEvent(ctx, &playback.AppendEventParams{
			RoomID:    "r",
			UserID:    "u",
			EventType: typ,
			EventData: map[string]any{"n": i},
			Timestamp: at.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	events, err := repo.RecentEvents(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "leave", events[0].EventType)
	assert.Equal(t, "seek", events[1].EventType)
	assert.Equal(t, "pause", events[2].EventType)
	assert.Equal(t, float64(4), events[0].EventData["n"])
	assert.Equal(t, at.Add(4*time.Second).UnixMilli(), events[0].Timestamp.UnixMilli())

	events, err = repo.RecentEvents(ctx, "r", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "leave", events[0].EventType)

	events, err = repo.RecentEvents(ctx, "empty", 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeleteDropsStateAndEvents(t *testing.T) {
	repo, s := newTestRepo(t, Config{EventLogLimit: 10})
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	_, err := repo.GetOrInit(ctx, "r", at)
	require.NoError(t, err)
	_, err = repo.AppendEvent(ctx, &playback.AppendEventParams{RoomID: "r", UserID: "u", EventType: "play", Timestamp: at})
	require.NoError(t, err)
	require.Len(t, s.Keys(), 2)

	require.NoError(t, repo.Delete(ctx, "r"))
	assert.Empty(t, s.Keys())

	require.NoError(t, repo.Delete(ctx, "r"))
}
