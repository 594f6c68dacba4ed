package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/repository/playback"
)

type stateHash struct {
	VideoPosition float64 `redis:"video_position"`
	IsPlaying     bool    `redis:"is_playing"`
	VideoDuration string  `redis:"video_duration"`
	LastUpdated   int64   `redis:"last_updated"`
	UpdatedBy     string  `redis:"updated_by"`
}

func (h stateHash) toState(roomID string) (playback.State, error) {
	state := playback.State{
		RoomID:        roomID,
		VideoPosition: h.VideoPosition,
		IsPlaying:     h.IsPlaying,
		LastUpdated:   time.UnixMilli(h.LastUpdated),
		UpdatedBy:     h.UpdatedBy,
	}

	if h.VideoDuration != "" {
		d, err := strconv.ParseFloat(h.VideoDuration, 64)
		if err != nil {
			return playback.State{}, fmt.Errorf("%w: video_duration: %w", playback.ErrCorruptState, err)
		}
		state.VideoDuration = &d
	}

	return state, nil
}

func pairsToMap(reply any) (map[string]string, error) {
	items, ok := reply.([]any)
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("%w: unexpected script reply %T", playback.ErrCorruptState, reply)
	}

	m := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		m[k] = v
	}

	return m, nil
}

// GetOrInit returns the room's state, creating a paused state at position zero
// stamped with at when none exists yet.
func (r Repo) GetOrInit(ctx context.Context, roomID string, at time.Time) (playback.State, error) {
	funcName := "PlaybackRepo:GetOrInit"
	slog.DebugContext(ctx, funcName, "room_id", roomID)

	reply, err := getOrInitScript.Run(ctx, r.rc,
		[]string{r.getStateKey(roomID)},
		at.UnixMilli(), r.stateTTL.Milliseconds(),
	).Result()
	if err != nil {
		slog.ErrorContext(ctx, funcName, "error", err)
		return playback.State{}, fmt.Errorf("failed to get or init state: %w", err)
	}

	fields, err := pairsToMap(reply)
	if err != nil {
		return playback.State{}, err
	}

	var h stateHash
	if err := goredis.NewMapStringStringResult(fields, nil).Scan(&h); err != nil {
		return playback.State{}, fmt.Errorf("%w: %w", playback.ErrCorruptState, err)
	}

	return h.toState(roomID)
}

// Commit replaces every mutable field of the room's state.
func (r Repo) Commit(ctx context.Context, params *playback.CommitParams) (playback.State, error) {
	funcName := "PlaybackRepo:Commit"
	slog.DebugContext(ctx, funcName, "params", params)

	key := r.getStateKey(params.RoomID)
	fields := []any{
		"video_position", params.VideoPosition,
		"is_playing", params.IsPlaying,
		"last_updated", params.UpdatedAt.UnixMilli(),
		"updated_by", params.UpdatedBy,
	}

	pipe := r.rc.TxPipeline()
	if params.VideoDuration != nil {
		fields = append(fields, "video_duration", *params.VideoDuration)
	} else {
		pipe.HDel(ctx, key, "video_duration")
	}
	pipe.HSet(ctx, key, fields...)
	if r.stateTTL > 0 {
		pipe.Expire(ctx, key, r.stateTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, funcName, "error", err)
		return playback.State{}, fmt.Errorf("failed to commit state: %w", err)
	}

	return playback.State{
		RoomID:        params.RoomID,
		VideoPosition: params.VideoPosition,
		IsPlaying:     params.IsPlaying,
		VideoDuration: params.VideoDuration,
		LastUpdated:   time.UnixMilli(params.UpdatedAt.UnixMilli()),
		UpdatedBy:     params.UpdatedBy,
	}, nil
}

// Delete drops the room's state and event log.
func (r Repo) Delete(ctx context.Context, roomID string) error {
	funcName := "PlaybackRepo:Delete"
	slog.DebugContext(ctx, funcName, "room_id", roomID)

	if err := r.rc.Del(ctx, r.getStateKey(roomID), r.getEventsKey(roomID)).Err(); err != nil {
		slog.ErrorContext(ctx, funcName, "error", err)
		return fmt.Errorf("failed to delete room playback: %w", err)
	}

	return nil
}
