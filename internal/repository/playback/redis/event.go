package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/repository/playback"
)

func (r Repo) AppendEvent(ctx context.Context, params *playback.AppendEventParams) (playback.Event, error) {
	funcName := "PlaybackRepo:AppendEvent"
	slog.DebugContext(ctx, funcName, "params", params)

	data, err := json.Marshal(params.EventData)
	if err != nil {
		return playback.Event{}, fmt.Errorf("failed to encode event data: %w", err)
	}

	key := r.getEventsKey(params.RoomID)
	pipe := r.rc.TxPipeline()
	add := pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: key,
		MaxLen: r.eventLogLimit,
		Values: map[string]any{
			"user_id":    params.UserID,
			"event_type": params.EventType,
			"event_data": string(data),
			"timestamp":  params.Timestamp.UnixMilli(),
		},
	})
	if r.stateTTL > 0 {
		pipe.Expire(ctx, key, r.stateTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, funcName, "error", err)
		return playback.Event{}, fmt.Errorf("failed to append event: %w", err)
	}

	return playback.Event{
		ID:        add.Val(),
		RoomID:    params.RoomID,
		UserID:    params.UserID,
		EventType: params.EventType,
		EventData: params.EventData,
		Timestamp: time.UnixMilli(params.Timestamp.UnixMilli()),
	}, nil
}

// RecentEvents returns up to limit events, newest first.
func (r Repo) RecentEvents(ctx context.Context, roomID string, limit int64) ([]playback.Event, error) {
	funcName := "PlaybackRepo:RecentEvents"
	slog.DebugContext(ctx, funcName, "room_id", roomID, "limit", limit)

	msgs, err := r.rc.XRevRangeN(ctx, r.getEventsKey(roomID), "+", "-", limit).Result()
	if err != nil {
		slog.ErrorContext(ctx, funcName, "error", err)
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	events := make([]playback.Event, 0, len(msgs))
	for _, msg := range msgs {
		event, err := eventFromMessage(roomID, msg)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func eventFromMessage(roomID string, msg goredis.XMessage) (playback.Event, error) {
	str := func(k string) string {
		v, _ := msg.Values[k].(string)
		return v
	}

	ts, err := strconv.ParseInt(str("timestamp"), 10, 64)
	if err != nil {
		return playback.Event{}, fmt.Errorf("%w: event %s timestamp: %w", playback.ErrCorruptState, msg.ID, err)
	}

	var data map[string]any
	if raw := str("event_data"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return playback.Event{}, fmt.Errorf("%w: event %s data: %w", playback.ErrCorruptState, msg.ID, err)
		}
	}

	return playback.Event{
		ID:        msg.ID,
		RoomID:    roomID,
		UserID:    str("user_id"),
		EventType: str("event_type"),
		EventData: data,
		Timestamp: time.UnixMilli(ts),
	}, nil
}
