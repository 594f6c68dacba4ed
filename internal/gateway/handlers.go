package gateway

import (
	"context"
	"fmt"
	"maps"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/validator"
)

func (g *Gateway) validateInput(input any) error {
	if errs, ok := g.validate.Validate(input); !ok {
		return validationError{message: validator.Summary(errs)}
	}
	return nil
}

type RoomInput struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
}

func (g *Gateway) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	if err := g.validateInput(input); err != nil {
		return err
	}
	s := sessionFromCtx(ctx)

	grant, err := g.roomService.Authorize(ctx, input.RoomID, s.identity.UserID)
	if err != nil {
		return fmt.Errorf("failed to authorize join: %w", err)
	}

	prev, err := g.registry.Join(s.id, input.RoomID)
	if err != nil {
		return err
	}
	if prev != "" {
		g.leave(ctx, s, prev, map[string]any{"reason": "joined another room"})
	}
	s.setGrant(grant)
	g.logger.InfoContext(ctx, "session joined room", "room_id", input.RoomID, "role", grant.Role().String())

	state, err := g.roomService.JoinSync(ctx, grant)
	if err != nil {
		g.registry.Leave(s.id, input.RoomID)
		s.clearGrant(input.RoomID)
		return fmt.Errorf("failed to sync joining session: %w", err)
	}

	if err := s.Send(&Output{Type: "room-state", Payload: state}); err != nil {
		return fmt.Errorf("failed to send room state: %w", err)
	}

	g.broadcast(ctx, g.registry.Peers(input.RoomID, s.id), &Output{
		Type: "user-joined",
		Payload: map[string]any{
			"user":      s.identity,
			"roomId":    input.RoomID,
			"timestamp": g.timestamp(),
		},
	})

	return nil
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	if err := g.validateInput(input); err != nil {
		return err
	}
	s := sessionFromCtx(ctx)

	if !g.registry.Leave(s.id, input.RoomID) {
		return nil
	}
	g.leave(ctx, s, input.RoomID, map[string]any{})

	return nil
}

// attachedGrant returns the cached grant for roomID when the session is in it.
func (g *Gateway) attachedGrant(s *Session, roomID string) (room.Grant, error) {
	current, ok := g.registry.CurrentRoom(s.id)
	if !ok || current != roomID {
		return room.Grant{}, ErrNotInRoom
	}

	grant, ok := s.roomGrant(roomID)
	if !ok {
		return room.Grant{}, ErrNotInRoom
	}

	return grant, nil
}

type VideoEventInput struct {
	RoomID        string         `json:"roomId" validate:"required,uuid"`
	VideoPosition *float64       `json:"videoPosition" validate:"required,gte=0"`
	IsPlaying     *bool          `json:"isPlaying" validate:"required"`
	VideoDuration *float64       `json:"videoDuration" validate:"omitempty,gte=0"`
	EventData     map[string]any `json:"eventData"`
}

func (g *Gateway) videoHandler(eventType room.EventType) func(context.Context, *websocket.Conn, VideoEventInput) error {
	return func(ctx context.Context, _ *websocket.Conn, input VideoEventInput) error {
		if err := g.validateInput(input); err != nil {
			return err
		}
		s := sessionFromCtx(ctx)

		grant, err := g.attachedGrant(s, input.RoomID)
		if err != nil {
			return err
		}

		params := &room.UpdateStateParams{
			EventType:     eventType,
			VideoPosition: *input.VideoPosition,
			IsPlaying:     *input.IsPlaying,
			VideoDuration: input.VideoDuration,
			EventData:     input.EventData,
		}
		if eventType == room.EventSeek {
			params.OnSettled = func(outcome room.SeekOutcome) {
				g.settleSeek(ctx, s, input, outcome)
			}
		}

		resp, err := g.roomService.UpdateState(ctx, grant, params)
		if err != nil {
			return fmt.Errorf("failed to update playback state: %w", err)
		}
		if resp.Pending {
			return nil
		}

		g.relayVideoEvent(ctx, s, eventType, input, resp.State)

		return nil
	}
}

func (g *Gateway) settleSeek(ctx context.Context, s *Session, input VideoEventInput, outcome room.SeekOutcome) {
	switch {
	case outcome.Discarded:
		return
	case outcome.Err != nil:
		g.handleError(ctx, nil, fmt.Errorf("failed to commit seek: %w", outcome.Err))
	default:
		g.relayVideoEvent(ctx, s, room.EventSeek, input, outcome.State)
	}
}

// relayVideoEvent tells the other members of the room about a committed event
// and confirms it to the sender.
func (g *Gateway) relayVideoEvent(ctx context.Context, s *Session, eventType room.EventType, input VideoEventInput, state room.PlaybackState) {
	ts := g.timestamp()

	payload := make(map[string]any, len(input.EventData)+5)
	maps.Copy(payload, input.EventData)
	payload["videoPosition"] = state.VideoPosition
	payload["isPlaying"] = state.IsPlaying
	payload["videoDuration"] = state.VideoDuration
	payload["user"] = s.identity
	payload["timestamp"] = ts

	g.broadcast(ctx, g.registry.Peers(input.RoomID, s.id), &Output{
		Type:    "video-" + eventType.String(),
		Payload: payload,
	})

	if err := s.Send(&Output{
		Type: "event-confirmed",
		Payload: map[string]any{
			"eventType": eventType,
			"timestamp": ts,
			"state":     state,
		},
	}); err != nil {
		g.logger.DebugContext(ctx, "failed to confirm event", "event_type", eventType.String(), "error", err)
	}
}

func (g *Gateway) handleRequestSync(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	if err := g.validateInput(input); err != nil {
		return err
	}
	s := sessionFromCtx(ctx)

	grant, err := g.attachedGrant(s, input.RoomID)
	if err != nil {
		return err
	}

	state, err := g.roomService.Sync(ctx, grant)
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	return s.Send(&Output{Type: "sync-response", Payload: state})
}

type EmptyInput struct{}

func (g *Gateway) handleHeartbeat(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return sessionFromCtx(ctx).Send(&Output{
		Type:    "heartbeat-response",
		Payload: map[string]any{"timestamp": g.timestamp()},
	})
}
