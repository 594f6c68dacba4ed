package room

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrAccessDenied        = errors.New("access denied to room")
	ErrNotHost             = errors.New("only room host can perform this action")
	ErrNotParticipant      = errors.New("user is not a participant of the room")
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordRequired    = errors.New("password required for private room")
	ErrInvalidPassword     = errors.New("invalid room password")
	ErrRoomFull            = errors.New("room is full")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

func upstream(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrUpstreamUnavailable, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

var errClosed = errors.New("room service is closed")
