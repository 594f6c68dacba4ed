package gateway

import (
	"errors"

	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

var (
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrNotInRoom     = errors.New("not in the specified room")
	ErrAlreadyExists = errors.New("session already registered")
	ErrClosed        = errors.New("gateway is stopped")
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL"
)

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// validationError carries a payload validation failure to the error handler.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func errorCode(err error) string {
	var vErr validationError
	switch {
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, room.ErrRoomNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotInRoom),
		errors.Is(err, room.ErrAccessDenied),
		errors.Is(err, room.ErrNotHost):
		return CodeAccessDenied
	case errors.As(err, &vErr),
		errors.Is(err, room.ErrValidationFailed),
		errors.Is(err, wsrouter.ErrInvalidMessage),
		errors.Is(err, wsrouter.ErrUnknownMessageType):
		return CodeValidationFailed
	case errors.Is(err, room.ErrUpstreamUnavailable):
		return CodeUpstreamUnavailable
	default:
		return CodeInternal
	}
}

// errorMessage hides internal detail behind upstream and unknown failures.
func errorMessage(err error) string {
	switch errorCode(err) {
	case CodeUpstreamUnavailable:
		return "service temporarily unavailable"
	case CodeInternal:
		return "internal error"
	default:
		return err.Error()
	}
}
