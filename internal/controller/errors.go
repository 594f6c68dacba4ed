package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/rest"
	"github.com/sharetube/watchsync/pkg/streamurl"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrNotParticipant),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, streamurl.ErrVideoNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrAccessDenied),
		errors.Is(err, room.ErrNotHost),
		errors.Is(err, room.ErrInvalidPassword):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, room.ErrValidationFailed),
		errors.Is(err, room.ErrPasswordRequired),
		errors.Is(err, streamurl.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, streamurl.ErrVideoNotEmbeddable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, streamurl.ErrUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, room.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)

	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "service temporarily unavailable"
		c.logger.ErrorContext(r.Context(), "upstream failure", "error", err)
	case http.StatusInternalServerError:
		message = "internal error"
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	default:
		c.logger.InfoContext(r.Context(), "request rejected", "status", status, "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": message})
}

func (c *Controller) readRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.DebugContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}
