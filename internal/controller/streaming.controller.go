package controller

import (
	"context"
	"maps"
	"net/http"
	"strconv"
	"time"

	"github.com/sharetube/watchsync/internal/gateway"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/rest"
	"github.com/sharetube/watchsync/pkg/streamurl"
)

func (c *Controller) getState(w http.ResponseWriter, r *http.Request) {
	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	state, err := c.roomService.GetState(r.Context(), grant)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

type updateStateRequest struct {
	EventType     string         `json:"eventType" validate:"required,oneof=play pause seek sync"`
	VideoPosition *float64       `json:"videoPosition" validate:"required,gte=0"`
	IsPlaying     *bool          `json:"isPlaying" validate:"required"`
	VideoDuration *float64       `json:"videoDuration" validate:"omitempty,gte=0"`
	EventData     map[string]any `json:"eventData"`
}

// updateState commits a state change. Seeks are debounced like realtime
// seeks: the request waits for the window and answers 202 when a newer seek
// superseded it. A committed seek is broadcast even if the client has gone.
func (c *Controller) updateState(w http.ResponseWriter, r *http.Request) {
	var req updateStateRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	eventType, err := room.ParseEventType(req.EventType)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	notifyCtx := context.WithoutCancel(r.Context())
	settled := make(chan room.SeekOutcome, 1)
	params := &room.UpdateStateParams{
		EventType:     eventType,
		VideoPosition: *req.VideoPosition,
		IsPlaying:     *req.IsPlaying,
		VideoDuration: req.VideoDuration,
		EventData:     req.EventData,
		OnSettled: func(outcome room.SeekOutcome) {
			if outcome.Err == nil && !outcome.Discarded {
				c.notifyStateChange(notifyCtx, eventType, &req, outcome.State)
			}
			settled <- outcome
		},
	}

	resp, err := c.roomService.UpdateState(r.Context(), grant, params)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	if !resp.Pending {
		c.notifyStateChange(r.Context(), eventType, &req, resp.State)
		rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp.State})
		return
	}

	select {
	case outcome := <-settled:
		switch {
		case outcome.Err != nil:
			c.writeError(w, r, outcome.Err)
		case outcome.Discarded:
			rest.WriteJSON(w, http.StatusAccepted, rest.Envelope{"data": map[string]any{"superseded": true}})
		default:
			rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": outcome.State})
		}
	case <-r.Context().Done():
	}
}

func (c *Controller) notifyStateChange(ctx context.Context, eventType room.EventType, req *updateStateRequest, state room.PlaybackState) {
	payload := make(map[string]any, len(req.EventData)+5)
	maps.Copy(payload, req.EventData)
	payload["videoPosition"] = state.VideoPosition
	payload["isPlaying"] = state.IsPlaying
	payload["videoDuration"] = state.VideoDuration
	payload["user"] = c.getIdentityFromCtx(ctx)
	payload["timestamp"] = time.Now().UnixMilli()

	c.gateway.NotifyRoom(ctx, state.RoomID, &gateway.Output{
		Type:    "video-" + eventType.String(),
		Payload: payload,
	})
}

func (c *Controller) syncState(w http.ResponseWriter, r *http.Request) {
	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	state, err := c.roomService.Sync(r.Context(), grant)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

func (c *Controller) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	events, err := c.roomService.RecentEvents(r.Context(), grant, limit)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": events})
}

type validateURLRequest struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"required,oneof=YOUTUBE_LINK EXTERNAL_LINK"`
}

func (c *Controller) validateURL(w http.ResponseWriter, r *http.Request) {
	var req validateURLRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	validation, err := c.urlService.Validate(r.Context(), req.URL, streamurl.Kind(req.Type))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": validation})
}

type metadataQuery struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"required,oneof=YOUTUBE_LINK EXTERNAL_LINK"`
}

func (c *Controller) getMetadata(w http.ResponseWriter, r *http.Request) {
	query := metadataQuery{
		URL:  r.URL.Query().Get("url"),
		Type: r.URL.Query().Get("type"),
	}
	if validationErrors, ok := c.validate.Validate(query); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	metadata, err := c.urlService.Metadata(r.Context(), query.URL, streamurl.Kind(query.Type))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": metadata})
}

