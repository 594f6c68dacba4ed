package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/rest"
)

type createRoomRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=500"`
	Type            string `json:"type" validate:"required,oneof=YOUTUBE_LINK EXTERNAL_LINK"`
	StreamURL       string `json:"streamUrl" validate:"required,url"`
	MaxParticipants int    `json:"maxParticipants" validate:"required,min=1,max=50"`
	IsPrivate       bool   `json:"isPrivate"`
	Password        string `json:"password" validate:"max=72"`
}

func (c *Controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	created, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		HostID:          identity.UserID,
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		StreamURL:       req.StreamURL,
		MaxParticipants: req.MaxParticipants,
		IsPrivate:       req.IsPrivate,
		Password:        req.Password,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": created})
}

func (c *Controller) getRoom(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	found, err := c.roomService.GetRoom(r.Context(), chi.URLParam(r, "room-id"), identity.UserID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": found})
}

type updateRoomRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
	StreamURL       *string `json:"streamUrl" validate:"omitempty,url"`
	MaxParticipants *int    `json:"maxParticipants" validate:"omitempty,min=1,max=50"`
	IsPrivate       *bool   `json:"isPrivate"`
	Password        *string `json:"password" validate:"omitempty,min=4,max=72"`
}

func (c *Controller) updateRoom(w http.ResponseWriter, r *http.Request) {
	var req updateRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	updated, err := c.roomService.UpdateRoom(r.Context(), &room.UpdateRoomParams{
		RoomID:          chi.URLParam(r, "room-id"),
		HostID:          identity.UserID,
		Name:            req.Name,
		Description:     req.Description,
		StreamURL:       req.StreamURL,
		MaxParticipants: req.MaxParticipants,
		IsPrivate:       req.IsPrivate,
		Password:        req.Password,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": updated})
}

func (c *Controller) deleteRoom(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	if err := c.roomService.DeleteRoom(r.Context(), chi.URLParam(r, "room-id"), identity.UserID); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readPage parses the limit and offset query parameters.
func readPage(w http.ResponseWriter, r *http.Request) (room.Page, bool) {
	var page room.Page
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": p.name + " must be an integer"})
			return room.Page{}, false
		}
		*p.dst = n
	}
	if page.Limit == 0 {
		page.Limit = room.DefaultPageLimit
	}

	return page, true
}

func writeRooms(w http.ResponseWriter, rooms []room.Room, page room.Page) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"rooms": rooms,
		"pagination": map[string]int{
			"limit":  page.Limit,
			"offset": page.Offset,
			"total":  len(rooms),
		},
	}})
}

func (c *Controller) listPublicRooms(w http.ResponseWriter, r *http.Request) {
	page, ok := readPage(w, r)
	if !ok {
		return
	}

	rooms, err := c.roomService.ListPublicRooms(r.Context(), page)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	writeRooms(w, rooms, page)
}

func (c *Controller) listHostedRooms(w http.ResponseWriter, r *http.Request) {
	page, ok := readPage(w, r)
	if !ok {
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	rooms, err := c.roomService.ListHostedRooms(r.Context(), identity.UserID, page)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	writeRooms(w, rooms, page)
}

func (c *Controller) listJoinedRooms(w http.ResponseWriter, r *http.Request) {
	page, ok := readPage(w, r)
	if !ok {
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	rooms, err := c.roomService.ListJoinedRooms(r.Context(), identity.UserID, page)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	writeRooms(w, rooms, page)
}

type joinRoomRequest struct {
	Password string `json:"password" validate:"max=72"`
}

func (c *Controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if r.ContentLength != 0 {
		if !c.readRequest(w, r, &req) {
			return
		}
	}

	identity := c.getIdentityFromCtx(r.Context())
	joined, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomID:   chi.URLParam(r, "room-id"),
		UserID:   identity.UserID,
		Password: req.Password,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joined})
}

func (c *Controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	if err := c.roomService.LeaveRoom(r.Context(), chi.URLParam(r, "room-id"), identity.UserID); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) listParticipants(w http.ResponseWriter, r *http.Request) {
	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	participants, err := c.roomService.ListParticipants(r.Context(), grant)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": participants})
}

func (c *Controller) removeParticipant(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	if err := c.roomService.RemoveParticipant(r.Context(),
		chi.URLParam(r, "room-id"),
		identity.UserID,
		chi.URLParam(r, "user-id"),
	); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listOnline returns the users with a live realtime session in the room.
func (c *Controller) listOnline(w http.ResponseWriter, r *http.Request) {
	grant, ok := c.authorize(w, r)
	if !ok {
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.gateway.Roster(grant.RoomID())})
}

func (c *Controller) authorize(w http.ResponseWriter, r *http.Request) (room.Grant, bool) {
	identity := c.getIdentityFromCtx(r.Context())

	grant, err := c.roomService.Authorize(r.Context(), chi.URLParam(r, "room-id"), identity.UserID)
	if err != nil {
		c.writeError(w, r, err)
		return room.Grant{}, false
	}

	return grant, true
}
