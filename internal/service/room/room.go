package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/pkg/streamurl"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinParticipants = 1
	MaxParticipants = 50
)

func fromDirectoryRoom(r directory.Room) Room {
	return Room{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Type:                r.Type,
		StreamURL:           r.StreamURL,
		HostID:              r.HostID,
		IsPrivate:           r.IsPrivate,
		MaxParticipants:     r.MaxParticipants,
		CurrentParticipants: r.CurrentParticipants,
		CreatedAt:           r.CreatedAt,
	}
}

type CreateRoomParams struct {
	HostID          string
	Name            string
	Description     string
	Type            string
	StreamURL       string
	MaxParticipants int
	IsPrivate       bool
	Password        string
}

func (s *Service) CreateRoom(ctx context.Context, params *CreateRoomParams) (Room, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return Room{}, invalid("name is required")
	}

	kind, err := streamurl.ParseKind(params.Type)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if err := streamurl.CheckFormat(params.StreamURL, kind); err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if params.MaxParticipants < MinParticipants || params.MaxParticipants > MaxParticipants {
		return Room{}, invalid("maxParticipants must be between %d and %d", MinParticipants, MaxParticipants)
	}

	var passwordHash string
	if params.IsPrivate {
		if params.Password == "" {
			return Room{}, ErrPasswordRequired
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
		if err != nil {
			return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		passwordHash = string(hash)
	}

	room, err := s.directoryRepo.CreateRoom(ctx, &directory.CreateRoomParams{
		ID:              s.newID(),
		Name:            name,
		Description:     params.Description,
		Type:            string(kind),
		StreamURL:       params.StreamURL,
		HostID:          params.HostID,
		IsPrivate:       params.IsPrivate,
		PasswordHash:    passwordHash,
		MaxParticipants: params.MaxParticipants,
		CreatedAt:       s.now(),
	})
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Room{}, invalid("host %s does not exist", params.HostID)
		}
		return Room{}, upstream("create room", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", room.ID, "host_id", room.HostID, "is_private", room.IsPrivate)

	return fromDirectoryRoom(room), nil
}

// GetRoom returns the room if userID passes the access policy.
func (s *Service) GetRoom(ctx context.Context, roomID, userID string) (Room, error) {
	room, _, err := s.authorize(ctx, roomID, userID)
	if err != nil {
		return Room{}, err
	}

	return fromDirectoryRoom(room), nil
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) params() (*directory.ListRoomsParams, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return nil, invalid("limit must be between 1 and %d", MaxPageLimit)
	}
	if p.Offset < 0 {
		return nil, invalid("offset must not be negative")
	}

	return &directory.ListRoomsParams{Limit: p.Limit, Offset: p.Offset}, nil
}

func fromDirectoryRooms(records []directory.Room) []Room {
	rooms := make([]Room, 0, len(records))
	for _, r := range records {
		rooms = append(rooms, fromDirectoryRoom(r))
	}
	return rooms
}

// ListPublicRooms lists rooms anyone can enter, newest first.
func (s *Service) ListPublicRooms(ctx context.Context, page Page) ([]Room, error) {
	params, err := page.params()
	if err != nil {
		return nil, err
	}

	records, err := s.directoryRepo.ListPublicRooms(ctx, params)
	if err != nil {
		return nil, upstream("list public rooms", err)
	}

	return fromDirectoryRooms(records), nil
}

// ListHostedRooms lists the rooms hostID created, newest first.
func (s *Service) ListHostedRooms(ctx context.Context, hostID string, page Page) ([]Room, error) {
	params, err := page.params()
	if err != nil {
		return nil, err
	}

	records, err := s.directoryRepo.ListRoomsByHost(ctx, hostID, params)
	if err != nil {
		return nil, upstream("list hosted rooms", err)
	}

	return fromDirectoryRooms(records), nil
}

// ListJoinedRooms lists the rooms userID is an active participant of.
func (s *Service) ListJoinedRooms(ctx context.Context, userID string, page Page) ([]Room, error) {
	params, err := page.params()
	if err != nil {
		return nil, err
	}

	records, err := s.directoryRepo.ListJoinedRooms(ctx, userID, params)
	if err != nil {
		return nil, upstream("list joined rooms", err)
	}

	return fromDirectoryRooms(records), nil
}

// UpdateRoomParams changes only the fields that are set. Turning a room
// private needs a password unless it already has one; turning it public
// drops the password.
type UpdateRoomParams struct {
	RoomID          string
	HostID          string
	Name            *string
	Description     *string
	StreamURL       *string
	MaxParticipants *int
	IsPrivate       *bool
	Password        *string
}

func (s *Service) UpdateRoom(ctx context.Context, params *UpdateRoomParams) (Room, error) {
	current, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return Room{}, err
	}
	if current.HostID != params.HostID {
		return Room{}, ErrNotHost
	}

	update := &directory.UpdateRoomParams{
		ID:              current.ID,
		Name:            current.Name,
		Description:     current.Description,
		StreamURL:       current.StreamURL,
		IsPrivate:       current.IsPrivate,
		PasswordHash:    current.PasswordHash,
		MaxParticipants: current.MaxParticipants,
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return Room{}, invalid("name is required")
		}
		update.Name = name
	}
	if params.Description != nil {
		update.Description = strings.TrimSpace(*params.Description)
	}
	if params.StreamURL != nil {
		kind, err := streamurl.ParseKind(current.Type)
		if err != nil {
			return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		if err := streamurl.CheckFormat(*params.StreamURL, kind); err != nil {
			return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		update.StreamURL = *params.StreamURL
	}
	if params.MaxParticipants != nil {
		n := *params.MaxParticipants
		if n < MinParticipants || n > MaxParticipants {
			return Room{}, invalid("maxParticipants must be between %d and %d", MinParticipants, MaxParticipants)
		}
		if n < current.CurrentParticipants {
			return Room{}, invalid("maxParticipants is below the %d current participants", current.CurrentParticipants)
		}
		update.MaxParticipants = n
	}
	if params.IsPrivate != nil {
		update.IsPrivate = *params.IsPrivate
	}

	switch {
	case !update.IsPrivate:
		update.PasswordHash = ""
	case params.Password != nil && *params.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), s.bcryptCost)
		if err != nil {
			return Room{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		update.PasswordHash = string(hash)
	case update.PasswordHash == "":
		return Room{}, ErrPasswordRequired
	}

	room, err := s.directoryRepo.UpdateRoom(ctx, update)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, upstream("update room", err)
	}

	s.logger.InfoContext(ctx, "room updated", "room_id", room.ID, "is_private", room.IsPrivate)

	return fromDirectoryRoom(room), nil
}

// DeleteRoom removes the room with its participations and playback data.
// Only the host may delete it.
func (s *Service) DeleteRoom(ctx context.Context, roomID, hostID string) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID != hostID {
		return ErrNotHost
	}

	if err := s.directoryRepo.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return upstream("delete room", err)
	}

	s.debouncer.Cancel(roomID)

	unlock := s.locks.lock(roomID)
	err = s.playbackRepo.Delete(ctx, roomID)
	unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "failed to delete room playback", "room_id", roomID, "error", err)
	}

	s.logger.InfoContext(ctx, "room deleted", "room_id", roomID)

	return nil
}
