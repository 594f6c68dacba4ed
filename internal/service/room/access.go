package room

import (
	"context"
	"errors"

	"github.com/sharetube/watchsync/internal/repository/directory"
)

type Role uint8

const (
	RoleHost Role = iota + 1
	RolePublic
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePublic:
		return "public"
	case RoleParticipant:
		return "participant"
	default:
		return "none"
	}
}

// Grant is proof that a user passed the access policy for a room. Only
// Authorize creates one.
type Grant struct {
	roomID string
	userID string
	role   Role
}

func (g Grant) RoomID() string { return g.roomID }
func (g Grant) UserID() string { return g.userID }
func (g Grant) Role() Role     { return g.role }

func (g Grant) valid() bool {
	return g.role != 0 && g.roomID != "" && g.userID != ""
}

// Authorize applies the room access policy: the host always passes, anyone
// passes on a public room, and a private room needs an active participation.
func (s *Service) Authorize(ctx context.Context, roomID, userID string) (Grant, error) {
	_, grant, err := s.authorize(ctx, roomID, userID)
	return grant, err
}

func (s *Service) findRoom(ctx context.Context, roomID string) (directory.Room, error) {
	room, err := s.directoryRepo.FindRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return directory.Room{}, ErrRoomNotFound
		}
		return directory.Room{}, upstream("find room", err)
	}

	return room, nil
}

func (s *Service) authorize(ctx context.Context, roomID, userID string) (directory.Room, Grant, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return directory.Room{}, Grant{}, err
	}

	role, err := s.roleFor(ctx, room, userID)
	if err != nil {
		return directory.Room{}, Grant{}, err
	}

	return room, Grant{roomID: room.ID, userID: userID, role: role}, nil
}

func (s *Service) roleFor(ctx context.Context, room directory.Room, userID string) (Role, error) {
	if room.HostID == userID {
		return RoleHost, nil
	}

	if !room.IsPrivate {
		return RolePublic, nil
	}

	participation, err := s.directoryRepo.FindParticipation(ctx, room.ID, userID)
	if err != nil {
		if errors.Is(err, directory.ErrParticipationNotFound) {
			return 0, ErrAccessDenied
		}
		return 0, upstream("find participation", err)
	}

	if !participation.IsActive {
		return 0, ErrAccessDenied
	}

	return RoleParticipant, nil
}

func (s *Service) checkGrant(grant Grant) error {
	if !grant.valid() {
		return ErrAccessDenied
	}
	return nil
}
