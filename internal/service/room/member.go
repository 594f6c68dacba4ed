package room

import (
	"context"
	"errors"

	"github.com/sharetube/watchsync/internal/repository/directory"
	"golang.org/x/crypto/bcrypt"
)

type JoinRoomParams struct {
	RoomID   string
	UserID   string
	Password string
}

// JoinRoom records an active participation. Private rooms need the room
// password unless the caller is the host.
func (s *Service) JoinRoom(ctx context.Context, params *JoinRoomParams) (Room, error) {
	room, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return Room{}, err
	}

	if room.IsPrivate && room.HostID != params.UserID {
		if params.Password == "" {
			return Room{}, ErrPasswordRequired
		}
		if room.PasswordHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(params.Password)); err != nil {
				return Room{}, ErrInvalidPassword
			}
		}
	}

	if _, err := s.directoryRepo.AddParticipant(ctx, &directory.AddParticipantParams{
		RoomID: room.ID,
		UserID: params.UserID,
		At:     s.now(),
	}); err != nil {
		switch {
		case errors.Is(err, directory.ErrRoomFull):
			return Room{}, ErrRoomFull
		case errors.Is(err, directory.ErrRoomNotFound):
			return Room{}, ErrRoomNotFound
		}
		return Room{}, upstream("add participant", err)
	}

	updated, err := s.findRoom(ctx, room.ID)
	if err != nil {
		return Room{}, err
	}

	s.logger.InfoContext(ctx, "participant joined", "room_id", room.ID, "user_id", params.UserID)

	return fromDirectoryRoom(updated), nil
}

func (s *Service) LeaveRoom(ctx context.Context, roomID, userID string) error {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return err
	}

	return s.removeParticipant(ctx, roomID, userID)
}

// RemoveParticipant lets the host remove someone else from the room.
func (s *Service) RemoveParticipant(ctx context.Context, roomID, hostID, participantID string) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.HostID != hostID {
		return ErrNotHost
	}
	if participantID == hostID {
		return invalid("host cannot remove themselves from room")
	}

	return s.removeParticipant(ctx, roomID, participantID)
}

func (s *Service) removeParticipant(ctx context.Context, roomID, userID string) error {
	if err := s.directoryRepo.RemoveParticipant(ctx, &directory.RemoveParticipantParams{
		RoomID: roomID,
		UserID: userID,
		At:     s.now(),
	}); err != nil {
		if errors.Is(err, directory.ErrParticipationNotFound) {
			return ErrNotParticipant
		}
		return upstream("remove participant", err)
	}

	s.logger.InfoContext(ctx, "participant left", "room_id", roomID, "user_id", userID)

	return nil
}

func (s *Service) ListParticipants(ctx context.Context, grant Grant) ([]Participant, error) {
	if err := s.checkGrant(grant); err != nil {
		return nil, err
	}

	records, err := s.directoryRepo.ListParticipants(ctx, grant.roomID)
	if err != nil {
		return nil, upstream("list participants", err)
	}

	participants := make([]Participant, 0, len(records))
	for _, p := range records {
		participants = append(participants, Participant{
			ID:       p.User.ID,
			Username: p.User.Username,
			Name:     p.User.Name,
			JoinedAt: p.JoinedAt,
		})
	}

	return participants, nil
}
