package directory

import "time"

type CreateUserParams struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type CreateRoomParams struct {
	ID              string
	Name            string
	Description     string
	Type            string
	StreamURL       string
	HostID          string
	IsPrivate       bool
	PasswordHash    string
	MaxParticipants int
	CreatedAt       time.Time
}

// UpdateRoomParams carries the full set of editable room fields.
type UpdateRoomParams struct {
	ID              string
	Name            string
	Description     string
	StreamURL       string
	IsPrivate       bool
	PasswordHash    string
	MaxParticipants int
}

type ListRoomsParams struct {
	Limit  int
	Offset int
}

type AddParticipantParams struct {
	RoomID string
	UserID string
	At     time.Time
}

type RemoveParticipantParams struct {
	RoomID string
	UserID string
	At     time.Time
}
