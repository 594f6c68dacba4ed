package directory

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrRoomNotFound          = errors.New("room not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrRoomFull              = errors.New("room is full")
	ErrConflict              = errors.New("record conflict")
)
