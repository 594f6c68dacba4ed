package directory

import "time"

type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	ID                  string
	Name                string
	Description         string
	Type                string
	StreamURL           string
	HostID              string
	IsPrivate           bool
	PasswordHash        string
	MaxParticipants     int
	CurrentParticipants int
	CreatedAt           time.Time
}

type Participation struct {
	RoomID   string
	UserID   string
	IsActive bool
	JoinedAt time.Time
	LeftAt   *time.Time
}

type Participant struct {
	User     User
	JoinedAt time.Time
}
