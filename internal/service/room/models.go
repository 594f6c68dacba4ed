package room

import "time"

type PlaybackState struct {
	RoomID        string    `json:"roomId"`
	VideoPosition float64   `json:"videoPosition"`
	IsPlaying     bool      `json:"isPlaying"`
	VideoDuration *float64  `json:"videoDuration"`
	LastUpdated   time.Time `json:"lastUpdated"`
	UpdatedBy     string    `json:"updatedBy,omitempty"`
}

// SyncedState is a state projected to the moment it is handed out.
type SyncedState struct {
	PlaybackState
	SyncTimestamp int64 `json:"syncTimestamp"`
}

type Room struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Type                string    `json:"type"`
	StreamURL           string    `json:"streamUrl"`
	HostID              string    `json:"hostId"`
	IsPrivate           bool      `json:"isPrivate"`
	MaxParticipants     int       `json:"maxParticipants"`
	CurrentParticipants int       `json:"currentParticipants"`
	CreatedAt           time.Time `json:"createdAt"`
}

type Participant struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}
