package playback

import "time"

// State is the authoritative playback record of a room.
type State struct {
	RoomID        string
	VideoPosition float64
	IsPlaying     bool
	VideoDuration *float64
	LastUpdated   time.Time
	UpdatedBy     string
}

type Event struct {
	ID        string
	RoomID    string
	UserID    string
	EventType string
	EventData map[string]any
	Timestamp time.Time
}
