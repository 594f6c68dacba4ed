package playback

import "time"

type CommitParams struct {
	RoomID        string
	VideoPosition float64
	IsPlaying     bool
	VideoDuration *float64
	UpdatedBy     string
	UpdatedAt     time.Time
}

type AppendEventParams struct {
	RoomID    string
	UserID    string
	EventType string
	EventData map[string]any
	Timestamp time.Time
}
