package room

import (
	"fmt"
	"time"
)

// EventType is the closed set of playback log entries.
type EventType uint8

const (
	EventPlay EventType = iota + 1
	EventPause
	EventSeek
	EventJoin
	EventLeave
	EventSync
)

var eventTypeNames = [...]string{
	EventPlay:  "play",
	EventPause: "pause",
	EventSeek:  "seek",
	EventJoin:  "join",
	EventLeave: "leave",
	EventSync:  "sync",
}

func (t EventType) String() string {
	if t == 0 || int(t) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", t)
	}
	return eventTypeNames[t]
}

func ParseEventType(s string) (EventType, error) {
	for i, name := range eventTypeNames {
		if i != 0 && name == s {
			return EventType(i), nil
		}
	}
	return 0, invalid("unknown event type %q", s)
}

func (t EventType) MarshalText() ([]byte, error) {
	if t == 0 || int(t) >= len(eventTypeNames) {
		return nil, invalid("unknown event type %d", t)
	}
	return []byte(eventTypeNames[t]), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	parsed, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is one entry of a room's append-only activity log.
type Event struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"roomId"`
	UserID    string         `json:"userId"`
	EventType EventType      `json:"eventType"`
	EventData map[string]any `json:"eventData"`
	Timestamp time.Time      `json:"timestamp"`
}
