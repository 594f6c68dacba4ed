package redis

import (
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// getOrInitScript creates the state hash only when it is absent and returns
// the stored fields, so concurrent first reads agree on a single record.
var getOrInitScript = goredis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
	redis.call('HSET', key,
		'video_position', '0',
		'is_playing', '0',
		'last_updated', ARGV[1],
		'updated_by', '')
end
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', key, ARGV[2])
end
return redis.call('HGETALL', key)
`)

type Config struct {
	// StateTTL expires idle rooms' state and event log. Zero keeps them forever.
	StateTTL time.Duration
	// EventLogLimit caps the per-room event stream length.
	EventLogLimit int64
}

type Repo struct {
	rc            *goredis.Client
	stateTTL      time.Duration
	eventLogLimit int64
}

func NewRepo(rc *goredis.Client, cfg Config) *Repo {
	return &Repo{
		rc:            rc,
		stateTTL:      cfg.StateTTL,
		eventLogLimit: cfg.EventLogLimit,
	}
}

func (r Repo) getStateKey(roomID string) string {
	return "room:" + roomID + ":playback"
}

func (r Repo) getEventsKey(roomID string) string {
	return "room:" + roomID + ":events"
}
