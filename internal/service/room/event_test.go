package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeText(t *testing.T) {
	for _, et := range []EventType{EventPlay, EventPause, EventSeek, EventJoin, EventLeave, EventSync} {
		parsed, err := ParseEventType(et.String())
		require.NoError(t, err)
		assert.Equal(t, et, parsed)
	}

	_, err := ParseEventType("rewind")
	assert.ErrorIs(t, err, ErrValidationFailed)

	var body struct {
		Type EventType `json:"eventType"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"seek"}`), &body))
	assert.Equal(t, EventSeek, body.Type)
	assert.Error(t, json.Unmarshal([]byte(`{"eventType":"join2"}`), &body))

	out, err := json.Marshal(Event{EventType: EventSync})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"eventType":"sync"`)

	assert.Equal(t, "EventType(0)", EventType(0).String())
}
