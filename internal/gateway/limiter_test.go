package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEventLimiter_RejectsOverLimitAndResets(t *testing.T) {
	clock := newTestClock()
	l, err := NewEventLimiter(100, time.Minute, 16, clock.Now)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("alice"), "event %d", i+1)
	}
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))

	clock.Advance(59 * time.Second)
	assert.False(t, l.Allow("alice"))

	clock.Advance(time.Second)
	assert.True(t, l.Allow("alice"))
}

func TestEventLimiter_SweepEvictsRolledOverWindows(t *testing.T) {
	clock := newTestClock()
	l, err := NewEventLimiter(5, time.Minute, 16, clock.Now)
	require.NoError(t, err)

	l.Allow("alice")
	clock.Advance(30 * time.Second)
	l.Allow("bob")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestEventLimiter_BoundedCapacity(t *testing.T) {
	l, err := NewEventLimiter(5, time.Minute, 2, nil)
	require.NoError(t, err)

	l.Allow("a")
	l.Allow("b")
	l.Allow("c")
	assert.Equal(t, 2, l.Len())
}

func TestNewEventLimiter_InvalidSettings(t *testing.T) {
	_, err := NewEventLimiter(0, time.Minute, 2, nil)
	assert.Error(t, err)
	_, err = NewEventLimiter(5, time.Minute, 0, nil)
	assert.Error(t, err)
}
