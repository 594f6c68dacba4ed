package gateway

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type eventWindow struct {
	start time.Time
	count int
}

// EventLimiter caps events per user within a window. Windows live in a
// fixed-capacity LRU: memory stays bounded no matter how many users connect,
// and a window that rolls over is evicted and replaced.
type EventLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows *lru.Cache[string, *eventWindow]
	now     func() time.Time
}

func NewEventLimiter(limit int, window time.Duration, capacity int, now func() time.Time) (*EventLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid limiter settings: limit=%d window=%s", limit, window)
	}

	windows, err := lru.New[string, *eventWindow](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}

	if now == nil {
		now = time.Now
	}

	return &EventLimiter{
		limit:   limit,
		window:  window,
		windows: windows,
		now:     now,
	}, nil
}

// Allow counts one event for userID and reports whether it is within the limit.
func (l *EventLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(userID)
	if ok && now.Sub(w.start) >= l.window {
		l.windows.Remove(userID)
		ok = false
	}
	if !ok {
		w = &eventWindow{start: now}
		l.windows.Add(userID, w)
	}

	if w.count >= l.limit {
		return false
	}
	w.count++

	return true
}

// Sweep evicts every window that has rolled over and returns how many it removed.
func (l *EventLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for _, userID := range l.windows.Keys() {
		if w, ok := l.windows.Peek(userID); ok && now.Sub(w.start) >= l.window {
			l.windows.Remove(userID)
			removed++
		}
	}

	return removed
}

func (l *EventLimiter) Len() int {
	return l.windows.Len()
}
