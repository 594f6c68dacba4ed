package room

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// roomLocks serialises state commits per room. Rooms hash onto a fixed set of
// mutexes, so unrelated rooms may occasionally share one.
type roomLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *roomLocks) lock(roomID string) func() {
	m := &l.stripes[xxhash.Sum64String(roomID)%lockStripes]
	m.Lock()
	return m.Unlock
}
