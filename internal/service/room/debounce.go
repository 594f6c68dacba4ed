package room

import (
	"sync"
	"time"
)

type pendingCommit struct {
	timer   *time.Timer
	commit  func()
	discard func()
}

// Debouncer keeps at most one pending commit per key. Scheduling a new commit
// for a key cancels the outstanding one, which is discarded, and restarts the
// window.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingCommit
	closed  bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingCommit),
	}
}

// Schedule arranges for commit to run once the window elapses without another
// Schedule for key. discard runs instead if the commit is superseded or the
// debouncer stops first. It reports false once the debouncer is stopped.
func (d *Debouncer) Schedule(key string, commit, discard func()) bool {
	p := &pendingCommit{commit: commit, discard: discard}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	prev := d.pending[key]
	if prev != nil {
		prev.timer.Stop()
	}
	d.pending[key] = p
	p.timer = time.AfterFunc(d.window, func() { d.fire(key, p) })
	d.mu.Unlock()

	if prev != nil && prev.discard != nil {
		prev.discard()
	}

	return true
}

func (d *Debouncer) fire(key string, p *pendingCommit) {
	d.mu.Lock()
	// A timer that lost the race with Stop or a newer Schedule must not commit.
	if d.pending[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	p.commit()
}

// Cancel discards the pending commit for key, if any, and reports whether
// there was one.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	p := d.pending[key]
	if p != nil {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if p == nil {
		return false
	}
	if p.discard != nil {
		p.discard()
	}
	return true
}

// Stop discards every pending commit. Later Schedule calls are rejected.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.closed = true
	pending := d.pending
	d.pending = make(map[string]*pendingCommit)
	d.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		if p.discard != nil {
			p.discard()
		}
	}
}
