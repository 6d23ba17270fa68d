// internal/events/media.go
package events

import (
	"sync"
	"time"
)

// DefaultMediaDebounce is the settle time of the card-detect switch.
const DefaultMediaDebounce = 10 * time.Millisecond

// MediaDetect debounces the card-detect line. Each raw edge restarts the
// settle timer; when it expires the latest level is compared with the last
// reported one and MediaInserted or MediaRemoved is raised on change.
type MediaDetect struct {
	flags    *Flags
	debounce time.Duration

	mu       sync.Mutex
	level    bool
	reported bool
	timer    *time.Timer
	stopped  bool
}

// NewMediaDetect starts with the card reported absent.
func NewMediaDetect(flags *Flags, debounce time.Duration) *MediaDetect {
	if debounce <= 0 {
		debounce = DefaultMediaDebounce
	}
	return &MediaDetect{flags: flags, debounce: debounce}
}

// Edge records a raw level of the card-detect line.
func (m *MediaDetect) Edge(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.level = present
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.settle)
}

func (m *MediaDetect) settle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.level == m.reported {
		return
	}
	m.reported = m.level
	if m.level {
		m.flags.Raise(MediaInserted)
	} else {
		m.flags.Raise(MediaRemoved)
	}
}

// Present returns the last debounced level.
func (m *MediaDetect) Present() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reported
}

// Stop cancels a pending settle. Further edges are ignored.
func (m *MediaDetect) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}
