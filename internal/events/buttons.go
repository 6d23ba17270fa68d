// internal/events/buttons.go
package events

import (
	"sync"
	"time"

	"github.com/tamzrod/mattebox/internal/filter"
)

// DefaultLongPress is the hold time above which a press is long.
const DefaultLongPress = 1000 * time.Millisecond

type buttonState struct {
	mu      sync.Mutex
	down    bool
	pressed time.Time
}

// Buttons classifies press/release edges into short and long presses.
// Each button has its own state, so overlapping presses of different
// buttons are classified independently.
type Buttons struct {
	flags     *Flags
	threshold time.Duration
	now       func() time.Time

	keys [filter.Slots]buttonState
}

// NewButtons raises classified presses on flags.
// threshold <= 0 selects DefaultLongPress.
func NewButtons(flags *Flags, threshold time.Duration) *Buttons {
	if threshold <= 0 {
		threshold = DefaultLongPress
	}
	return &Buttons{flags: flags, threshold: threshold, now: time.Now}
}

// Press records the leading edge of button k.
func (b *Buttons) Press(k uint8) {
	if !filter.ValidPosition(k) {
		return
	}
	st := &b.keys[k-1]
	st.mu.Lock()
	st.down = true
	st.pressed = b.now()
	st.mu.Unlock()
}

// Release records the trailing edge of button k and raises its flag.
// A release without a press, or with zero hold time, is ignored.
func (b *Buttons) Release(k uint8) Flag {
	if !filter.ValidPosition(k) {
		return 0
	}
	st := &b.keys[k-1]
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.down {
		return 0
	}
	st.down = false

	held := b.now().Sub(st.pressed)
	if held <= 0 {
		return 0
	}

	bit := ButtonFlag(k, held > b.threshold)
	b.flags.Raise(bit)
	return bit
}

// Tap raises a complete press of button k without timing it.
func (b *Buttons) Tap(k uint8, long bool) Flag {
	bit := ButtonFlag(k, long)
	b.flags.Raise(bit)
	return bit
}
