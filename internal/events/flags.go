// internal/events/flags.go
package events

import (
	"strings"
	"sync/atomic"

	"github.com/tamzrod/mattebox/internal/filter"
)

// Flag is a set of pending hardware events.
type Flag uint32

// Bit assignments. One bit per discrete edge.
const (
	MediaInserted Flag = 1 << iota
	MediaRemoved
	Button1Short
	Button1Long
	Button2Short
	Button2Long
	Button3Short
	Button3Long
)

const buttonBase = 2

// ButtonFlag returns the bit for a press of button k (1..3).
// It returns 0 for an invalid button.
func ButtonFlag(k uint8, long bool) Flag {
	if !filter.ValidPosition(k) {
		return 0
	}
	bit := buttonBase + 2*uint(k-1)
	if long {
		bit++
	}
	return 1 << bit
}

// Has reports whether every bit of b is set in f.
func (f Flag) Has(b Flag) bool {
	return b != 0 && f&b == b
}

// Button returns the lowest-numbered button with a pending press.
// Short and long presses are treated alike.
func (f Flag) Button() (k uint8, long bool, ok bool) {
	for k := uint8(1); k <= filter.Slots; k++ {
		if f.Has(ButtonFlag(k, false)) {
			return k, false, true
		}
		if f.Has(ButtonFlag(k, true)) {
			return k, true, true
		}
	}
	return 0, false, false
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	names := []string{"media-inserted", "media-removed",
		"b1-short", "b1-long", "b2-short", "b2-long", "b3-short", "b3-long"}

	var parts []string
	for i, n := range names {
		if f&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// Flags is the word shared between event producers and the main loop.
// Producers OR bits in; the loop takes and clears the whole word once per
// cycle in a single atomic swap, so a bit raised concurrently with the
// clear is never lost.
type Flags struct {
	word atomic.Uint32
}

// Raise sets bits. Safe from any goroutine.
func (f *Flags) Raise(bits Flag) {
	if bits == 0 {
		return
	}
	f.word.Or(uint32(bits))
}

// Take returns all pending bits and clears them.
func (f *Flags) Take() Flag {
	return Flag(f.word.Swap(0))
}

// Peek returns pending bits without clearing them.
func (f *Flags) Peek() Flag {
	return Flag(f.word.Load())
}
