// internal/machine/types.go
package machine

import (
	"context"
	"fmt"
	"time"

	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/status"
)

// State is the interaction state.
type State uint8

const (
	Normal State = iota
	ReorderPending
	NameResolution
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case ReorderPending:
		return "reorder-pending"
	case NameResolution:
		return "name-resolution"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) code() uint16 {
	switch s {
	case ReorderPending:
		return status.StateReorderPending
	case NameResolution:
		return status.StateNameResolution
	default:
		return status.StateNormal
	}
}

// ---- collaborators ----

// Sensor acquires the tags currently in range.
// On error the returned set is ignored and treated as empty.
type Sensor interface {
	Acquire(ctx context.Context) (filter.TagSet, error)
}

// Display renders the section. highlight is a position, 0 for none.
// Fire-and-forget: failures stay inside the display.
type Display interface {
	Redraw(sec filter.Section, highlight uint8)
}

// Recorder appends the section to the durable log.
type Recorder interface {
	Log(sec filter.Section) error
}

// Media is the removable storage behind the Recorder.
type Media interface {
	Mount() error
	Unmount() error
}

// StatusSink receives the status snapshot whenever it changes.
type StatusSink interface {
	WriteStatus(s status.Snapshot) error
}

// Config is the timing of the cooperative loop.
type Config struct {
	Interval       time.Duration
	ReorderTimeout time.Duration
}

// timeoutCycles converts the reorder timeout into whole cycles (at least 1).
func (c Config) timeoutCycles() int {
	if c.Interval <= 0 || c.ReorderTimeout <= 0 {
		return 1
	}
	n := int((c.ReorderTimeout + c.Interval - 1) / c.Interval)
	if n < 1 {
		n = 1
	}
	return n
}

// View is a read-only copy of the machine published after every cycle.
type View struct {
	State    State
	Pending  uint8
	Section  filter.Section
	Snapshot status.Snapshot
	Cycles   uint64
}

type nopDisplay struct{}

func (nopDisplay) Redraw(filter.Section, uint8) {}

type nopRecorder struct{}

func (nopRecorder) Log(filter.Section) error { return nil }

type nopMedia struct{}

func (nopMedia) Mount() error   { return nil }
func (nopMedia) Unmount() error { return nil }
