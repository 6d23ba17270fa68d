// internal/machine/machine.go
package machine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/events"
	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/reconcile"
	"github.com/tamzrod/mattebox/internal/status"
)

// Deps are the collaborators of a Machine. Sensor, Engine and Flags are
// required; the rest default to no-ops.
type Deps struct {
	Sensor   Sensor
	Engine   *reconcile.Engine
	Flags    *events.Flags
	Display  Display
	Recorder Recorder
	Media    Media
	Status   StatusSink
	Log      *zap.Logger
}

// Machine owns the filter section and the interaction state.
//
// Everything except the published View and the task queue is touched only
// by the goroutine calling Cycle (normally Run). Event producers talk to it
// through Flags alone.
type Machine struct {
	cfg Config
	d   Deps
	log *zap.Logger

	sec     filter.Section
	state   State
	first   uint8
	waited  int
	timeout int

	lastOutcome reconcile.Outcome
	unresolved  []filter.TagID
	faults      uint16
	cycles      uint64

	exported     status.Snapshot
	exportedOnce bool

	view  atomic.Pointer[View]
	tasks chan task
}

// New builds a machine in Normal with an all-empty section.
func New(cfg Config, d Deps) *Machine {
	if d.Display == nil {
		d.Display = nopDisplay{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Media == nil {
		d.Media = nopMedia{}
	}
	if d.Engine == nil {
		d.Engine = reconcile.New(nil, d.Log)
	}
	if d.Flags == nil {
		d.Flags = &events.Flags{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	m := &Machine{
		cfg:     cfg,
		d:       d,
		log:     d.Log,
		state:   Normal,
		timeout: cfg.timeoutCycles(),
		tasks:   make(chan task),
	}
	m.storeView(m.snapshot())
	return m
}

// Flags returns the event word producers raise bits on.
func (m *Machine) Flags() *events.Flags { return m.d.Flags }

// View returns the state published by the last cycle.
func (m *Machine) View() View { return *m.view.Load() }

// Cycle runs one cooperative cycle: drain events, then act on the state.
func (m *Machine) Cycle(ctx context.Context) {
	m.faults = 0
	m.cycles++

	pending := m.d.Flags.Take()
	if pending != 0 {
		m.log.Debug("events", zap.Stringer("flags", pending), zap.Stringer("state", m.state))
	}

	m.handleMedia(pending)

	// Presses in ascending button order; short and long act alike.
	start := m.state
	for presses := pending; ; {
		k, _, ok := presses.Button()
		if !ok {
			break
		}
		presses &^= events.ButtonFlag(k, false) | events.ButtonFlag(k, true)
		m.press(k)
	}

	switch m.state {
	case Normal:
		if start == Normal {
			m.sense(ctx)
		}

	case ReorderPending:
		if start == ReorderPending {
			m.waited++
			if m.waited >= m.timeout {
				m.log.Info("reorder timed out", zap.Uint8("first", m.first))
				m.first = 0
				m.state = Normal
				m.d.Display.Redraw(m.sec, 0)
			}
		}
	}

	m.publish()
}

// ---- event handling ----

func (m *Machine) handleMedia(f events.Flag) {
	if f.Has(events.MediaInserted) {
		if err := m.d.Media.Mount(); err != nil {
			m.faults |= status.FaultLog
			m.log.Warn("media mount failed", zap.Error(err))
		} else {
			m.log.Info("media mounted")
		}
	}
	if f.Has(events.MediaRemoved) {
		if err := m.d.Media.Unmount(); err != nil {
			m.faults |= status.FaultLog
			m.log.Warn("media unmount failed", zap.Error(err))
		} else {
			m.log.Info("media unmounted")
		}
	}
}

// press applies one button press. Short and long presses act alike.
func (m *Machine) press(k uint8) {
	switch m.state {
	case Normal:
		if _, occupied := m.sec.Holder(k); !occupied {
			m.log.Debug("press on empty position ignored", zap.Uint8("position", k))
			return
		}
		m.first = k
		m.waited = 0
		m.state = ReorderPending
		m.d.Display.Redraw(m.sec, k)
		m.log.Info("reorder started", zap.Uint8("first", k))

	case ReorderPending:
		if k != m.first {
			m.sec.Exchange(m.first, k)
			m.log.Info("positions exchanged", zap.Uint8("first", m.first), zap.Uint8("second", k))
		}
		m.first = 0
		m.state = Normal
		m.d.Display.Redraw(m.sec, 0)
	}
}

// ---- sensing ----

func (m *Machine) sense(ctx context.Context) {
	tags, err := m.d.Sensor.Acquire(ctx)
	if err != nil {
		// Fail-safe: a sensing fault reads as "no tags present".
		m.faults |= status.FaultSensor
		m.log.Warn("tag acquisition failed", zap.Error(err))
		tags = filter.TagSet{}
	}

	res := m.d.Engine.Reconcile(&m.sec, tags)
	m.lastOutcome = res.Outcome
	if res.Err != nil {
		m.faults |= status.FaultStore
	}

	if res.Changed() {
		m.d.Display.Redraw(m.sec, 0)
		if err := m.d.Recorder.Log(m.sec); err != nil {
			m.faults |= status.FaultLog
			m.log.Warn("datalog append failed", zap.Error(err))
		}
	}

	if res.Outcome != reconcile.NoChange {
		m.log.Info("section updated",
			zap.Stringer("outcome", res.Outcome),
			zap.Uint8("count", m.sec.Count),
		)
	}

	if res.Outcome == reconcile.NameUnresolved {
		m.unresolved = res.Unresolved
		m.state = NameResolution
		m.resolveNames()
	}
}

// resolveNames is the naming interaction. It is not implemented on the
// device: unresolved tags are reported and the machine returns to Normal
// within the same cycle, so no event is lost to it.
// Names are supplied out of band through the association store.
func (m *Machine) resolveNames() {
	for _, uid := range m.unresolved {
		m.log.Warn("filter has no name", zap.Stringer("uid", uid))
	}
	m.unresolved = nil
	m.state = Normal
}

// ---- publication ----

func (m *Machine) snapshot() status.Snapshot {
	s := status.Snapshot{
		State:        m.state.code(),
		TagCount:     uint16(m.sec.Count),
		LastOutcome:  uint16(m.lastOutcome),
		PendingFirst: uint16(m.first),
		Faults:       m.faults,
		Positions:    m.sec.ByPosition(),
	}
	if m.cycles == 0 {
		s.State = status.StateBoot
	}
	return s
}

func (m *Machine) storeView(snap status.Snapshot) {
	m.view.Store(&View{
		State:    m.state,
		Pending:  m.first,
		Section:  m.sec,
		Snapshot: snap,
		Cycles:   m.cycles,
	})
}

// publish stores the view and exports the snapshot when it changed.
func (m *Machine) publish() {
	snap := m.snapshot()
	m.storeView(snap)

	if m.d.Status == nil {
		return
	}
	if m.exportedOnce && snap == m.exported {
		return
	}
	if err := m.d.Status.WriteStatus(snap); err != nil {
		m.log.Warn("status export failed", zap.Error(err))
		return
	}
	m.exported = snap
	m.exportedOnce = true
}
