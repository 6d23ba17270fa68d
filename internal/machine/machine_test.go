// internal/machine/machine_test.go
package machine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tamzrod/mattebox/internal/events"
	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- fakes ----

type fakeSensor struct {
	set   filter.TagSet
	err   error
	calls int
}

func (f *fakeSensor) Acquire(context.Context) (filter.TagSet, error) {
	f.calls++
	return f.set, f.err
}

type redraw struct {
	sec       filter.Section
	highlight uint8
}

type fakeDisplay struct{ draws []redraw }

func (f *fakeDisplay) Redraw(sec filter.Section, highlight uint8) {
	f.draws = append(f.draws, redraw{sec, highlight})
}

func (f *fakeDisplay) last() redraw { return f.draws[len(f.draws)-1] }

type fakeRecorder struct {
	logged []filter.Section
	err    error
}

func (f *fakeRecorder) Log(sec filter.Section) error {
	f.logged = append(f.logged, sec)
	return f.err
}

type fakeMedia struct{ mounts, unmounts int }

func (f *fakeMedia) Mount() error   { f.mounts++; return nil }
func (f *fakeMedia) Unmount() error { f.unmounts++; return nil }

type fakeSink struct{ writes []status.Snapshot }

func (f *fakeSink) WriteStatus(s status.Snapshot) error {
	f.writes = append(f.writes, s)
	return nil
}

type rig struct {
	m       *Machine
	sensor  *fakeSensor
	display *fakeDisplay
	rec     *fakeRecorder
	media   *fakeMedia
	sink    *fakeSink
	flags   *events.Flags
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		sensor:  &fakeSensor{},
		display: &fakeDisplay{},
		rec:     &fakeRecorder{},
		media:   &fakeMedia{},
		sink:    &fakeSink{},
		flags:   &events.Flags{},
	}
	r.m = New(Config{Interval: time.Second, ReorderTimeout: 3 * time.Second}, Deps{
		Sensor:   r.sensor,
		Flags:    r.flags,
		Display:  r.display,
		Recorder: r.rec,
		Media:    r.media,
		Status:   r.sink,
	})
	return r
}

func (r *rig) sense(tags ...filter.Tag) {
	r.sensor.set = filter.TagSet{}
	for _, tg := range tags {
		r.sensor.set.Add(tg)
	}
}

func (r *rig) cycle() { r.m.Cycle(context.Background()) }

func (r *rig) press(k uint8) {
	r.flags.Raise(events.ButtonFlag(k, false))
	r.cycle()
}

func tagOf(b byte, name string) filter.Tag {
	return filter.Tag{UID: filter.TagID{b, 1, 2, 3, 4, 5, 6, 7}, Name: filter.MakeName(name)}
}

// ---- tests ----

func TestCycle_InstallRedrawsAndLogs(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "ND.6"))

	r.cycle()

	v := r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, uint8(1), v.Section.Slots[0].Position)
	require.Len(t, r.display.draws, 1)
	assert.Equal(t, uint8(0), r.display.last().highlight)
	require.Len(t, r.rec.logged, 1)
	assert.Equal(t, status.OutcomeInstalled, v.Snapshot.LastOutcome)

	// Steady state: no further redraw or log.
	r.cycle()
	assert.Len(t, r.display.draws, 1)
	assert.Len(t, r.rec.logged, 1)
}

func TestCycle_SensingFaultRemovesEverything(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()

	r.sensor.err = errors.New("rf timeout")
	r.cycle()

	v := r.m.View()
	for _, s := range v.Section.Slots {
		assert.False(t, s.Occupied())
	}
	assert.Equal(t, status.FaultSensor, v.Snapshot.Faults&status.FaultSensor)
	assert.Equal(t, status.OutcomeRemoved, v.Snapshot.LastOutcome)
	assert.Len(t, r.rec.logged, 2)
}

func TestCycle_LogFailureIsNotFatal(t *testing.T) {
	r := newRig(t)
	r.rec.err = errors.New("card full")
	r.sense(tagOf(1, "A"))

	r.cycle()

	v := r.m.View()
	assert.True(t, v.Section.Slots[0].Occupied())
	assert.Equal(t, status.FaultLog, v.Snapshot.Faults)

	r.cycle()
	assert.Zero(t, r.m.View().Snapshot.Faults, "faults are per cycle")
}

func TestReorder_ExchangesPositions(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()
	calls := r.sensor.calls

	r.press(1)
	v := r.m.View()
	assert.Equal(t, ReorderPending, v.State)
	assert.Equal(t, uint8(1), v.Pending)
	assert.Equal(t, uint8(1), r.display.last().highlight)
	assert.Equal(t, status.StateReorderPending, v.Snapshot.State)
	assert.Equal(t, uint16(1), v.Snapshot.PendingFirst)

	r.press(2)
	v = r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, uint8(0), v.Pending)
	assert.Equal(t, uint8(2), v.Section.Slots[0].Position)
	assert.Equal(t, uint8(1), v.Section.Slots[1].Position)
	assert.Equal(t, uint8(0), r.display.last().highlight)
	assert.Equal(t, calls, r.sensor.calls, "no sensing while reordering")
}

func TestReorder_PressesInOneCycleRunAscending(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()

	// Both edges land before the loop wakes; button 1 is taken first.
	r.flags.Raise(events.ButtonFlag(2, true) | events.ButtonFlag(1, false))
	r.cycle()

	v := r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, uint8(2), v.Section.Slots[0].Position)
	assert.Equal(t, uint8(1), v.Section.Slots[1].Position)
}

func TestReorder_SameButtonCancels(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()
	before := r.m.View().Section

	r.press(2)
	r.press(2)

	v := r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, before.Slots, v.Section.Slots)
}

func TestReorder_IntoEmptyPosition(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()

	r.press(1)
	r.press(3)

	v := r.m.View()
	assert.Equal(t, uint8(3), v.Section.Slots[0].Position)
	assert.Equal(t, "A", v.Section.ByPosition()[2].Name.String())
}

func TestReorder_PressOnEmptyPositionIgnored(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"))
	r.cycle()

	r.press(3)
	assert.Equal(t, Normal, r.m.View().State)
}

func TestReorder_TimesOut(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"), tagOf(2, "B"))
	r.cycle()

	r.press(1)
	r.cycle()
	r.cycle()
	assert.Equal(t, ReorderPending, r.m.View().State)

	r.cycle()
	v := r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, uint8(0), v.Pending)
	assert.Equal(t, uint8(1), v.Section.Slots[0].Position, "no exchange on timeout")
	assert.Equal(t, uint8(0), r.display.last().highlight)
}

func TestNameResolution_ReturnsToNormalWithinCycle(t *testing.T) {
	r := newRig(t)
	r.sense(filter.Tag{UID: filter.TagID{9, 9, 9, 9, 9, 9, 9, 9}})

	r.cycle()
	v := r.m.View()
	assert.Equal(t, Normal, v.State)
	assert.Equal(t, status.StateNormal, v.Snapshot.State)
	assert.Equal(t, status.OutcomeNameUnresolved, v.Snapshot.LastOutcome)
	assert.Equal(t, 1, r.sensor.calls)

	r.cycle()
	assert.Equal(t, 2, r.sensor.calls, "sensing runs every cycle")
}

func TestNameResolution_UnnamedTagDoesNotSwallowPresses(t *testing.T) {
	r := newRig(t)
	unnamed := filter.Tag{UID: filter.TagID{9, 9, 9, 9, 9, 9, 9, 9}}
	r.sense(tagOf(1, "ND.3"), unnamed)

	r.cycle()
	require.Equal(t, Normal, r.m.View().State)

	// The unnamed tag stays in range while the button is pressed.
	r.press(1)
	v := r.m.View()
	assert.Equal(t, ReorderPending, v.State)
	assert.Equal(t, uint8(1), v.Pending)
}

func TestMedia_IndependentOfState(t *testing.T) {
	r := newRig(t)
	r.sense(tagOf(1, "A"))
	r.cycle()

	r.flags.Raise(events.ButtonFlag(1, true))
	r.cycle()
	require.Equal(t, ReorderPending, r.m.View().State)

	r.flags.Raise(events.MediaInserted)
	r.cycle()
	r.flags.Raise(events.MediaRemoved)
	r.cycle()

	assert.Equal(t, 1, r.media.mounts)
	assert.Equal(t, 1, r.media.unmounts)
	assert.Equal(t, ReorderPending, r.m.View().State)
}

func TestStatus_ExportedOnChangeOnly(t *testing.T) {
	r := newRig(t)
	r.cycle()
	r.cycle()
	assert.Len(t, r.sink.writes, 1)

	r.sense(tagOf(1, "A"))
	r.cycle()
	require.Len(t, r.sink.writes, 2)
	assert.Equal(t, "A", r.sink.writes[1].Positions[0].Name.String())
}

func TestTimeoutCycles(t *testing.T) {
	assert.Equal(t, 3, Config{Interval: time.Second, ReorderTimeout: 3 * time.Second}.timeoutCycles())
	assert.Equal(t, 3, Config{Interval: time.Second, ReorderTimeout: 2500 * time.Millisecond}.timeoutCycles())
	assert.Equal(t, 1, Config{Interval: time.Second}.timeoutCycles())
}

func TestRun_ExecSerializesWithCycles(t *testing.T) {
	r := newRig(t)
	r.m.cfg.Interval = time.Millisecond
	r.sense(tagOf(1, "A"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.m.Run(ctx) }()

	require.Eventually(t, func() bool { return r.m.View().Cycles > 2 }, time.Second, time.Millisecond)

	var seen filter.Section
	err := r.m.Exec(ctx, func() error {
		seen = r.m.sec
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen.Slots[0].Occupied())

	want := errors.New("task failed")
	assert.ErrorIs(t, r.m.Exec(ctx, func() error { return want }), want)

	cancel()
	require.NoError(t, <-done)

	err = r.m.Exec(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}
