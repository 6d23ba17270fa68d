// internal/reconcile/reconcile_test.go
package reconcile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/mattebox/internal/filter"
)

func uid(b byte) filter.TagID {
	return filter.TagID{b, 0, 0, 0, 0, 0, 0, b}
}

func tags(ts ...filter.Tag) filter.TagSet {
	var set filter.TagSet
	for _, t := range ts {
		set.Add(t)
	}
	return set
}

type fakeResolver struct {
	names map[filter.TagID]string
	err   error
	calls int
}

func (f *fakeResolver) FindName(id filter.TagID) (filter.Name, bool, error) {
	f.calls++
	if f.err != nil {
		return filter.Name{}, false, f.err
	}
	n, ok := f.names[id]
	if !ok {
		return filter.Name{}, false, nil
	}
	return filter.MakeName(n), true, nil
}

func TestReconcile_Removal(t *testing.T) {
	sec := filter.Section{Count: 1}
	sec.Slots[0] = filter.Slot{UID: uid(1), Name: filter.MakeName("ND.6"), Position: 1}

	res := New(nil, nil).Reconcile(&sec, filter.TagSet{})

	assert.Equal(t, Removed, res.Outcome)
	assert.Equal(t, filter.Slot{}, sec.Slots[0])
	assert.Equal(t, uint8(0), sec.Count)
	require.Len(t, res.Events, 1)
	assert.Equal(t, uint8(1), res.Events[0].Position)
}

func TestReconcile_Installation(t *testing.T) {
	var sec filter.Section

	res := New(nil, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(1), Name: filter.MakeName("Filter A")}))

	want := filter.Section{Count: 1}
	want.Slots[0] = filter.Slot{UID: uid(1), Name: filter.MakeName("Filter A"), Position: 1}

	if diff := cmp.Diff(want, sec); diff != "" {
		t.Fatalf("section mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Installed, res.Outcome)
	assert.True(t, res.Changed())
}

func TestReconcile_NoChange(t *testing.T) {
	var sec filter.Section
	e := New(nil, nil)
	set := tags(filter.Tag{UID: uid(1), Name: filter.MakeName("A")})

	e.Reconcile(&sec, set)
	before := sec

	res := e.Reconcile(&sec, set)
	assert.Equal(t, NoChange, res.Outcome)
	assert.Empty(t, res.Events)
	assert.False(t, res.Changed())
	assert.Equal(t, before, sec)
}

func TestReconcile_UnresolvedLeavesSectionUntouched(t *testing.T) {
	var sec filter.Section

	res := New(nil, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(1)}))

	assert.Equal(t, NameUnresolved, res.Outcome)
	assert.Equal(t, []filter.TagID{uid(1)}, res.Unresolved)
	assert.Equal(t, [filter.Slots]filter.Slot{}, sec.Slots)
	assert.Equal(t, uint8(1), sec.Count)
	assert.False(t, res.Changed())
}

func TestReconcile_ResolverSuppliesName(t *testing.T) {
	var sec filter.Section
	r := &fakeResolver{names: map[filter.TagID]string{uid(2): "POL"}}

	res := New(r, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(2)}))

	assert.Equal(t, Installed, res.Outcome)
	assert.Equal(t, "POL", sec.Slots[0].Name.String())
	assert.Equal(t, 1, r.calls)
}

func TestReconcile_InlineNameSkipsResolver(t *testing.T) {
	var sec filter.Section
	r := &fakeResolver{}

	New(r, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(2), Name: filter.MakeName("IR")}))
	assert.Zero(t, r.calls)
}

func TestReconcile_ResolverFaultIsUnresolved(t *testing.T) {
	var sec filter.Section
	fault := errors.New("eeprom nack")

	res := New(&fakeResolver{err: fault}, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(2)}))

	assert.Equal(t, NameUnresolved, res.Outcome)
	assert.ErrorIs(t, res.Err, fault)
	assert.False(t, sec.Slots[0].Occupied())
}

func TestReconcile_ZeroUIDGuard(t *testing.T) {
	var sec filter.Section
	set := tags(
		filter.Tag{UID: filter.TagID{}, Name: filter.MakeName("GHOST")},
		filter.Tag{UID: uid(3), Name: filter.MakeName("ND.3")},
	)

	res := New(nil, nil).Reconcile(&sec, set)

	assert.Equal(t, Installed, res.Outcome)
	for _, s := range sec.Slots {
		if s.UID.IsZero() {
			assert.Zero(t, s.Position, "zero uid must not hold a position")
		}
	}
	require.Len(t, res.Events, 1)
	assert.Equal(t, uid(3), res.Events[0].UID)
}

func TestReconcile_InstallUsesLowestFreePosition(t *testing.T) {
	var sec filter.Section
	sec.Slots[0] = filter.Slot{UID: uid(1), Name: filter.MakeName("A"), Position: 2}

	New(nil, nil).Reconcile(&sec, tags(
		filter.Tag{UID: uid(1), Name: filter.MakeName("A")},
		filter.Tag{UID: uid(2), Name: filter.MakeName("B")},
		filter.Tag{UID: uid(3), Name: filter.MakeName("C")},
	))

	assert.Equal(t, uint8(2), sec.Slots[0].Position)
	assert.Equal(t, uint8(1), sec.Slots[1].Position)
	assert.Equal(t, uint8(3), sec.Slots[2].Position)
}

func TestReconcile_InstallHonoursExchangeReservation(t *testing.T) {
	// After exchange(1,3) with C empty: A holds 3, empty C reserves 1.
	var sec filter.Section
	sec.Slots[0] = filter.Slot{UID: uid(1), Name: filter.MakeName("A"), Position: 1}
	sec.Slots[1] = filter.Slot{UID: uid(2), Name: filter.MakeName("B"), Position: 2}
	sec.Exchange(1, 3)
	require.Equal(t, uint8(3), sec.Slots[0].Position)
	require.Equal(t, uint8(1), sec.Slots[2].Position)

	New(nil, nil).Reconcile(&sec, tags(
		filter.Tag{UID: uid(1), Name: filter.MakeName("A")},
		filter.Tag{UID: uid(2), Name: filter.MakeName("B")},
		filter.Tag{UID: uid(9), Name: filter.MakeName("NEW")},
	))

	assert.Equal(t, uid(9), sec.Slots[2].UID)
	assert.Equal(t, uint8(1), sec.Slots[2].Position)
	assertUniquePositions(t, sec)
}

func TestReconcile_DualDeltaReportsInstallation(t *testing.T) {
	var sec filter.Section
	sec.Slots[0] = filter.Slot{UID: uid(1), Name: filter.MakeName("OLD"), Position: 1}

	res := New(nil, nil).Reconcile(&sec, tags(filter.Tag{UID: uid(2), Name: filter.MakeName("NEW")}))

	assert.Equal(t, Installed, res.Outcome)
	want := []Event{
		{Outcome: Removed, UID: uid(1), Name: filter.MakeName("OLD"), Position: 1},
		{Outcome: Installed, UID: uid(2), Name: filter.MakeName("NEW"), Position: 1},
	}
	if diff := cmp.Diff(want, res.Events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_RandomSequencesKeepInvariants(t *testing.T) {
	e := New(nil, nil)
	var sec filter.Section

	pool := []filter.Tag{
		{UID: uid(1), Name: filter.MakeName("A")},
		{UID: uid(2), Name: filter.MakeName("B")},
		{UID: uid(3), Name: filter.MakeName("C")},
		{UID: uid(4), Name: filter.MakeName("D")},
		{UID: uid(5)},
	}

	// Deterministic walk over subsets with exchanges in between.
	for step := 0; step < 200; step++ {
		var set filter.TagSet
		for i, tg := range pool {
			if (step*7+i*3)%5 < 2 {
				set.Add(tg)
			}
		}
		e.Reconcile(&sec, set)
		sec.Exchange(uint8(step%3)+1, uint8((step/3)%3)+1)
		assertUniquePositions(t, sec)

		for _, s := range sec.Slots {
			if s.Occupied() {
				assert.True(t, filter.ValidPosition(s.Position), "step %d: occupied slot without position", step)
			}
		}
	}
}

func assertUniquePositions(t *testing.T, sec filter.Section) {
	t.Helper()
	seen := map[uint8]bool{}
	for _, s := range sec.Slots {
		if s.Position == 0 {
			continue
		}
		if seen[s.Position] {
			t.Fatalf("duplicate position %d in %+v", s.Position, sec.Slots)
		}
		seen[s.Position] = true
	}
}
