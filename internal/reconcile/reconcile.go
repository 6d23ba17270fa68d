// internal/reconcile/reconcile.go
package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/filter"
)

// Outcome is the single classification reported for a cycle.
type Outcome uint8

const (
	NoChange Outcome = iota
	Removed
	Installed
	NameUnresolved
)

func (o Outcome) String() string {
	switch o {
	case NoChange:
		return "no-change"
	case Removed:
		return "removed"
	case Installed:
		return "installed"
	case NameUnresolved:
		return "name-unresolved"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Event is one delta observed during a pass.
// Position is the slot position before removal or after installation.
type Event struct {
	Outcome  Outcome
	UID      filter.TagID
	Name     filter.Name
	Position uint8
}

// Resolver looks up a stored name for a tag that carries none.
// *assoc.Store satisfies it.
type Resolver interface {
	FindName(uid filter.TagID) (filter.Name, bool, error)
}

// Result is the value handed back to the caller after a pass.
type Result struct {
	Outcome Outcome

	// Events lists every delta in pass order. Outcome alone drops a
	// removal that shares a cycle with an installation.
	Events []Event

	// Unresolved holds untracked tags for which no name was available.
	Unresolved []filter.TagID

	// Err is a resolver fault. The affected tag is treated as unresolved.
	Err error
}

// Changed reports whether the section was mutated.
func (r Result) Changed() bool {
	for _, ev := range r.Events {
		if ev.Outcome == Removed || ev.Outcome == Installed {
			return true
		}
	}
	return false
}

// Engine diffs a freshly sensed tag set against the tracked section.
// No IO beyond the optional resolver.
type Engine struct {
	resolver Resolver
	log      *zap.Logger
}

// New builds an engine. resolver may be nil, in which case tags must
// carry their name inline.
func New(resolver Resolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{resolver: resolver, log: log}
}

// Reconcile updates sec in place from tags and classifies the change.
//
// The classification is that of the last branch that acted: an
// installation or unresolved tag outranks a removal from the same pass.
func (e *Engine) Reconcile(sec *filter.Section, tags filter.TagSet) Result {
	var res Result

	n := int(tags.Count)
	if n > filter.Slots {
		n = filter.Slots
	}
	sensed := tags.Tags[:n]

	// ---- removal pass ----

	for i := range sec.Slots {
		slot := &sec.Slots[i]
		if !slot.Occupied() || present(sensed, slot.UID) {
			continue
		}

		ev := Event{Outcome: Removed, UID: slot.UID, Name: slot.Name, Position: slot.Position}
		slot.Clear()

		res.Outcome = Removed
		res.Events = append(res.Events, ev)
		e.log.Debug("filter removed",
			zap.Stringer("uid", ev.UID),
			zap.Uint8("position", ev.Position),
		)
	}

	// ---- insertion pass ----

	for _, tag := range sensed {
		if tag.UID.IsZero() {
			continue
		}
		if _, tracked := sec.Find(tag.UID); tracked {
			continue
		}

		name := tag.Name
		if name.IsEmpty() && e.resolver != nil {
			found, ok, err := e.resolver.FindName(tag.UID)
			switch {
			case err != nil:
				res.Err = err
				e.log.Warn("name lookup failed", zap.Stringer("uid", tag.UID), zap.Error(err))
			case ok:
				name = found
			}
		}

		if name.IsEmpty() {
			res.Outcome = NameUnresolved
			res.Unresolved = append(res.Unresolved, tag.UID)
			res.Events = append(res.Events, Event{Outcome: NameUnresolved, UID: tag.UID})
			e.log.Debug("filter name unresolved", zap.Stringer("uid", tag.UID))
			continue
		}

		idx, pos, ok := placement(sec)
		if !ok {
			e.log.Warn("no free position for filter", zap.Stringer("uid", tag.UID))
			continue
		}

		sec.Slots[idx] = filter.Slot{UID: tag.UID, Name: name, Position: pos}

		res.Outcome = Installed
		res.Events = append(res.Events, Event{Outcome: Installed, UID: tag.UID, Name: name, Position: pos})
		e.log.Debug("filter installed",
			zap.Stringer("uid", tag.UID),
			zap.Stringer("name", name),
			zap.Uint8("position", pos),
		)
	}

	sec.Count = tags.Count
	return res
}

func present(tags []filter.Tag, uid filter.TagID) bool {
	if uid.IsZero() {
		return false
	}
	for _, t := range tags {
		if t.UID == uid {
			return true
		}
	}
	return false
}

// placement picks the lowest position held by no occupied slot and the
// empty slot to receive it. An empty slot still carrying that position
// from an exchange is preferred, so positions stay unique.
func placement(sec *filter.Section) (idx int, pos uint8, ok bool) {
	for p := uint8(1); p <= filter.Slots; p++ {
		if _, held := sec.Holder(p); held {
			continue
		}
		pos = p
		break
	}
	if pos == 0 {
		return 0, 0, false
	}

	first := -1
	for i, s := range sec.Slots {
		if s.Occupied() {
			continue
		}
		if s.Position == pos {
			return i, pos, true
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, pos, true
}
