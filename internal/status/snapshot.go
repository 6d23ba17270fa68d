// internal/status/snapshot.go
package status

import "github.com/tamzrod/mattebox/internal/filter"

// Snapshot represents exactly what the exporter is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	State        uint16
	TagCount     uint16
	LastOutcome  uint16
	PendingFirst uint16
	Faults       uint16

	// Positions is indexed by position-1.
	Positions [filter.Slots]filter.Slot
}
