// internal/assoc/layout.go
package assoc

import (
	"fmt"

	"github.com/tamzrod/mattebox/internal/filter"
)

// Persisted layout constants.
// These values define the on-device format and MUST NOT be configurable.

// ---- RECORD GEOMETRY ----

// CountLen is the size of a table header (little-endian entry count).
const CountLen = 2

// NameRecordLen is the size of one Name Table entry.
const NameRecordLen = filter.NameLen

// IndexLen is the size of the name index stored after a UID.
const IndexLen = 2

// UIDRecordLen is the size of one UID Table entry: UID followed by name index.
const UIDRecordLen = filter.UIDLen + IndexLen

// ---- NAME TABLE ----

// NameCountAddr holds the Name Table entry count.
const NameCountAddr uint16 = 0x0000

// NameStartAddr is the first Name Table entry.
const NameStartAddr = NameCountAddr + CountLen

// ---- UID TABLE ----

// UIDCountAddr holds the UID Table entry count.
// The Name Table ends where the UID Table begins.
const UIDCountAddr uint16 = 0x0400

// UIDStartAddr is the first UID Table entry.
const UIDStartAddr = UIDCountAddr + CountLen

// Layout is the table geometry of one device.
type Layout struct {
	NameCapacity uint16
	UIDCapacity  uint16
}

// LayoutFor derives table capacities for a device of size bytes.
func LayoutFor(size int) (Layout, error) {
	if size < int(UIDStartAddr)+UIDRecordLen {
		return Layout{}, fmt.Errorf("assoc: device of %d bytes too small for layout", size)
	}
	if size > 1<<16 {
		return Layout{}, fmt.Errorf("assoc: device of %d bytes exceeds 16-bit addressing", size)
	}
	return Layout{
		NameCapacity: uint16((int(UIDCountAddr) - int(NameStartAddr)) / NameRecordLen),
		UIDCapacity:  uint16((size - int(UIDStartAddr)) / UIDRecordLen),
	}, nil
}

func nameAddr(index uint16) uint16 {
	return NameStartAddr + index*NameRecordLen
}

func uidAddr(index uint16) uint16 {
	return UIDStartAddr + index*UIDRecordLen
}
