// internal/status/encode.go
package status

import (
	"fmt"

	"github.com/tamzrod/mattebox/internal/filter"
)

// Encode converts a Snapshot into a full filter status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, RegistersPerBlock)

	regs[RegState] = s.State
	regs[RegTagCount] = s.TagCount
	regs[RegLastOutcome] = s.LastOutcome
	regs[RegPendingFirst] = s.PendingFirst
	regs[RegFaults] = s.Faults

	for i, slot := range s.Positions {
		base := RegPositionStart + i*RegistersPerPosition
		if !slot.Occupied() {
			continue
		}
		packBytes(regs[base:base+RegistersUID], slot.UID[:])
		packBytes(regs[base+RegistersUID:base+RegistersPerPosition], slot.Name[:])
	}

	return regs
}

// PositionBase returns the first register of position pos (1-based).
func PositionBase(pos uint8) int {
	return RegPositionStart + int(pos-1)*RegistersPerPosition
}

// packBytes stores two bytes per register, high byte first.
func packBytes(dst []uint16, b []byte) {
	for i := range dst {
		var hi, lo byte
		if 2*i < len(b) {
			hi = b[2*i]
		}
		if 2*i+1 < len(b) {
			lo = b[2*i+1]
		}
		dst[i] = uint16(hi)<<8 | uint16(lo)
	}
}

// UnpackBytes is the inverse of the register packing used by Encode:
// two bytes per register, high byte first, truncated to n bytes.
func UnpackBytes(src []uint16, n int) []byte {
	out := make([]byte, 0, 2*len(src))
	for _, r := range src {
		out = append(out, byte(r>>8), byte(r))
	}
	return out[:n]
}

// DecodePosition reads back the slot shown at pos from a block.
func DecodePosition(regs []uint16, pos uint8) filter.Slot {
	if !filter.ValidPosition(pos) || len(regs) < RegistersPerBlock {
		return filter.Slot{}
	}
	base := PositionBase(pos)

	var s filter.Slot
	copy(s.UID[:], UnpackBytes(regs[base:base+RegistersUID], filter.UIDLen))
	copy(s.Name[:], UnpackBytes(regs[base+RegistersUID:base+RegistersPerPosition], filter.NameLen))
	if s.Occupied() {
		s.Position = pos
	}
	return s
}

// Decode reads a full block back into a Snapshot.
// No IO. No side effects.
func Decode(regs []uint16) (Snapshot, error) {
	if len(regs) < RegistersPerBlock {
		return Snapshot{}, fmt.Errorf("status: block of %d registers, want %d", len(regs), RegistersPerBlock)
	}

	s := Snapshot{
		State:        regs[RegState],
		TagCount:     regs[RegTagCount],
		LastOutcome:  regs[RegLastOutcome],
		PendingFirst: regs[RegPendingFirst],
		Faults:       regs[RegFaults],
	}
	for pos := uint8(1); pos <= filter.Slots; pos++ {
		s.Positions[pos-1] = DecodePosition(regs, pos)
	}
	return s, nil
}
