// internal/filter/section.go
package filter

// ValidPosition reports whether pos names a physical slot (1..Slots).
func ValidPosition(pos uint8) bool {
	return pos >= 1 && pos <= Slots
}

// Holder returns the index of the occupied slot at pos.
func (s *Section) Holder(pos uint8) (int, bool) {
	if !ValidPosition(pos) {
		return -1, false
	}
	for i := range s.Slots {
		if s.Slots[i].Occupied() && s.Slots[i].Position == pos {
			return i, true
		}
	}
	return -1, false
}

// Find returns the index of the slot tracking uid.
// The zero UID never matches.
func (s *Section) Find(uid TagID) (int, bool) {
	if uid.IsZero() {
		return -1, false
	}
	for i := range s.Slots {
		if s.Slots[i].UID == uid {
			return i, true
		}
	}
	return -1, false
}

// ByPosition returns the slot shown at each position 1..Slots.
// Index 0 of the result is position 1. Empty positions are zero Slots.
func (s *Section) ByPosition() [Slots]Slot {
	var out [Slots]Slot
	for pos := uint8(1); pos <= Slots; pos++ {
		if i, ok := s.Holder(pos); ok {
			out[pos-1] = s.Slots[i]
		}
	}
	return out
}

// Exchange swaps the physical positions first and second.
//
// The position -> slot mapping is completed first: every slot whose
// position is 0 is given the lowest unmapped position, so both ends of the
// swap always resolve to a slot even when one of them is empty. Only the
// two swapped slots are written back.
//
// Exchange is a no-op when first == second or either position is invalid.
func (s *Section) Exchange(first, second uint8) {
	if first == second || !ValidPosition(first) || !ValidPosition(second) {
		return
	}

	var mapping [Slots + 1]int // index by position; 0 unused
	for p := range mapping {
		mapping[p] = -1
	}

	for i := range s.Slots {
		if p := s.Slots[i].Position; ValidPosition(p) && mapping[p] < 0 {
			mapping[p] = i
		}
	}

	// Complete the permutation.
	var temp [Slots]uint8
	for i := range s.Slots {
		temp[i] = s.Slots[i].Position
		if temp[i] != 0 {
			continue
		}
		for p := uint8(1); p <= Slots; p++ {
			if mapping[p] < 0 {
				mapping[p] = i
				temp[i] = p
				break
			}
		}
	}

	a, b := mapping[first], mapping[second]
	if a < 0 || b < 0 {
		return
	}

	s.Slots[a].Position = temp[b]
	s.Slots[b].Position = temp[a]
}
