// internal/assoc/store.go
package assoc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/nvm"
)

var (
	// ErrCapacityExceeded is returned when an append would run past a table.
	ErrCapacityExceeded = errors.New("assoc: table capacity exceeded")
	// ErrInvalidUID is returned for the reserved all-zero UID.
	ErrInvalidUID = errors.New("assoc: zero uid is reserved")
	// ErrEmptyName is returned when associating an empty name.
	ErrEmptyName = errors.New("assoc: empty name")
	// ErrCorrupt is returned when table headers or indices are inconsistent.
	ErrCorrupt = errors.New("assoc: store corrupt or unformatted")
)

// Association is one UID Table entry resolved against the Name Table.
type Association struct {
	UID       filter.TagID
	NameIndex uint16
	Name      filter.Name
}

// Store is the durable UID -> name association store.
//
// Store has exactly one caller: the controller's main loop (or an offline
// tool while the loop is stopped). It is never entered from interrupt
// context, so each call is a single transaction relative to other calls
// and no locking is performed.
//
// Appends write the entry before incrementing the table count, so a crash
// in between leaves the entry invisible.
type Store struct {
	mem    nvm.Memory
	layout Layout
}

// New binds a store to mem using the layout derived from its size.
func New(mem nvm.Memory) (*Store, error) {
	layout, err := LayoutFor(mem.Size())
	if err != nil {
		return nil, err
	}
	return &Store{mem: mem, layout: layout}, nil
}

// Layout returns the table geometry in use.
func (s *Store) Layout() Layout { return s.layout }

// Format resets both tables to empty.
func (s *Store) Format() error {
	if err := s.writeCount(UIDCountAddr, 0); err != nil {
		return err
	}
	return s.writeCount(NameCountAddr, 0)
}

// Counts returns the Name Table and UID Table entry counts.
func (s *Store) Counts() (names, uids uint16, err error) {
	if names, err = s.nameCount(); err != nil {
		return 0, 0, err
	}
	if uids, err = s.uidCount(); err != nil {
		return 0, 0, err
	}
	return names, uids, nil
}

// FindName looks up the name associated with uid.
// A miss is reported as ok=false with a nil error.
func (s *Store) FindName(uid filter.TagID) (filter.Name, bool, error) {
	if uid.IsZero() {
		return filter.Name{}, false, nil
	}

	idx, found, err := s.findUID(uid)
	if err != nil || !found {
		return filter.Name{}, false, err
	}

	raw, err := s.mem.Read(uidAddr(idx)+filter.UIDLen, IndexLen)
	if err != nil {
		return filter.Name{}, false, fmt.Errorf("assoc: read name index: %w", err)
	}
	nameIdx := binary.LittleEndian.Uint16(raw)

	names, err := s.nameCount()
	if err != nil {
		return filter.Name{}, false, err
	}
	if nameIdx >= names {
		return filter.Name{}, false, fmt.Errorf("%w: uid %s points at name %d of %d", ErrCorrupt, uid, nameIdx, names)
	}

	name, err := s.readName(nameIdx)
	if err != nil {
		return filter.Name{}, false, err
	}
	return name, true, nil
}

// Associate binds uid to name and returns the Name Table index used.
//
// The name is found or appended (exact 10-byte match), then the UID entry
// is found and its index rewritten in place, or appended. Capacity is
// checked for both tables before anything is written.
func (s *Store) Associate(uid filter.TagID, name filter.Name) (uint16, error) {
	if uid.IsZero() {
		return 0, ErrInvalidUID
	}
	if name.IsEmpty() {
		return 0, ErrEmptyName
	}

	// ---- lookups ----

	names, err := s.nameCount()
	if err != nil {
		return 0, err
	}
	nameIdx, nameFound, err := s.findName(name, names)
	if err != nil {
		return 0, err
	}

	uids, err := s.uidCount()
	if err != nil {
		return 0, err
	}
	uidIdx, uidFound, err := s.findUIDIn(uid, uids)
	if err != nil {
		return 0, err
	}

	// ---- capacity ----

	if !nameFound && names >= s.layout.NameCapacity {
		return 0, fmt.Errorf("%w: name table holds %d entries", ErrCapacityExceeded, s.layout.NameCapacity)
	}
	if !uidFound && uids >= s.layout.UIDCapacity {
		return 0, fmt.Errorf("%w: uid table holds %d entries", ErrCapacityExceeded, s.layout.UIDCapacity)
	}

	// ---- name: find-or-insert ----

	if !nameFound {
		nameIdx = names
		if err := s.mem.Write(nameAddr(nameIdx), name[:]); err != nil {
			return 0, fmt.Errorf("assoc: write name %d: %w", nameIdx, err)
		}
		if err := s.writeCount(NameCountAddr, names+1); err != nil {
			return 0, err
		}
	}

	// ---- uid: upsert ----

	var idxBytes [IndexLen]byte
	binary.LittleEndian.PutUint16(idxBytes[:], nameIdx)

	if uidFound {
		if err := s.mem.Write(uidAddr(uidIdx)+filter.UIDLen, idxBytes[:]); err != nil {
			return 0, fmt.Errorf("assoc: rewrite index of uid %d: %w", uidIdx, err)
		}
		return nameIdx, nil
	}

	rec := make([]byte, 0, UIDRecordLen)
	rec = append(rec, uid[:]...)
	rec = append(rec, idxBytes[:]...)

	if err := s.mem.Write(uidAddr(uids), rec); err != nil {
		return 0, fmt.Errorf("assoc: write uid %d: %w", uids, err)
	}
	if err := s.writeCount(UIDCountAddr, uids+1); err != nil {
		return 0, err
	}
	return nameIdx, nil
}

// Names returns the Name Table in insertion order.
func (s *Store) Names() ([]filter.Name, error) {
	n, err := s.nameCount()
	if err != nil {
		return nil, err
	}
	out := make([]filter.Name, 0, n)
	for i := uint16(0); i < n; i++ {
		name, err := s.readName(i)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// Associations returns every UID Table entry with its resolved name.
func (s *Store) Associations() ([]Association, error) {
	names, uids, err := s.Counts()
	if err != nil {
		return nil, err
	}

	out := make([]Association, 0, uids)
	for i := uint16(0); i < uids; i++ {
		raw, err := s.mem.Read(uidAddr(i), UIDRecordLen)
		if err != nil {
			return nil, fmt.Errorf("assoc: read uid %d: %w", i, err)
		}

		var a Association
		copy(a.UID[:], raw[:filter.UIDLen])
		a.NameIndex = binary.LittleEndian.Uint16(raw[filter.UIDLen:])
		if a.NameIndex >= names {
			return nil, fmt.Errorf("%w: uid entry %d points at name %d of %d", ErrCorrupt, i, a.NameIndex, names)
		}
		if a.Name, err = s.readName(a.NameIndex); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ---- primitives ----

func (s *Store) findName(name filter.Name, count uint16) (uint16, bool, error) {
	for i := uint16(0); i < count; i++ {
		got, err := s.readName(i)
		if err != nil {
			return 0, false, err
		}
		if got == name {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) findUID(uid filter.TagID) (uint16, bool, error) {
	count, err := s.uidCount()
	if err != nil {
		return 0, false, err
	}
	return s.findUIDIn(uid, count)
}

func (s *Store) findUIDIn(uid filter.TagID, count uint16) (uint16, bool, error) {
	for i := uint16(0); i < count; i++ {
		raw, err := s.mem.Read(uidAddr(i), filter.UIDLen)
		if err != nil {
			return 0, false, fmt.Errorf("assoc: read uid %d: %w", i, err)
		}
		if filter.TagID(raw) == uid {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) readName(index uint16) (filter.Name, error) {
	raw, err := s.mem.Read(nameAddr(index), NameRecordLen)
	if err != nil {
		return filter.Name{}, fmt.Errorf("assoc: read name %d: %w", index, err)
	}
	return filter.Name(raw), nil
}

func (s *Store) nameCount() (uint16, error) {
	return s.readCount(NameCountAddr, s.layout.NameCapacity)
}

func (s *Store) uidCount() (uint16, error) {
	return s.readCount(UIDCountAddr, s.layout.UIDCapacity)
}

func (s *Store) readCount(addr, capacity uint16) (uint16, error) {
	raw, err := s.mem.Read(addr, CountLen)
	if err != nil {
		return 0, fmt.Errorf("assoc: read count at 0x%04X: %w", addr, err)
	}
	n := binary.LittleEndian.Uint16(raw)
	if n > capacity {
		return 0, fmt.Errorf("%w: count %d at 0x%04X exceeds capacity %d", ErrCorrupt, n, addr, capacity)
	}
	return n, nil
}

func (s *Store) writeCount(addr, n uint16) error {
	var b [CountLen]byte
	binary.LittleEndian.PutUint16(b[:], n)
	if err := s.mem.Write(addr, b[:]); err != nil {
		return fmt.Errorf("assoc: write count at 0x%04X: %w", addr, err)
	}
	return nil
}
