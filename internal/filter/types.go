// internal/filter/types.go
package filter

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ---- GEOMETRY ----

// Slots is the number of physical filter positions in the tray.
const Slots = 3

// UIDLen is the length of a tag identifier in bytes.
const UIDLen = 8

// NameLen is the length of a stored filter name in bytes (zero padded).
const NameLen = 10

// ---- TAG IDENTIFIER ----

// TagID is an opaque 8-byte tag identifier.
// The all-zero value is reserved as "absent".
type TagID [UIDLen]byte

// IsZero reports whether id is the reserved empty identifier.
func (id TagID) IsZero() bool {
	return id == TagID{}
}

// String formats the identifier as upper-case hex.
func (id TagID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// ParseTagID parses 16 hex digits, optionally separated by ':' or '-'.
func ParseTagID(s string) (TagID, error) {
	var id TagID

	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(s)
	if len(clean) != 2*UIDLen {
		return id, fmt.Errorf("filter: uid %q must be %d hex digits", s, 2*UIDLen)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return id, fmt.Errorf("filter: uid %q: %w", s, err)
	}

	copy(id[:], raw)
	return id, nil
}

// ---- FILTER NAME ----

// Name is a fixed 10-byte, zero-padded filter name.
// The first zero byte terminates the logical name.
type Name [NameLen]byte

// ErrNameTooLong is returned by ParseName for names over NameLen bytes.
var ErrNameTooLong = errors.New("filter: name longer than 10 bytes")

// MakeName builds a Name from s, truncating to NameLen bytes.
func MakeName(s string) Name {
	var n Name
	copy(n[:], s)
	return n
}

// ParseName builds a Name from s and rejects names that would be truncated
// or that contain a NUL byte.
func ParseName(s string) (Name, error) {
	if len(s) > NameLen {
		return Name{}, ErrNameTooLong
	}
	if strings.IndexByte(s, 0) >= 0 {
		return Name{}, errors.New("filter: name contains NUL byte")
	}
	return MakeName(s), nil
}

// IsEmpty reports whether all ten bytes are zero.
func (n Name) IsEmpty() bool {
	return n == Name{}
}

// String returns the logical name (up to the first zero byte).
func (n Name) String() string {
	if i := bytes.IndexByte(n[:], 0); i >= 0 {
		return string(n[:i])
	}
	return string(n[:])
}

// ---- SLOT / SECTION ----

// Slot associates a tracked tag with its name and physical position.
// Position 0 means unassigned.
type Slot struct {
	UID      TagID
	Name     Name
	Position uint8
}

// Occupied reports whether the slot tracks a tag.
func (s Slot) Occupied() bool {
	return !s.UID.IsZero()
}

// Clear resets the slot to empty.
func (s *Slot) Clear() {
	*s = Slot{}
}

// Section is the three-slot model of the tray.
// Count is the number of tags sensed in the last cycle.
type Section struct {
	Count uint8
	Slots [Slots]Slot
}

// ---- SENSED TAGS ----

// Tag is one detection: a UID and the name read off the tag (may be empty).
type Tag struct {
	UID  TagID
	Name Name
}

// TagSet is the result of one sensing cycle.
type TagSet struct {
	Count uint8
	Tags  [Slots]Tag
}

// Add appends a tag. It returns false when the set is full.
func (ts *TagSet) Add(t Tag) bool {
	if int(ts.Count) >= Slots {
		return false
	}
	ts.Tags[ts.Count] = t
	ts.Count++
	return true
}
