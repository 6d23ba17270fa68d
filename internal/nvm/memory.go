// internal/nvm/memory.go
package nvm

import (
	"errors"
	"fmt"
)

// Memory is a byte-addressable non-volatile memory.
// Calls are synchronous and have no partial-write rollback.
type Memory interface {
	Read(addr uint16, n uint8) ([]byte, error)
	Write(addr uint16, p []byte) error
	Size() int
}

// ErrOutOfRange is returned for accesses past the end of the device.
var ErrOutOfRange = errors.New("nvm: address out of range")

// Blank is the erased value of an EEPROM cell.
const Blank byte = 0xFF

func checkRange(size int, addr uint16, n int) error {
	if int(addr)+n > size {
		return fmt.Errorf("%w: addr=0x%04X len=%d size=%d", ErrOutOfRange, addr, n, size)
	}
	return nil
}
