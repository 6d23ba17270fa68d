// internal/nvm/paged.go
package nvm

import "time"

// Paged splits writes at page boundaries the way a serial EEPROM requires:
// a page write that crosses a boundary would wrap to the start of the page.
// Each page write is followed by the device write-cycle delay.
type Paged struct {
	Memory
	PageSize   int
	WriteDelay time.Duration

	sleep func(time.Duration)
}

// NewPaged wraps mem. pageSize <= 0 disables splitting.
func NewPaged(mem Memory, pageSize int, writeDelay time.Duration) *Paged {
	return &Paged{
		Memory:     mem,
		PageSize:   pageSize,
		WriteDelay: writeDelay,
		sleep:      time.Sleep,
	}
}

func (p *Paged) Write(addr uint16, data []byte) error {
	if err := checkRange(p.Size(), addr, len(data)); err != nil {
		return err
	}

	for len(data) > 0 {
		n := len(data)
		if p.PageSize > 0 {
			room := p.PageSize - int(addr)%p.PageSize
			if n > room {
				n = room
			}
		}

		if err := p.Memory.Write(addr, data[:n]); err != nil {
			return err
		}
		if p.WriteDelay > 0 && p.sleep != nil {
			p.sleep(p.WriteDelay)
		}

		addr += uint16(n)
		data = data[n:]
	}
	return nil
}
