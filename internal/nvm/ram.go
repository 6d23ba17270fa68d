// internal/nvm/ram.go
package nvm

import "sync"

// RAM is an in-memory device image.
type RAM struct {
	mu   sync.Mutex
	data []byte
}

// NewRAM returns a device of size bytes, every cell set to fill.
func NewRAM(size int, fill byte) *RAM {
	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}
	return &RAM{data: data}
}

func (r *RAM) Size() int { return len(r.data) }

func (r *RAM) Read(addr uint16, n uint8) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkRange(len(r.data), addr, int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[addr:])
	return out, nil
}

func (r *RAM) Write(addr uint16, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkRange(len(r.data), addr, len(p)); err != nil {
		return err
	}
	copy(r.data[addr:], p)
	return nil
}

// Bytes returns a copy of the whole image.
func (r *RAM) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}
