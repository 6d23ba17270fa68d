// internal/nvm/file.go
package nvm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// File is a device image persisted to a regular file.
// A missing file is created blank (0xFF) at the requested size.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens or creates the image at path.
// An existing image must match size exactly.
func OpenFile(path string, size int) (*File, error) {
	if size <= 0 || size > 1<<16 {
		return nil, fmt.Errorf("nvm: size %d out of range (1..65536)", size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("nvm: open image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nvm: stat image: %w", err)
	}

	switch info.Size() {
	case 0:
		blank := bytes.Repeat([]byte{Blank}, size)
		if _, err := f.WriteAt(blank, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvm: initialise image: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvm: sync image: %w", err)
		}
	case int64(size):
	default:
		f.Close()
		return nil, fmt.Errorf("nvm: image %s is %d bytes, want %d", path, info.Size(), size)
	}

	return &File{f: f, size: size}, nil
}

func (m *File) Size() int { return m.size }

func (m *File) Read(addr uint16, n uint8) ([]byte, error) {
	if err := checkRange(m.size, addr, int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := m.f.ReadAt(out, int64(addr)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("nvm: read 0x%04X: %w", addr, err)
	}
	return out, nil
}

func (m *File) Write(addr uint16, p []byte) error {
	if err := checkRange(m.size, addr, len(p)); err != nil {
		return err
	}
	if _, err := m.f.WriteAt(p, int64(addr)); err != nil {
		return fmt.Errorf("nvm: write 0x%04X: %w", addr, err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("nvm: sync: %w", err)
	}
	return nil
}

// Close closes the image file.
func (m *File) Close() error {
	if m == nil || m.f == nil {
		return nil
	}
	return m.f.Close()
}
