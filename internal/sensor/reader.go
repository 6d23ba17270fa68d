// internal/sensor/reader.go
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/status"
)

// Reader register map, relative to the configured base address.
// Layout is protocol-locked.
const (
	ReaderRegCount     = 0
	ReaderRegTagStart  = 1
	ReaderRegsUID      = 4
	ReaderRegsName     = 5
	ReaderRegsPerTag   = ReaderRegsUID + ReaderRegsName
	ReaderRegsPerBlock = ReaderRegTagStart + filter.Slots*ReaderRegsPerTag
)

// RegisterClient abstracts the Modbus read the reader needs.
// The export modbus EndpointClient satisfies it.
type RegisterClient interface {
	ReadRegisters(unitID uint8, addr uint16, qty uint16) ([]uint16, error)
}

// ReaderConfig is the minimal runtime config the reader needs.
type ReaderConfig struct {
	UnitID  uint8
	Address uint16
	Legacy  bool
}

// Reader senses tags from a remote tag reader exposing its antenna results
// as one holding register block. One read per cycle. No retries.
type Reader struct {
	cfg    ReaderConfig
	client RegisterClient
}

// NewReader creates a reader with immutable config.
func NewReader(cfg ReaderConfig, client RegisterClient) (*Reader, error) {
	if client == nil {
		return nil, errors.New("sensor: reader client required")
	}
	if int(cfg.Address)+ReaderRegsPerBlock > 1<<16 {
		return nil, fmt.Errorf("sensor: reader block at %d exceeds register space", cfg.Address)
	}
	return &Reader{cfg: cfg, client: client}, nil
}

// Acquire performs exactly one block read.
// All-or-nothing: any failure yields an empty set.
func (r *Reader) Acquire(ctx context.Context) (filter.TagSet, error) {
	if err := ctx.Err(); err != nil {
		return filter.TagSet{}, err
	}

	regs, err := r.client.ReadRegisters(r.cfg.UnitID, r.cfg.Address, ReaderRegsPerBlock)
	if err != nil {
		return filter.TagSet{}, fmt.Errorf("sensor: read block: %w", err)
	}
	return decodeBlock(regs, r.cfg.Legacy)
}

func decodeBlock(regs []uint16, legacy bool) (filter.TagSet, error) {
	var set filter.TagSet

	if len(regs) < ReaderRegsPerBlock {
		return set, fmt.Errorf("sensor: short block: %d registers, want %d", len(regs), ReaderRegsPerBlock)
	}

	n := int(regs[ReaderRegCount])
	if n > filter.Slots {
		return set, fmt.Errorf("sensor: reader reports %d tags, at most %d", n, filter.Slots)
	}

	for i := 0; i < n; i++ {
		base := ReaderRegTagStart + i*ReaderRegsPerTag

		var t filter.Tag
		copy(t.UID[:], status.UnpackBytes(regs[base:base+ReaderRegsUID], filter.UIDLen))
		if t.UID.IsZero() {
			return filter.TagSet{}, fmt.Errorf("sensor: tag %d has zero uid", i)
		}
		if !legacy {
			copy(t.Name[:], status.UnpackBytes(regs[base+ReaderRegsUID:base+ReaderRegsPerTag], filter.NameLen))
		}
		set.Add(t)
	}
	return set, nil
}
