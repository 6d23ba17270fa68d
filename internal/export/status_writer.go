// internal/export/status_writer.go
package export

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/status"
)

// StatusWriter is the delivery-only contract for the filter status block.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// endpointClient is the subset of the Modbus client used here.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Plan locates the status block on the endpoint.
type Plan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
}

// blockWriter is the concrete status writer used by the controller.
type blockWriter struct {
	plan Plan
	cli  endpointClient

	needFull bool
	last     []uint16
}

// NewStatusWriter builds a writer for plan over cli.
func NewStatusWriter(plan Plan, cli endpointClient) (StatusWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	if (int(plan.BaseSlot)+1)*status.RegistersPerBlock > 0x10000 {
		return nil, fmt.Errorf("status writer: base slot %d out of range", plan.BaseSlot)
	}
	return &blockWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
	}, nil
}

// WriteStatus delivers a snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (w *blockWriter) WriteStatus(s status.Snapshot) error {
	if w == nil || w.cli == nil {
		return errors.New("status writer: disabled")
	}

	regs := status.Encode(s)
	baseAddr := w.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if w.needFull {
		if err := w.cli.WriteRegisters(w.plan.UnitID, baseAddr, regs); err != nil {
			w.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		w.needFull = false
		w.last = regs
		return nil
	}

	var errs []string

	// Header registers are written one by one.
	for reg := 0; reg < status.RegPositionStart; reg++ {
		if w.last[reg] == regs[reg] {
			continue
		}
		if err := w.cli.WriteRegisters(w.plan.UnitID, baseAddr+uint16(reg), regs[reg:reg+1]); err != nil {
			errs = append(errs, fmt.Sprintf("reg%d write failed: %v", reg, err))
			continue
		}
		w.last[reg] = regs[reg]
	}

	// A position is rewritten as a whole when any of its registers changed.
	for pos := uint8(1); pos <= filter.Slots; pos++ {
		lo := status.PositionBase(pos)
		hi := lo + status.RegistersPerPosition
		if slices.Equal(w.last[lo:hi], regs[lo:hi]) {
			continue
		}
		if err := w.cli.WriteRegisters(w.plan.UnitID, baseAddr+uint16(lo), regs[lo:hi]); err != nil {
			errs = append(errs, fmt.Sprintf("position%d write failed: %v", pos, err))
			continue
		}
		copy(w.last[lo:hi], regs[lo:hi])
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		w.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (w *blockWriter) baseAddr() uint16 {
	return BlockAddress(w.plan.BaseSlot)
}

// BlockAddress is the first register of the block in baseSlot.
// Each box owns a fixed RegistersPerBlock block.
func BlockAddress(baseSlot uint16) uint16 {
	return baseSlot * status.RegistersPerBlock
}

