// cmd/mattebox/status.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tamzrod/mattebox/internal/export"
	"github.com/tamzrod/mattebox/internal/export/modbus"
	"github.com/tamzrod/mattebox/internal/status"
)

var stateNames = map[uint16]string{
	status.StateBoot:           "boot",
	status.StateNormal:         "normal",
	status.StateReorderPending: "reorder-pending",
	status.StateNameResolution: "name-resolution",
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Read the exported status block back from the Modbus endpoint",
		Action: readStatus,
	}
}

func readStatus(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e := cfg.Export
	if e == nil {
		return fmt.Errorf("status export is not configured")
	}

	client, err := modbus.NewEndpointClient(modbus.Config{
		Endpoint: e.Endpoint,
		Timeout:  time.Duration(e.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	addr := export.BlockAddress(e.BaseSlot)
	regs, err := client.ReadRegisters(e.UnitID, addr, status.RegistersPerBlock)
	if err != nil {
		return fmt.Errorf("read status block at %d: %w", addr, err)
	}
	snap, err := status.Decode(regs)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "state:    %s\n", stateNames[snap.State])
	fmt.Fprintf(os.Stdout, "tags:     %d\n", snap.TagCount)
	fmt.Fprintf(os.Stdout, "outcome:  %d\n", snap.LastOutcome)
	fmt.Fprintf(os.Stdout, "pending:  %d\n", snap.PendingFirst)
	fmt.Fprintf(os.Stdout, "faults:   0x%04X\n", snap.Faults)
	for i, slot := range snap.Positions {
		if !slot.Occupied() {
			fmt.Fprintf(os.Stdout, "%d  -\n", i+1)
			continue
		}
		fmt.Fprintf(os.Stdout, "%d  %s  %s\n", i+1, slot.UID, slot.Name)
	}
	return nil
}
