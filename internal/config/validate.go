// internal/config/validate.go
package config

import (
	"fmt"
	"net"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/sensor"
	"github.com/tamzrod/mattebox/internal/status"
)

// BoxIDMaxChars is the longest box ID written to log files.
const BoxIDMaxChars = 9

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// FIELD RULES
	// ------------------------------------------------------------

	if err := validation.ValidateStruct(&cfg.Box,
		validation.Field(&cfg.Box.ID, validation.Required, validation.By(printableASCII)),
	); err != nil {
		return fmt.Errorf("box: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Cycle,
		validation.Field(&cfg.Cycle.IntervalMs, validation.Required, validation.Min(10)),
		validation.Field(&cfg.Cycle.ReorderTimeoutMs, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Buttons,
		validation.Field(&cfg.Buttons.LongPressMs, validation.Required, validation.Min(1)),
		validation.Field(&cfg.Buttons.MediaDebounceMs, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("buttons: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.NVM,
		validation.Field(&cfg.NVM.Path, validation.Required),
		validation.Field(&cfg.NVM.Size, validation.Required, validation.Max(1<<16)),
		validation.Field(&cfg.NVM.PageSize, validation.Min(0), validation.By(powerOfTwo)),
		validation.Field(&cfg.NVM.WriteDelayMs, validation.Min(0), validation.Max(100)),
	); err != nil {
		return fmt.Errorf("nvm: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Sensor,
		validation.Field(&cfg.Sensor.Source, validation.Required, validation.In("file", "reader")),
		validation.Field(&cfg.Sensor.Path, validation.When(cfg.Sensor.Source == "file", validation.Required)),
		validation.Field(&cfg.Sensor.Reader, validation.When(cfg.Sensor.Source == "reader", validation.Required)),
	); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	if r := cfg.Sensor.Reader; r != nil && cfg.Sensor.Source == "reader" {
		if err := validation.ValidateStruct(r,
			validation.Field(&r.Endpoint, validation.Required),
			validation.Field(&r.TimeoutMs, validation.Min(0)),
		); err != nil {
			return fmt.Errorf("sensor.reader: %w", err)
		}
		if _, _, err := net.SplitHostPort(r.Endpoint); err != nil {
			return fmt.Errorf("sensor.reader: endpoint %q: %w", r.Endpoint, err)
		}
		if int(r.Address)+sensor.ReaderRegsPerBlock > 1<<16 {
			return fmt.Errorf("sensor.reader: address %d places the tag block past register 65535", r.Address)
		}
	}

	if err := validation.ValidateStruct(&cfg.Datalog,
		validation.Field(&cfg.Datalog.Root, validation.Required),
	); err != nil {
		return fmt.Errorf("datalog: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Log,
		validation.Field(&cfg.Log.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&cfg.Log.Encoding, validation.In("json", "console")),
		validation.Field(&cfg.Log.MaxSizeMB, validation.Min(0)),
		validation.Field(&cfg.Log.MaxBackups, validation.Min(0)),
		validation.Field(&cfg.Log.MaxAgeDays, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	// ------------------------------------------------------------
	// CROSS-FIELD RULES
	// ------------------------------------------------------------

	// The reorder timeout is counted in whole cycles.
	if cfg.Cycle.ReorderTimeoutMs < cfg.Cycle.IntervalMs {
		return fmt.Errorf(
			"cycle: reorder_timeout_ms (%d) must be at least interval_ms (%d)",
			cfg.Cycle.ReorderTimeoutMs,
			cfg.Cycle.IntervalMs,
		)
	}

	// The device must hold the fixed table layout.
	if _, err := assoc.LayoutFor(cfg.NVM.Size); err != nil {
		return fmt.Errorf("nvm: %w", err)
	}

	if cfg.Diag.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Diag.Address); err != nil {
			return fmt.Errorf("diag: address %q: %w", cfg.Diag.Address, err)
		}
	}

	// ------------------------------------------------------------
	// STATUS EXPORT (OPT-IN)
	// ------------------------------------------------------------

	if e := cfg.Export; e != nil {
		if err := validation.ValidateStruct(e,
			validation.Field(&e.Endpoint, validation.Required),
			validation.Field(&e.TimeoutMs, validation.Min(0)),
		); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if _, _, err := net.SplitHostPort(e.Endpoint); err != nil {
			return fmt.Errorf("export: endpoint %q: %w", e.Endpoint, err)
		}

		// The block must fit in the 16-bit register space.
		end := (int(e.BaseSlot) + 1) * status.RegistersPerBlock
		if end > 1<<16 {
			return fmt.Errorf(
				"export: base_slot %d places the status block past register 65535",
				e.BaseSlot,
			)
		}
	}

	return nil
}

func printableASCII(v any) error {
	s, _ := v.(string)
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return fmt.Errorf("must contain printable ASCII characters only")
		}
	}
	return nil
}

func powerOfTwo(v any) error {
	n, _ := v.(int)
	if n > 0 && n&(n-1) != 0 {
		return fmt.Errorf("must be a power of two")
	}
	return nil
}
