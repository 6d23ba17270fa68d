// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// Box ID:
	// - ASCII already validated
	// - Truncate to the log file field width
	cfg.Box.ID = strings.TrimSpace(cfg.Box.ID)
	if len(cfg.Box.ID) > BoxIDMaxChars {
		cfg.Box.ID = cfg.Box.ID[:BoxIDMaxChars]
	}

	// Export timeout defaults to one cycle.
	if cfg.Export != nil && cfg.Export.TimeoutMs == 0 {
		cfg.Export.TimeoutMs = cfg.Cycle.IntervalMs
	}

	if r := cfg.Sensor.Reader; r != nil && r.TimeoutMs == 0 {
		r.TimeoutMs = cfg.Cycle.IntervalMs
	}

	// No other normalization is performed here.
	// Device geometry and runtime wiring belong to later stages.
}
