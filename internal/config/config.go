// internal/config/config.go
package config

import "time"

type Config struct {
	Box     BoxConfig     `yaml:"box"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Buttons ButtonsConfig `yaml:"buttons"`
	NVM     NVMConfig     `yaml:"nvm"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Datalog DatalogConfig `yaml:"datalog"`
	Diag    DiagConfig    `yaml:"diag"`
	Log     LogConfig     `yaml:"log"`

	// Status export (optional, opt-in)
	Export *ExportConfig `yaml:"export"`
}

// ---- BOX ----

type BoxConfig struct {
	ID string `yaml:"id"`
}

// ---- CYCLE ----

type CycleConfig struct {
	IntervalMs       int `yaml:"interval_ms"`
	ReorderTimeoutMs int `yaml:"reorder_timeout_ms"`
}

func (c CycleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c CycleConfig) ReorderTimeout() time.Duration {
	return time.Duration(c.ReorderTimeoutMs) * time.Millisecond
}

// ---- BUTTONS / MEDIA DETECT ----

type ButtonsConfig struct {
	LongPressMs     int `yaml:"long_press_ms"`
	MediaDebounceMs int `yaml:"media_debounce_ms"`
}

// ---- NON-VOLATILE MEMORY ----

type NVMConfig struct {
	Path         string `yaml:"path"`
	Size         int    `yaml:"size"`
	PageSize     int    `yaml:"page_size"`
	WriteDelayMs int    `yaml:"write_delay_ms"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Source string `yaml:"source"` // "file" or "reader"
	Path   string `yaml:"path"`

	// Drop names carried on tags and resolve them from the store.
	LegacyLookup bool `yaml:"legacy_lookup"`

	// Remote tag reader (source: reader)
	Reader *ReaderConfig `yaml:"reader"`
}

type ReaderConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- DATALOG ----

type DatalogConfig struct {
	Root        string `yaml:"root"`         // card mount point
	HistoryPath string `yaml:"history_path"` // sqlite file; empty disables
}

// ---- STATUS EXPORT ----

type ExportConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- DIAGNOSTICS ----

type DiagConfig struct {
	Address string `yaml:"address"` // empty disables
}

// ---- LOGGING ----

type LogConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration of a stock box with a 24AA64.
func Default() *Config {
	return &Config{
		Box: BoxConfig{ID: "LBSA0100P"},
		Cycle: CycleConfig{
			IntervalMs:       1000,
			ReorderTimeoutMs: 5000,
		},
		Buttons: ButtonsConfig{
			LongPressMs:     1000,
			MediaDebounceMs: 10,
		},
		NVM: NVMConfig{
			Path:     "mattebox.eeprom",
			Size:     8192,
			PageSize: 32,
		},
		Sensor: SensorConfig{
			Source: "file",
			Path:   "tags.yaml",
		},
		Datalog: DatalogConfig{
			Root: "sdcard",
		},
		Log: LogConfig{
			Level:      "info",
			Encoding:   "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
