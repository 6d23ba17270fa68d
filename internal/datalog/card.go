// internal/datalog/card.go
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/filter"
)

// ErrNotMounted is returned by Log while no card is mounted.
var ErrNotMounted = errors.New("datalog: media not mounted")

// Card file layout.
const (
	LogDir     = "LIGHT_WIDOW"
	dateLayout = "01-02-2006"
	timeLayout = "15:04:05"
)

var columns = []string{"Time", "Filter Slot 1", "Filter Slot 2", "Filter Slot 3"}

// Card is the removable-media logger: one CSV file per day and box under
// <root>/LIGHT_WIDOW. Mount and Unmount follow the card-detect events.
type Card struct {
	root  string
	boxID string
	now   func() time.Time
	log   *zap.Logger

	mu      sync.Mutex
	mounted bool
}

// NewCard logs under root for the box boxID. The card starts unmounted.
func NewCard(root, boxID string, log *zap.Logger) *Card {
	if log == nil {
		log = zap.NewNop()
	}
	return &Card{root: root, boxID: boxID, now: time.Now, log: log}
}

// Mount prepares the log directory on the card.
func (c *Card) Mount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.root)
	if err != nil {
		c.mounted = false
		return fmt.Errorf("datalog: card root: %w", err)
	}
	if !info.IsDir() {
		c.mounted = false
		return fmt.Errorf("datalog: card root %s is not a directory", c.root)
	}
	if err := os.MkdirAll(c.dir(), 0o755); err != nil {
		c.mounted = false
		return fmt.Errorf("datalog: create log dir: %w", err)
	}

	c.mounted = true
	return nil
}

// Unmount stops logging until the next Mount.
func (c *Card) Unmount() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = false
	return nil
}

// Mounted reports whether the card is ready.
func (c *Card) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// FileName is the log file for the given day.
func (c *Card) FileName(day time.Time) string {
	return fmt.Sprintf("FilterLog_%s_%s.csv", day.Format(dateLayout), c.boxID)
}

// Log appends one row with the filter names in position order.
// A new file starts with the header block.
func (c *Card) Log(sec filter.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return ErrNotMounted
	}

	now := c.now()
	path := filepath.Join(c.dir(), c.FileName(now))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("datalog: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("datalog: stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		header := [][]string{
			{"Light Widow Matte Box"},
			{"Matte Box ID:", c.boxID},
			{"Date:", now.Format(dateLayout)},
			{"Notes:"},
			{},
			columns,
		}
		if err := w.WriteAll(header); err != nil {
			f.Close()
			return fmt.Errorf("datalog: write header: %w", err)
		}
	}

	row := []string{now.Format(timeLayout)}
	for _, s := range sec.ByPosition() {
		row = append(row, s.Name.String())
	}
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("datalog: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("datalog: flush: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("datalog: close %s: %w", path, err)
	}

	c.log.Debug("row logged", zap.String("file", path))
	return nil
}

func (c *Card) dir() string {
	return filepath.Join(c.root, LogDir)
}
