// internal/sensor/file.go
package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/mattebox/internal/filter"
)

// document is the on-disk shape of the tag file.
//
//	tags:
//	  - uid: "04A1B2C3D4E5F601"
//	    name: "ND.6"
type document struct {
	Tags []struct {
		UID  string `yaml:"uid"`
		Name string `yaml:"name"`
	} `yaml:"tags"`
}

// File senses tags from a YAML file standing in for the radio.
// The file is parsed on first use and again whenever Watch sees it change.
// A missing file means no tags in range.
type File struct {
	path   string
	legacy bool
	log    *zap.Logger

	mu     sync.Mutex
	loaded bool
	set    filter.TagSet
	err    error
}

// NewFile senses from path. With legacy set, inline names are discarded so
// names must come from the association store.
func NewFile(path string, legacy bool, log *zap.Logger) *File {
	if log == nil {
		log = zap.NewNop()
	}
	return &File{path: path, legacy: legacy, log: log}
}

// Acquire returns the tags currently in the file.
// On error the returned set is empty.
func (f *File) Acquire(ctx context.Context) (filter.TagSet, error) {
	if err := ctx.Err(); err != nil {
		return filter.TagSet{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		f.reloadLocked()
	}
	if f.err != nil {
		return filter.TagSet{}, f.err
	}
	return f.set, nil
}

// Reload parses the file again.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloadLocked()
	return f.err
}

func (f *File) reloadLocked() {
	f.loaded = true
	f.set, f.err = parseFile(f.path, f.legacy)
}

func parseFile(path string, legacy bool) (filter.TagSet, error) {
	var set filter.TagSet

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("sensor: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return filter.TagSet{}, fmt.Errorf("sensor: parse %s: %w", path, err)
	}
	if len(doc.Tags) > filter.Slots {
		return filter.TagSet{}, fmt.Errorf("sensor: %d tags in range, at most %d", len(doc.Tags), filter.Slots)
	}

	for i, t := range doc.Tags {
		uid, err := filter.ParseTagID(t.UID)
		if err != nil {
			return filter.TagSet{}, fmt.Errorf("sensor: tag %d: %w", i, err)
		}
		var name filter.Name
		if !legacy {
			name = filter.MakeName(t.Name)
		}
		set.Add(filter.Tag{UID: uid, Name: name})
	}
	return set, nil
}

// Watch reloads the file on every change until ctx is cancelled.
// The parent directory is watched so editors that replace the file by
// rename are picked up.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sensor: watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("sensor: watch %s: %w", dir, err)
	}
	target := filepath.Clean(f.path)

	f.log.Info("tag file watch started", zap.String("path", f.path))

	for {
		select {
		case <-ctx.Done():
			f.log.Info("tag file watch stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.Reload(); err != nil {
				f.log.Warn("tag file reload failed", zap.Error(err))
				continue
			}
			f.log.Debug("tag file reloaded", zap.Stringer("op", ev.Op))

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Error("tag file watch error", zap.Error(werr))
		}
	}
}
