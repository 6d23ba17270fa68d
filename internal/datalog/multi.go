// internal/datalog/multi.go
package datalog

import (
	"errors"

	"github.com/tamzrod/mattebox/internal/filter"
)

// Recorder appends a section to a log.
type Recorder interface {
	Log(sec filter.Section) error
}

// Multi fans a log call out to every recorder. All recorders are called;
// their errors are joined.
type Multi []Recorder

func (m Multi) Log(sec filter.Section) error {
	var errs []error
	for _, r := range m {
		if err := r.Log(sec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
