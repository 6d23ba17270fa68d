// internal/machine/runner.go
package machine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Exec when no running loop accepted the task
// before ctx ended.
var ErrStopped = errors.New("machine: loop stopped")

type task struct {
	fn   func() error
	done chan error
}

// Run drives cycles on a ticker until ctx is cancelled.
// Queued tasks run between cycles on the same goroutine. No overlap.
func (m *Machine) Run(ctx context.Context) error {
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial draw and full status assert.
	m.d.Display.Redraw(m.sec, 0)
	m.publish()

	m.log.Info("controller started",
		zap.Duration("interval", interval),
		zap.Int("reorder_timeout_cycles", m.timeout),
	)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("controller stopped", zap.Uint64("cycles", m.cycles))
			return nil

		case <-ticker.C:
			m.Cycle(ctx)

		case t := <-m.tasks:
			t.done <- t.fn()
		}
	}
}

// Exec runs fn on the loop goroutine between two cycles and returns its
// error. Callers use it for anything that must not race with a cycle,
// such as association store access. It blocks until fn has run or ctx is
// done.
func (m *Machine) Exec(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case m.tasks <- t:
	case <-ctx.Done():
		return errors.Join(ErrStopped, ctx.Err())
	}

	// Once accepted the task always completes.
	return <-t.done
}
