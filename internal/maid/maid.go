// Package maid provides a lifecycle registry: an ordered list of cleanup
// tasks that are all run exactly once when the registry is destroyed.
//
// A task is any of:
//   - func()
//   - func() error
//   - a value with Destroy() or Destroy() error (including another *Maid)
//   - a value with Disconnect() (a signal connection)
//   - an io.Closer
//
// Destroy runs every task even when some fail: panics are recovered, errors
// are collected, and the joined result is returned.
package maid

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zjrosen/quickscale/internal/log"
)

var (
	// ErrNilTask is returned by Add for a nil task.
	ErrNilTask = errors.New("nil task")

	// ErrUnsupportedTask is returned by Add for a value it cannot clean up.
	ErrUnsupportedTask = errors.New("unsupported task type")
)

type destroyer interface{ Destroy() }

type errDestroyer interface{ Destroy() error }

type disconnecter interface{ Disconnect() }

// Maid collects cleanup tasks. The zero value is ready to use.
type Maid struct {
	mu        sync.Mutex
	tasks     []func() error
	destroyed bool
}

// New returns an empty Maid.
func New() *Maid {
	return &Maid{}
}

// Add registers task for cleanup. If the Maid is already destroyed the task
// runs immediately and its error is returned.
func (m *Maid) Add(task any) error {
	fn, err := normalize(task)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if !m.destroyed {
		m.tasks = append(m.tasks, fn)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	log.Debug(log.CatMaid, "task added after destroy, running now")
	return run(fn)
}

// Destroy runs every task in insertion order and empties the Maid.
// Calling it again is a no-op that returns nil.
func (m *Maid) Destroy() error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil
	}
	m.destroyed = true
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	var errs []error
	for i, fn := range tasks {
		if err := run(fn); err != nil {
			log.ErrorErr(log.CatMaid, "cleanup task failed", err, "index", i, "tasks", len(tasks))
			errs = append(errs, fmt.Errorf("task %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of pending tasks.
func (m *Maid) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Destroyed reports whether Destroy has run.
func (m *Maid) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

func normalize(task any) (func() error, error) {
	switch t := task.(type) {
	case nil:
		return nil, ErrNilTask
	case func():
		if t == nil {
			return nil, ErrNilTask
		}
		return func() error { t(); return nil }, nil
	case func() error:
		if t == nil {
			return nil, ErrNilTask
		}
		return t, nil
	case errDestroyer:
		return t.Destroy, nil
	case destroyer:
		return func() error { t.Destroy(); return nil }, nil
	case disconnecter:
		return func() error { t.Disconnect(); return nil }, nil
	case io.Closer:
		return t.Close, nil
	default:
		return nil, fmt.Errorf("%T: %w", task, ErrUnsupportedTask)
	}
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
