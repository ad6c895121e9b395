package scene

import (
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/quickscale/internal/log"
)

// Connection is the handle returned by Signal.Connect and Signal.Once.
// Disconnecting takes effect immediately, including for a Fire already in progress.
type Connection struct {
	live    atomic.Bool
	release func()
}

// Disconnect detaches the handler. Calling it more than once is safe.
func (c *Connection) Disconnect() {
	if c == nil || !c.live.CompareAndSwap(true, false) {
		return
	}
	if c.release != nil {
		c.release()
	}
}

// Connected reports whether the handler is still attached.
func (c *Connection) Connected() bool {
	return c != nil && c.live.Load()
}

type handler[T any] struct {
	conn *Connection
	fn   func(T)
	once bool
}

// Signal is a synchronous change-notification stream.
// Handlers run on the goroutine that calls Fire, in connection order.
// A panicking handler is recovered and logged; the remaining handlers still run.
type Signal[T any] struct {
	name     string
	mu       sync.Mutex
	handlers []*handler[T]
}

// NewSignal creates a signal; name only shows up in log output.
func NewSignal[T any](name string) *Signal[T] {
	return &Signal[T]{name: name}
}

// Connect attaches fn for every future Fire until disconnected.
func (s *Signal[T]) Connect(fn func(T)) *Connection {
	return s.connect(fn, false)
}

// Once attaches fn for the next Fire only. The connection is already
// disconnected by the time fn runs, so fn may safely call Once again.
func (s *Signal[T]) Once(fn func(T)) *Connection {
	return s.connect(fn, true)
}

func (s *Signal[T]) connect(fn func(T), once bool) *Connection {
	h := &handler[T]{conn: &Connection{}, fn: fn, once: once}
	h.conn.live.Store(true)
	h.conn.release = func() { s.remove(h) }

	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
	return h.conn
}

func (s *Signal[T]) remove(h *handler[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.handlers, h); i >= 0 {
		s.handlers = slices.Delete(s.handlers, i, i+1)
	}
}

// Fire delivers v to the handlers connected at the time of the call.
// Handlers connected during delivery first see the next Fire.
func (s *Signal[T]) Fire(v T) {
	s.mu.Lock()
	snapshot := slices.Clone(s.handlers)
	s.mu.Unlock()

	for _, h := range snapshot {
		if !h.conn.Connected() {
			continue
		}
		if h.once {
			h.conn.Disconnect()
		}
		s.call(h.fn, v)
	}
}

func (s *Signal[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatScene, "signal handler panicked",
				"signal", s.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(v)
}

// Len returns the number of attached handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// DisconnectAll detaches every handler.
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for _, h := range handlers {
		h.conn.live.Store(false)
	}
}
