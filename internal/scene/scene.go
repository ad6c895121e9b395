// Package scene is an in-memory scene graph host: a tree of instances with
// tags, typed attributes, change signals and a deferred-task queue.
//
// Everything runs on a single logical thread. Signals fire synchronously on
// the caller's goroutine; Defer queues work for the next Flush, which the
// owning event loop calls once per tick.
package scene

import (
	"runtime/debug"
	"slices"
	"sync"

	"github.com/zjrosen/quickscale/internal/log"
)

// Scene owns the root instance, the tag index and the deferred-task queue.
type Scene struct {
	root *Instance

	tagged     map[string][]*Instance
	tagAdded   map[string]*Signal[*Instance]
	tagRemoved map[string]*Signal[*Instance]

	qmu   sync.Mutex
	queue []func()
}

// New creates an empty scene with a Folder root named "Game".
func New() *Scene {
	s := &Scene{
		tagged:     make(map[string][]*Instance),
		tagAdded:   make(map[string]*Signal[*Instance]),
		tagRemoved: make(map[string]*Signal[*Instance]),
	}
	s.root = newInstance(s, ClassFolder, "Game")
	return s
}

// Root returns the top of the tree.
func (s *Scene) Root() *Instance {
	return s.root
}

// NewInstance creates a detached instance.
func (s *Scene) NewInstance(class Class, name string) *Instance {
	return newInstance(s, class, name)
}

// Create makes an instance and parents it in one call.
func (s *Scene) Create(class Class, name string, parent *Instance) *Instance {
	inst := newInstance(s, class, name)
	if parent != nil {
		// A fresh instance cannot form a cycle and parent is caller-owned.
		_ = inst.SetParent(parent)
	}
	return inst
}

// --- Tags ---

// TagAdded returns the signal fired when tag is applied to an instance.
func (s *Scene) TagAdded(tag string) *Signal[*Instance] {
	sig, ok := s.tagAdded[tag]
	if !ok {
		sig = NewSignal[*Instance]("TagAdded:" + tag)
		s.tagAdded[tag] = sig
	}
	return sig
}

// TagRemoved returns the signal fired when tag is removed from an instance.
func (s *Scene) TagRemoved(tag string) *Signal[*Instance] {
	sig, ok := s.tagRemoved[tag]
	if !ok {
		sig = NewSignal[*Instance]("TagRemoved:" + tag)
		s.tagRemoved[tag] = sig
	}
	return sig
}

// AddTag applies tag to inst. Re-applying an existing tag is a no-op.
func (s *Scene) AddTag(inst *Instance, tag string) {
	if inst == nil || inst.destroyed || s.HasTag(inst, tag) {
		return
	}
	inst.tags = append(inst.tags, tag)
	s.tagged[tag] = append(s.tagged[tag], inst)
	log.Debug(log.CatScene, "tag added", "tag", tag, "instance", inst.FullName())
	s.TagAdded(tag).Fire(inst)
}

// RemoveTag removes tag from inst. Removing an absent tag is a no-op.
func (s *Scene) RemoveTag(inst *Instance, tag string) {
	if inst == nil || !s.HasTag(inst, tag) {
		return
	}
	inst.tags = slices.DeleteFunc(inst.tags, func(t string) bool { return t == tag })
	s.tagged[tag] = slices.DeleteFunc(s.tagged[tag], func(i *Instance) bool { return i == inst })
	if len(s.tagged[tag]) == 0 {
		delete(s.tagged, tag)
	}
	log.Debug(log.CatScene, "tag removed", "tag", tag, "instance", inst.FullName())
	s.TagRemoved(tag).Fire(inst)
}

// HasTag reports whether inst carries tag.
func (s *Scene) HasTag(inst *Instance, tag string) bool {
	return inst != nil && slices.Contains(inst.tags, tag)
}

// Tagged returns the instances carrying tag, in tagging order.
func (s *Scene) Tagged(tag string) []*Instance {
	return slices.Clone(s.tagged[tag])
}

func (s *Scene) removeAllTags(inst *Instance) {
	for _, tag := range slices.Clone(inst.tags) {
		s.RemoveTag(inst, tag)
	}
}

// --- Scheduling ---

// Defer queues fn to run on the next Flush. Safe to call from any goroutine.
func (s *Scene) Defer(fn func()) {
	if fn == nil {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()
}

// Pending returns the number of queued tasks.
func (s *Scene) Pending() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue)
}

// Flush runs queued tasks in FIFO order until the queue is empty, including
// tasks queued by the tasks themselves. A panicking task is logged and skipped.
// Returns the number of tasks run.
func (s *Scene) Flush() int {
	ran := 0
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			if ran > 0 {
				log.Debug(log.CatScene, "flushed deferred tasks", "tasks", ran)
			}
			return ran
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		runTask(fn)
		ran++
	}
}

func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatScene, "deferred task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
