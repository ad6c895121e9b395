// Package tagobserver binds setup logic to every scene instance carrying a tag.
//
// For each accepted instance a child maid is created and handed to the
// onMatch callback; when the tag is removed that maid is destroyed. Destroying
// the maid returned by Observe stops listening and destroys every child maid.
package tagobserver

import (
	"runtime/debug"
	"sync"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/maid"
	"github.com/zjrosen/quickscale/internal/scene"
)

// Host is the part of a scene graph the observer needs.
type Host interface {
	Tagged(tag string) []*scene.Instance
	HasTag(inst *scene.Instance, tag string) bool
	TagAdded(tag string) *scene.Signal[*scene.Instance]
	TagRemoved(tag string) *scene.Signal[*scene.Instance]
	Defer(fn func())
}

// MatchFunc sets up an accepted instance. Anything registered on m is
// cleaned up when the instance loses the tag or the observer is destroyed.
type MatchFunc func(inst *scene.Instance, m *maid.Maid)

// Predicate filters candidate instances; false means skip.
type Predicate func(inst *scene.Instance) bool

// Option configures Observe.
type Option func(*Observer)

// WithPredicate only matches instances for which p returns true.
func WithPredicate(p Predicate) Option {
	return func(o *Observer) {
		o.predicate = p
	}
}

// Observer tracks the instances currently matched for one tag.
type Observer struct {
	host      Host
	tag       string
	onMatch   MatchFunc
	predicate Predicate

	mu      sync.Mutex
	tracked map[*scene.Instance]*maid.Maid
	root    *maid.Maid
}

// Observe starts observing tag on host and returns the top-level maid.
func Observe(host Host, tag string, onMatch MatchFunc, opts ...Option) *maid.Maid {
	return Start(host, tag, onMatch, opts...).Maid()
}

// Start is Observe returning the Observer itself, for callers that want to
// inspect what is being tracked.
func Start(host Host, tag string, onMatch MatchFunc, opts ...Option) *Observer {
	o := &Observer{
		host:    host,
		tag:     tag,
		onMatch: onMatch,
		tracked: make(map[*scene.Instance]*maid.Maid),
		root:    maid.New(),
	}
	for _, opt := range opts {
		opt(o)
	}

	// Errors below are impossible: every task is a func or a *scene.Connection.
	_ = o.root.Add(host.TagAdded(tag).Connect(o.match))
	_ = o.root.Add(host.TagRemoved(tag).Connect(o.release))
	_ = o.root.Add(o.releaseAll)

	initial := host.Tagged(tag)
	log.Debug(log.CatTags, "observing tag", "tag", tag, "initial", len(initial))
	for _, inst := range initial {
		host.Defer(func() {
			if o.root.Destroyed() || !host.HasTag(inst, tag) {
				return
			}
			o.match(inst)
		})
	}
	return o
}

// Maid returns the top-level maid.
func (o *Observer) Maid() *maid.Maid {
	return o.root
}

// Len returns the number of instances currently matched.
func (o *Observer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tracked)
}

// Tracking reports whether inst is currently matched.
func (o *Observer) Tracking(inst *scene.Instance) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.tracked[inst]
	return ok
}

func (o *Observer) match(inst *scene.Instance) {
	if o.predicate != nil && !o.predicate(inst) {
		return
	}

	o.mu.Lock()
	if o.root.Destroyed() {
		o.mu.Unlock()
		return
	}
	if _, dup := o.tracked[inst]; dup {
		o.mu.Unlock()
		log.Debug(log.CatTags, "instance already tracked", "tag", o.tag, "instance", inst.FullName())
		return
	}
	child := maid.New()
	o.tracked[inst] = child
	o.mu.Unlock()

	if !o.setup(inst, child) {
		o.release(inst)
	}
}

// setup runs onMatch in isolation so one bad instance cannot break the rest.
func (o *Observer) setup(inst *scene.Instance, m *maid.Maid) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatTags, "match callback panicked",
				"tag", o.tag, "instance", inst.FullName(), "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	o.onMatch(inst, m)
	return true
}

func (o *Observer) release(inst *scene.Instance) {
	o.mu.Lock()
	m, ok := o.tracked[inst]
	delete(o.tracked, inst)
	o.mu.Unlock()

	if !ok {
		return
	}
	if err := m.Destroy(); err != nil {
		log.ErrorErr(log.CatTags, "cleanup failed for instance", err, "tag", o.tag, "instance", inst.FullName())
	}
}

func (o *Observer) releaseAll() error {
	o.mu.Lock()
	tracked := o.tracked
	o.tracked = make(map[*scene.Instance]*maid.Maid)
	o.mu.Unlock()

	m := maid.New()
	for _, child := range tracked {
		_ = m.Add(child)
	}
	return m.Destroy()
}
