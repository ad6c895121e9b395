// Package watcher provides file system watching with debouncing for the config file.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/quickscale/internal/config"
	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/pubsub"
)

// Reload describes a config file change that survived debouncing.
type Reload struct {
	Path    string
	Changes []string // changed lines, see config.DiffLines
}

// Watcher monitors the config file and publishes a Reload when its content changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	last      string
	broker    *pubsub.Broker[Reload]
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a new config file watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      cfg.Path,
		debounce:  cfg.DebounceDur,
		broker:    pubsub.NewBroker[Reload](),
		done:      make(chan struct{}),
	}, nil
}

// Broker returns the broker Reload events are published on.
func (w *Watcher) Broker() *pubsub.Broker[Reload] {
	return w.broker
}

// Start begins watching the directory containing the config file. The
// directory is watched rather than the file so atomic saves (write temp,
// rename) are seen.
func (w *Watcher) Start() error {
	if data, err := os.ReadFile(w.path); err == nil {
		w.last = string(data)
	}

	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	log.Debug(log.CatWatcher, "watching config", "path", w.path)

	go w.loop()
	return nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	w.broker.Close()
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				w.reload()
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err, "path", w.path)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// reload reads the file and publishes its changes. Identical content, such
// as a save without edits, publishes nothing.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "reading changed config", err, "path", w.path)
		return
	}
	text := string(data)
	if text == w.last {
		log.Debug(log.CatWatcher, "config touched without changes", "path", w.path)
		return
	}

	changes := config.DiffLines(w.last, text)
	w.last = text
	for _, line := range changes {
		log.Debug(log.CatWatcher, "config changed", "line", line)
	}
	log.Info(log.CatWatcher, "config reloaded", "path", w.path, "changed_lines", len(changes))
	w.broker.Publish(pubsub.ReloadedEvent, Reload{Path: w.path, Changes: changes})
}

// isRelevantEvent checks if the event should trigger a reload.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.path)
}
