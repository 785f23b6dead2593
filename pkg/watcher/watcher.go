// Package watcher implements an fsnotify-backed watcher over
// a changing set of paths (config files, action source directories),
// reference-counted per path and started lazily so it can outlive a
// single solver invocation in interactive (watch) mode.
package watcher

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
)

var log = logger.New("watcher")

// EventKind distinguishes the two event shapes a watcher emits.
type EventKind string

const (
	// ConfigChanged fires for a single config file edit.
	ConfigChanged EventKind = "configChanged"
	// SourceChanged fires for an action source path changing. Each
	// fsnotify delivery produces its own event, so Paths holds a single
	// path; deliveries are not coalesced.
	SourceChanged EventKind = "sourceChanged"
)

// Event is one watcher notification.
type Event struct {
	Kind  EventKind
	Path  string   // set for ConfigChanged
	Paths []string // set for SourceChanged
}

// Watcher multiplexes fsnotify notifications for a reference-counted set
// of watched paths into typed Events.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	refs     map[string]int
	isConfig map[string]bool // watched paths the caller registered as config (vs. source)

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// New creates a Watcher without starting its event loop — call Start to
// begin watching ("the watcher is started lazily").
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindFilesystem, err, "creating file watcher")
	}
	return &Watcher{
		fsw:      fsw,
		refs:     map[string]int{},
		isConfig: map[string]bool{},
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the typed event stream.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start begins the background dispatch loop. Safe to call multiple
// times; only the first call has effect.
func (w *Watcher) Start() {
	w.once.Do(func() {
		go w.loop()
	})
}

// Close stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("watch error: %v", err)
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	w.mu.Lock()
	isConfig := w.isConfig[ev.Name]
	w.mu.Unlock()

	if isConfig {
		w.emit(Event{Kind: ConfigChanged, Path: ev.Name})
		return
	}
	w.emit(Event{Kind: SourceChanged, Paths: []string{ev.Name}})
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	default:
		log.Warnf("event channel full, dropping %s for %v", e.Kind, e.Path)
	}
}

// Subscribe registers interest in path (a config file or a source
// directory), incrementing its reference count and adding it to the
// underlying fsnotify watch list on first subscription. asConfig
// distinguishes the event kind path's changes are reported under.
func (w *Watcher) Subscribe(path string, asConfig bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.refs[path]++
	w.isConfig[path] = asConfig
	if w.refs[path] > 1 {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		w.refs[path]--
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "watching path").At(gardenerr.Location{File: path})
	}
	return nil
}

// Unsubscribe decrements path's reference count, removing it from the
// underlying watch only once no subscriber remains ("a path is
// unwatched only when no subscriber remains").
func (w *Watcher) Unsubscribe(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.refs[path] == 0 {
		return nil
	}
	w.refs[path]--
	if w.refs[path] > 0 {
		return nil
	}
	delete(w.refs, path)
	delete(w.isConfig, path)
	if err := w.fsw.Remove(path); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "unwatching path").At(gardenerr.Location{File: path})
	}
	return nil
}

// RefCount returns the current subscriber count for path (0 if
// unwatched), for tests and diagnostics.
func (w *Watcher) RefCount(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refs[path]
}
