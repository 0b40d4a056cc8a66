// Package watch owns the daemon's filesystem monitoring: a lazily
// created fsnotify watcher, the set of registered root paths with their
// options, and the bridge that hands watcher-goroutine events to the
// daemon's dispatch loop through a channel.
//
// The documented stop policy is intentionally coarse: any stop request,
// whether it names paths or not, stops the entire watcher and clears all
// registrations. There is no selective unwatch.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventType classifies a filesystem change.
type EventType string

const (
	Created  EventType = "created"
	Modified EventType = "modified"
	Deleted  EventType = "deleted"
	Moved    EventType = "moved"
)

// Event is one observed filesystem change. DestPath is empty for moves
// where the destination is not reported by the platform watcher.
type Event struct {
	Type        EventType
	SrcPath     string
	DestPath    string
	IsDirectory bool
	Time        time.Time
}

// Options are the per-root registration options.
type Options struct {
	Recursive bool
	Alias     string
}

// ErrNotWatching is returned by StopAll when no watcher is running.
var ErrNotWatching = errors.New("watch: filesystem monitoring is not active")

const eventBuffer = 256

// Manager owns zero or one background watcher and the registrations it
// serves. Events are delivered on the channel returned by Events; the
// watcher goroutine never touches any other daemon state.
type Manager struct {
	logger *zap.Logger
	events chan Event

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	roots   map[string]Options
}

// NewManager creates an idle Manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger: logger.Named("watch"),
		events: make(chan Event, eventBuffer),
		roots:  make(map[string]Options),
	}
}

// Events returns the channel on which observed changes are delivered.
// The channel is never closed; it simply goes quiet when monitoring
// stops.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Watching reports whether a watcher is currently running.
func (m *Manager) Watching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watcher != nil
}

// Paths returns the registered root paths, sorted.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.roots))
	for p := range m.roots {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Start registers paths for monitoring. A path that does not exist is a
// per-path error and does not fail the call; a path already registered
// is skipped. The underlying watcher is created lazily when the first
// new path registers. If the watcher cannot be created, all
// registrations added by this call are rolled back and the manager
// returns to idle.
//
// Start returns the paths newly registered by this call and a map of
// per-path error messages.
func (m *Manager) Start(paths []string, recursive bool, alias string) ([]string, map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []string
	pathErrs := make(map[string]string)

	for _, raw := range paths {
		path := filepath.Clean(raw)

		if _, ok := m.roots[path]; ok {
			m.logger.Debug("path already monitored", zap.String("path", path))
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			pathErrs[raw] = fmt.Sprintf("path does not exist: %s", raw)
			continue
		}

		if m.watcher == nil {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				m.rollbackLocked(added)
				return nil, pathErrs, fmt.Errorf("failed to start filesystem watcher: %w", err)
			}
			m.watcher = w
			go m.pump(w)
		}

		if err := m.addLocked(path, info.IsDir() && recursive); err != nil {
			pathErrs[raw] = err.Error()
			continue
		}

		m.roots[path] = Options{Recursive: recursive, Alias: alias}
		added = append(added, path)
		m.logger.Info("monitoring path",
			zap.String("path", path),
			zap.Bool("recursive", recursive),
			zap.String("alias", alias))
	}

	// Nothing registered at all: tear the watcher back down.
	if len(m.roots) == 0 && m.watcher != nil {
		m.closeWatcherLocked()
	}

	return added, pathErrs, nil
}

// StopAll stops the watcher and clears every registration, returning the
// paths that were being watched. ErrNotWatching is returned when idle.
func (m *Manager) StopAll() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return nil, ErrNotWatching
	}

	stopped := make([]string, 0, len(m.roots))
	for p := range m.roots {
		stopped = append(stopped, p)
	}
	sort.Strings(stopped)

	m.closeWatcherLocked()
	m.roots = make(map[string]Options)

	m.logger.Info("filesystem monitoring stopped", zap.Strings("paths", stopped))
	return stopped, nil
}

// Close stops monitoring if active. Used on daemon shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		m.closeWatcherLocked()
		m.roots = make(map[string]Options)
	}
}

// addLocked registers path with the watcher, walking subdirectories when
// recursive is set. Partial adds for this path are rolled back on error.
func (m *Manager) addLocked(path string, recursive bool) error {
	if !recursive {
		if err := m.watcher.Add(path); err != nil {
			return fmt.Errorf("cannot watch %s: %v", path, err)
		}
		return nil
	}

	var watched []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree entries are skipped, not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := m.watcher.Add(p); err != nil {
			return fmt.Errorf("cannot watch %s: %v", p, err)
		}
		watched = append(watched, p)
		return nil
	})
	if err != nil {
		for _, p := range watched {
			m.watcher.Remove(p)
		}
		return err
	}
	return nil
}

// rollbackLocked removes registrations added by a failed Start call.
func (m *Manager) rollbackLocked(added []string) {
	for _, p := range added {
		delete(m.roots, p)
		if m.watcher != nil {
			m.watcher.Remove(p)
		}
	}
	if len(m.roots) == 0 && m.watcher != nil {
		m.closeWatcherLocked()
	}
}

func (m *Manager) closeWatcherLocked() {
	if err := m.watcher.Close(); err != nil {
		m.logger.Warn("watcher close failed", zap.Error(err))
	}
	m.watcher = nil
}

// pump translates fsnotify events and forwards them on the events
// channel. It runs on the watcher's goroutine and exits when the watcher
// closes.
func (m *Manager) pump(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			event, ok := m.translate(ev)
			if !ok {
				continue
			}
			select {
			case m.events <- event:
			default:
				m.logger.Warn("event buffer full, dropping event",
					zap.String("path", ev.Name))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// translate maps an fsnotify op onto the wire event vocabulary. Newly
// created directories under a recursive root are added to the watch.
func (m *Manager) translate(ev fsnotify.Event) (Event, bool) {
	out := Event{SrcPath: ev.Name, Time: time.Now()}

	switch {
	case ev.Op.Has(fsnotify.Create):
		out.Type = Created
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			out.IsDirectory = true
			m.maybeWatchNewDir(ev.Name)
		}
	case ev.Op.Has(fsnotify.Remove):
		out.Type = Deleted
	case ev.Op.Has(fsnotify.Rename):
		// The platform reports the old path only; the destination is
		// unknown at this layer.
		out.Type = Moved
	case ev.Op.Has(fsnotify.Write):
		out.Type = Modified
		if info, err := os.Stat(ev.Name); err == nil {
			out.IsDirectory = info.IsDir()
		}
	default:
		return Event{}, false
	}
	return out, true
}

func (m *Manager) maybeWatchNewDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return
	}
	for root, opts := range m.roots {
		if opts.Recursive && strings.HasPrefix(dir, root+string(filepath.Separator)) {
			if err := m.addLocked(dir, true); err != nil {
				m.logger.Warn("cannot watch new directory", zap.String("path", dir), zap.Error(err))
			}
			return
		}
	}
}
