package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// statIsDir best-effort stats path to report whether it is a directory.
// known is false if the path no longer exists or can't be stat'd — the
// caller falls back to treating is_dir as unknown in that case, since the
// path may have vanished by the time the event is handled.
func statIsDir(path string) (isDir, known bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, false
	}
	return info.IsDir(), true
}

// DefaultLimit is used when the platform watch-count limit can't be
// determined. It mirrors a conservative inotify max_user_watches floor.
const DefaultLimit = 8192

// renamePairWindow bounds how long a bare Rename is held waiting for a
// matching Create on the same directory before it is emitted as a plain
// delete. fsnotify doesn't expose inotify's rename cookie, so src/dst
// pairing is done heuristically the way mutagen's platform watchers do:
// hold the rename briefly and see what shows up next.
const renamePairWindow = 75 * time.Millisecond

// FSMonitor is a Monitor backed by fsnotify. It tracks the set of watched
// directories itself, since fsnotify has no notion of recursive or
// hierarchical subscriptions.
type FSMonitor struct {
	fsw *fsnotify.Watcher

	mu       sync.Mutex
	watched  map[string]struct{}
	enabled  bool
	limit    int
	closed   bool
	pending  map[string]*pendingRename // keyed by source path

	out chan Event
}

type pendingRename struct {
	path  string
	timer *time.Timer
}

// New creates and starts an FSMonitor. Call Close to release resources.
func New() (*FSMonitor, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &FSMonitor{
		fsw:     fsw,
		watched: make(map[string]struct{}),
		enabled: true,
		limit:   DefaultLimit,
		pending: make(map[string]*pendingRename),
		out:     make(chan Event, 256),
	}
	go m.loop()
	return m, nil
}

func (m *FSMonitor) Add(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return nil
	}
	if len(m.watched) >= m.limit {
		return errLimitReached
	}
	if err := m.fsw.Add(dir); err != nil {
		return err
	}
	m.watched[dir] = struct{}{}
	return nil
}

func (m *FSMonitor) Remove(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watched, dir)
	return m.fsw.Remove(dir)
}

func (m *FSMonitor) RemoveRecursively(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeUnderLocked(dir, true)
}

func (m *FSMonitor) RemoveChildrenRecursively(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeUnderLocked(dir, false)
}

func (m *FSMonitor) removeUnderLocked(dir string, includeSelf bool) error {
	var firstErr error
	for path := range m.watched {
		if path == dir {
			if !includeSelf {
				continue
			}
		} else if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
			continue
		}
		if err := m.fsw.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.watched, path)
	}
	return firstErr
}

func (m *FSMonitor) Move(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var toRename []string
	for path := range m.watched {
		if path == src || strings.HasPrefix(path, src+string(filepath.Separator)) {
			toRename = append(toRename, path)
		}
	}
	for _, path := range toRename {
		rel, err := filepath.Rel(src, path)
		if err != nil {
			continue
		}
		newPath := dst
		if rel != "." {
			newPath = filepath.Join(dst, rel)
		}
		_ = m.fsw.Remove(path)
		delete(m.watched, path)
		if err := m.fsw.Add(newPath); err == nil {
			m.watched[newPath] = struct{}{}
		}
	}
	return nil
}

func (m *FSMonitor) GetLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// SetLimit overrides the platform watch-count limit; primarily for tests.
func (m *FSMonitor) SetLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
}

func (m *FSMonitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

func (m *FSMonitor) GetEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *FSMonitor) Events() <-chan Event { return m.out }

func (m *FSMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, p := range m.pending {
		p.timer.Stop()
	}
	m.mu.Unlock()
	return m.fsw.Close()
}

func (m *FSMonitor) loop() {
	defer close(m.out)
	for {
		select {
		case ev, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			m.handle(ev)
		case _, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
			// Errors are surfaced nowhere in this abstraction beyond the
			// watch itself failing; the notifier treats a dropped Monitor
			// the same as an over-limit Monitor.
		}
	}
}

func (m *FSMonitor) handle(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		m.mu.Lock()
		if pr, ok := m.pending[ev.Name]; ok {
			// Same-path create right after a rename notification almost
			// never happens; cross-path pairing is handled below by
			// scanning all pending renames for same-directory matches.
			_ = pr
		}
		var matchedSrc string
		dir := filepath.Dir(ev.Name)
		for src, pr := range m.pending {
			if filepath.Dir(src) == dir {
				matchedSrc = src
				pr.timer.Stop()
				delete(m.pending, src)
				break
			}
		}
		m.mu.Unlock()

		isDir, known := statIsDir(ev.Name)
		if matchedSrc != "" {
			m.emit(Event{Kind: ItemMoved, Path: matchedSrc, DestPath: ev.Name, IsDir: isDir, IsDirKnown: known, SrcWasMonitored: true})
			return
		}
		m.emit(Event{Kind: ItemCreated, Path: ev.Name, IsDir: isDir, IsDirKnown: known})

	case ev.Op.Has(fsnotify.Rename):
		path := ev.Name
		timer := time.AfterFunc(renamePairWindow, func() {
			m.mu.Lock()
			_, stillPending := m.pending[path]
			delete(m.pending, path)
			m.mu.Unlock()
			if stillPending {
				m.emit(Event{Kind: ItemDeleted, Path: path})
			}
		})
		m.mu.Lock()
		m.pending[path] = &pendingRename{path: path, timer: timer}
		m.mu.Unlock()

	case ev.Op.Has(fsnotify.Remove):
		m.mu.Lock()
		delete(m.watched, ev.Name)
		m.mu.Unlock()
		m.emit(Event{Kind: ItemDeleted, Path: ev.Name})

	case ev.Op.Has(fsnotify.Write):
		isDir, known := statIsDir(ev.Name)
		m.emit(Event{Kind: ItemUpdated, Path: ev.Name, IsDir: isDir, IsDirKnown: known})

	case ev.Op.Has(fsnotify.Chmod):
		isDir, known := statIsDir(ev.Name)
		m.emit(Event{Kind: ItemAttributeUpdated, Path: ev.Name, IsDir: isDir, IsDirKnown: known})
	}
}

func (m *FSMonitor) emit(ev Event) {
	select {
	case m.out <- ev:
	default:
		// Backpressure is handled upstream; dropping here would violate
		// ordering, so block until the consumer takes the event instead.
		m.out <- ev
	}
}

type limitError string

func (e limitError) Error() string { return string(e) }

const errLimitReached = limitError("monitor: watch limit reached")
