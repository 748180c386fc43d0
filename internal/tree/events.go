package tree

// EventKind tags the signals the tree emits to its single subscriber (the
// FileNotifier). The tree
// has exactly one consumer, so a direct callback is used rather than a
// broadcast channel.
type EventKind int

const (
	DirectoryAdded EventKind = iota
	DirectoryRemoved
	DirectoryUpdated
	ChildUpdated
)

// Event is delivered synchronously from within AddRoot, RemoveRoot,
// NotifyUpdate and CheckConfig; plain Add and Remove emit nothing.
type Event struct {
	Kind EventKind
	// Path is the root path for DirectoryAdded/Removed/Updated, or the
	// changed path for ChildUpdated.
	Path string
	// Root is the governing root path; only set for ChildUpdated.
	Root string
}

// Listener receives tree events. Set via SetListener; nil disables delivery.
type Listener func(Event)

// SetListener installs the single subscriber for tree events.
func (t *Tree) SetListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

func (t *Tree) emit(ev Event) {
	t.mu.RLock()
	l := t.listener
	t.mu.RUnlock()
	if l != nil {
		l(ev)
	}
}

// NotifyUpdate reports a content-affecting update on path. When recursive is
// false, it emits DirectoryUpdated if path is itself a root, otherwise
// ChildUpdated(root, path) if path lives inside a known root. When
// recursive is true, it additionally emits DirectoryUpdated for every root
// strictly contained in path.
func (t *Tree) NotifyUpdate(path string, recursive bool) {
	path = normalize(path)

	if t.FileIsRoot(path) {
		t.emit(Event{Kind: DirectoryUpdated, Path: path})
	} else if root, ok := t.GetRoot(path); ok {
		t.emit(Event{Kind: ChildUpdated, Path: path, Root: root.Path})
	}

	if !recursive {
		return
	}

	t.mu.RLock()
	nested := t.rootsUnderLocked(path)
	t.mu.RUnlock()
	for _, r := range nested {
		t.emit(Event{Kind: DirectoryUpdated, Path: r.Path})
	}
}

// AddRoot is Add plus DirectoryAdded emission, for callers that want the
// notifier to queue a reconcile. ControllerGlue calls Add directly.
func (t *Tree) AddRoot(path string, flags Flag) *Root {
	path = normalize(path)
	r := t.Add(path, flags)
	t.emit(Event{Kind: DirectoryAdded, Path: path})
	return r
}

// RemoveRoot is Remove plus DirectoryRemoved emission.
func (t *Tree) RemoveRoot(path string) {
	path = normalize(path)
	t.Remove(path)
	t.emit(Event{Kind: DirectoryRemoved, Path: path})
}

// Snapshot is the persisted, order-independent representation of the
// tree's configuration used by CheckConfig.
type Snapshot struct {
	Filters          []FilterEntry
	SingleDirs       []string
	RecursiveDirs    []string
}

// FilterEntry is one (kind, pattern) pair within a Snapshot.
type FilterEntry struct {
	Kind    FilterKind
	Pattern string
}

// TakeSnapshot captures the tree's current live configuration.
func (t *Tree) TakeSnapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{}
	for _, p := range t.fileFilters {
		snap.Filters = append(snap.Filters, FilterEntry{FilterFile, p})
	}
	for _, p := range t.dirFilters {
		snap.Filters = append(snap.Filters, FilterEntry{FilterDirectory, p})
	}
	for _, p := range t.parentDirFilters {
		snap.Filters = append(snap.Filters, FilterEntry{FilterParentDirectory, p})
	}
	for _, n := range t.byPath {
		if n.root == nil {
			continue
		}
		if n.root.Flags.Has(Recurse) {
			snap.RecursiveDirs = append(snap.RecursiveDirs, n.root.Path)
		} else {
			snap.SingleDirs = append(snap.SingleDirs, n.root.Path)
		}
	}
	return snap
}

// CheckConfig compares a persisted snapshot against the tree's live state
// using order-independent set equality. If they differ, every configured
// root emits DirectoryUpdated. Returns true if the
// snapshot matched (no signal emitted).
func (t *Tree) CheckConfig(snapshot Snapshot) bool {
	live := t.TakeSnapshot()
	if snapshotsEqual(live, snapshot) {
		return true
	}
	for _, r := range t.ListRoots() {
		t.emit(Event{Kind: DirectoryUpdated, Path: r.Path})
	}
	return false
}

func snapshotsEqual(a, b Snapshot) bool {
	return sameSet(a.SingleDirs, b.SingleDirs) &&
		sameSet(a.RecursiveDirs, b.RecursiveDirs) &&
		sameFilterSet(a.Filters, b.Filters)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func sameFilterSet(a, b []FilterEntry) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[FilterEntry]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
