package tree

import (
	"path/filepath"
	"strings"
)

// FilterKind selects which class of path a Filter pattern applies to.
type FilterKind int

const (
	// FilterFile matches a file's basename via glob.
	FilterFile FilterKind = iota
	// FilterDirectory matches a directory's basename via glob.
	FilterDirectory
	// FilterParentDirectory is a literal (non-glob) child name that, if
	// present inside a directory, disqualifies the whole directory.
	FilterParentDirectory
)

// AddFilter registers a basename glob (FilterFile/FilterDirectory) or a
// literal parent-directory child name (FilterParentDirectory).
func (t *Tree) AddFilter(kind FilterKind, pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case FilterFile:
		t.fileFilters = append(t.fileFilters, pattern)
	case FilterDirectory:
		t.dirFilters = append(t.dirFilters, pattern)
	case FilterParentDirectory:
		t.parentDirFilters = append(t.parentDirFilters, pattern)
	}
}

// ClearFilters removes every filter of the given kind.
func (t *Tree) ClearFilters(kind FilterKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case FilterFile:
		t.fileFilters = nil
	case FilterDirectory:
		t.dirFilters = nil
	case FilterParentDirectory:
		t.parentDirFilters = nil
	}
}

// FileMatchesFilter reports whether path's basename matches any filter of
// the given kind. Filter patterns are evaluated against basenames only.
func (t *Tree) FileMatchesFilter(kind FilterKind, path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.matchesFilterLocked(kind, path)
}

func (t *Tree) matchesFilterLocked(kind FilterKind, path string) bool {
	base := filepath.Base(path)
	var patterns []string
	switch kind {
	case FilterFile:
		patterns = t.fileFilters
	case FilterDirectory:
		patterns = t.dirFilters
	case FilterParentDirectory:
		patterns = t.parentDirFilters
	}
	for _, p := range patterns {
		if kind == FilterParentDirectory {
			if base == p {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(p, base); matched {
			return true
		}
	}
	return false
}

// Attrs carries the subset of stat information the indexability rule
// needs. A nil *Attrs is treated as a non-directory. Hiddenness is judged
// from the basename's leading dot; FileIsIndexable does not read IsHidden.
type Attrs struct {
	IsDir        bool
	IsHidden     bool
	IsMountPoint bool
}

func isHiddenBasename(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// FileIsIndexable reports whether path should be indexed: the path must
// be contained in a configured root (the root itself always passes),
// must not match a basename filter of the kind matching its type, must be
// a direct child (or the root) when the governing root is non-recursive,
// and must not be hidden when hidden-filtering is enabled.
func (t *Tree) FileIsIndexable(path string, attrs *Attrs) bool {
	path = normalize(path)
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.deepestAncestorLocked(path)
	if n == t.top || n.root == nil {
		return false
	}
	root := n.root
	isRoot := root.Path == path

	if !isRoot {
		isDir := attrs != nil && attrs.IsDir
		kind := FilterFile
		if isDir {
			kind = FilterDirectory
		}
		if t.matchesFilterLocked(kind, path) {
			return false
		}

		if !root.Flags.Has(Recurse) {
			rel, err := filepath.Rel(root.Path, path)
			if err != nil || strings.ContainsRune(rel, filepath.Separator) {
				return false
			}
		}

		if t.hiddenFilterEnabled && isHiddenBasename(path) {
			return false
		}
	}

	return true
}

// ParentIsIndexable reports whether a directory is indexable-by-content: a
// directory is indexable-by-content iff none of the registered
// PARENT_DIRECTORY child names are present directly inside it.
// childNames is the set of basenames found inside dirPath; the root itself
// is always indexable-by-content regardless of its children.
func (t *Tree) ParentIsIndexable(dirPath string, childNames []string) bool {
	dirPath = normalize(dirPath)
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n, ok := t.byPath[dirPath]; ok && n.root != nil {
		return true // configured roots are never disqualified by content filters
	}

	if len(t.parentDirFilters) == 0 {
		return true
	}
	for _, name := range childNames {
		for _, pattern := range t.parentDirFilters {
			if name == pattern {
				return false
			}
		}
	}
	return true
}
