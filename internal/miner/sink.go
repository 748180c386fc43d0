package miner

import "github.com/localsearch/miner/internal/notifier"

// FileSink is the set of hooks the scheduler drives for each dispatched
// event. A concrete
// FileSink produces SparqlBuffer log entries; this package only defines the
// contract, mirroring the extractor contract's supervisory-interface-only
// scope.
type FileSink interface {
	// ProcessFile handles Created/Updated(path, info). created
	// distinguishes a first-time discovery from a content update. info
	// carries cached stat-like attributes from discovery and may be nil.
	ProcessFile(path string, info *notifier.DiskStat, isDir, created bool) error

	// ProcessFileAttributes handles an attributes-only Updated.
	ProcessFileAttributes(path string, isDir bool) error

	// RemoveFile handles Deleted(path, is_dir).
	RemoveFile(path string, isDir bool) error

	// RemoveChildren drops every indexed descendant of path without
	// removing path itself (used for cross-recursiveness moves).
	RemoveChildren(path string) error

	// MoveFile handles Moved(src, dst). recursive is true when both the
	// source and destination roots are recursive.
	MoveFile(dst, src string, recursive bool) error

	// FinishDirectory handles FinishDirectory(path).
	FinishDirectory(path string) error

	// GetContentIdentifier resolves path's content-identifier (URN), used
	// to populate the URN LRU on a cache miss.
	GetContentIdentifier(path string) (string, bool)
}
