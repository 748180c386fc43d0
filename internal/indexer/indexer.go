// Package indexer bridges the miner's dispatch hooks to the SparqlBuffer,
// rendering each dispatched filesystem event into logged Statements and
// tracking the running counters the run command's final report prints.
package indexer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/localsearch/miner/internal/notifier"
	"github.com/localsearch/miner/internal/store"
)

// Config holds the dependencies an Indexer is built from.
type Config struct {
	Buffer *store.Buffer
}

// Stats reports running indexing counters, surfaced in the run command's
// final report.
type Stats struct {
	FilesIndexed   int
	FoldersIndexed int
	Removed        int
	LastIndexTime  time.Time
}

// Indexer implements miner.FileSink, translating every event the scheduler
// dispatches into a logged SparqlBuffer statement. It never touches the
// filesystem or parses file content; content extraction is the external
// extractor process's job, not this core's.
type Indexer struct {
	buf *store.Buffer

	mu             sync.Mutex
	filesIndexed   int
	foldersIndexed int
	removed        int
	lastIndex      time.Time
}

// New creates an Indexer bound to cfg.Buffer.
func New(cfg Config) *Indexer {
	return &Indexer{buf: cfg.Buffer}
}

// Stats returns a snapshot of the running counters.
func (idx *Indexer) Stats() Stats {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return Stats{
		FilesIndexed:   idx.filesIndexed,
		FoldersIndexed: idx.foldersIndexed,
		Removed:        idx.removed,
		LastIndexTime:  idx.lastIndex,
	}
}

// resourceID derives a deterministic content identifier for path. A
// name-based UUID means re-discovering the same path after a restart
// yields the same resource id without the store having to remember one.
func resourceID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// ProcessFile implements miner.FileSink. info carries cached stat-like
// attributes from discovery when available; this indexer doesn't need them
// since resourceID and the Log* statements are derived from path alone, but
// the hook receives them so a future extractor-hand-off can skip a re-stat.
func (idx *Indexer) ProcessFile(path string, info *notifier.DiskStat, isDir, created bool) error {
	resource := resourceID(path)

	idx.mu.Lock()
	idx.lastIndex = time.Now()
	if isDir {
		idx.foldersIndexed++
	} else {
		idx.filesIndexed++
	}
	idx.mu.Unlock()

	if isDir {
		idx.buf.LogFolder(path, false, resource, resource)
		return nil
	}
	idx.buf.LogFile(path, store.DefaultGraph, resource, resource)
	return nil
}

// ProcessFileAttributes implements miner.FileSink.
func (idx *Indexer) ProcessFileAttributes(path string, isDir bool) error {
	resource := resourceID(path)
	idx.buf.LogAttributesUpdate(path, store.DefaultGraph, resource, resource)
	idx.mu.Lock()
	idx.lastIndex = time.Now()
	idx.mu.Unlock()
	return nil
}

// RemoveFile implements miner.FileSink.
func (idx *Indexer) RemoveFile(path string, isDir bool) error {
	idx.buf.LogDelete(path)
	idx.mu.Lock()
	idx.removed++
	idx.mu.Unlock()
	return nil
}

// RemoveChildren implements miner.FileSink.
func (idx *Indexer) RemoveChildren(path string) error {
	idx.buf.LogDeleteContent(path)
	return nil
}

// MoveFile implements miner.FileSink. recursive is true when both the
// source and destination roots are recursive, in which case the whole
// subtree moves as one folder-content move rather than file by file.
func (idx *Indexer) MoveFile(dst, src string, recursive bool) error {
	if recursive {
		idx.buf.LogMoveContent(src, dst)
		return nil
	}
	idx.buf.LogMove(src, dst, resourceID(dst))
	return nil
}

// FinishDirectory implements miner.FileSink. Nothing needs to happen here;
// the buffer has already recorded each child as it was dispatched.
func (idx *Indexer) FinishDirectory(path string) error {
	return nil
}

// GetContentIdentifier implements miner.FileSink. The identifier is always
// derivable from path, so this never misses.
func (idx *Indexer) GetContentIdentifier(path string) (string, bool) {
	return resourceID(path), true
}
