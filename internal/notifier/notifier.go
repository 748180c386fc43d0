// Package notifier implements the FileNotifier: per-root
// query-vs-crawl reconciliation plus live monitor-event dispatch, the
// hardest single component in the pipeline.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localsearch/miner/internal/extractor"
	"github.com/localsearch/miner/internal/monitor"
	"github.com/localsearch/miner/internal/store"
	"github.com/localsearch/miner/internal/tree"
)

// Batch sizes for the query cursor and directory enumerator; crawling and cursor draining yield at these boundaries so
// cancellation and high-water backpressure can take effect promptly.
const (
	cursorBatchSize = 200
	enumBatchSize   = 200
)

// Config wires a FileNotifier's collaborators.
type Config struct {
	Tree    *tree.Tree
	Monitor monitor.Monitor
	Store   store.Store
	Hasher  extractor.Hasher
	FS      FileSystem
	Sink    Sink

	// HighWater reports the downstream backpressure signal; nil
	// means backpressure is never asserted.
	HighWater func() bool

	Logger func(format string, args ...any)
}

// FileNotifier owns the queue of pending roots and the current reconcile
// pass, dispatching live monitor events in between.
type FileNotifier struct {
	tree      *tree.Tree
	mon       monitor.Monitor
	st        store.Store
	hasher    extractor.Hasher
	fsys      FileSystem
	sink      Sink
	highWater func() bool
	log       func(format string, args ...any)

	mu      sync.Mutex
	pending []*tree.Root // front-first; priority roots inserted at front
	current *IndexRoot
}

// New creates a FileNotifier from cfg. A nil Hasher disables
// ExtractorUpdate detection; a nil FS defaults to OSFileSystem.
func New(cfg Config) *FileNotifier {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = extractor.NopHasher{}
	}
	fsys := cfg.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	return &FileNotifier{
		tree:      cfg.Tree,
		mon:       cfg.Monitor,
		st:        cfg.Store,
		hasher:    hasher,
		fsys:      fsys,
		sink:      cfg.Sink,
		highWater: cfg.HighWater,
		log:       logFn,
	}
}

// QueueRoot schedules root for reconciliation. Priority roots (flag
// tree.Priority, or the re-queue that follows a Stop) go to the front.
func (n *FileNotifier) QueueRoot(root *tree.Root) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if root.Flags.Has(tree.Priority) {
		n.pending = append([]*tree.Root{root}, n.pending...)
	} else {
		n.pending = append(n.pending, root)
	}
}

func (n *FileNotifier) popRoot() *tree.Root {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == 0 {
		return nil
	}
	r := n.pending[0]
	n.pending = n.pending[1:]
	return r
}

// Stop cancels the in-flight reconcile, if any, and re-queues its root at
// the front with PRIORITY so resume restarts from scratch.
func (n *FileNotifier) Stop() {
	n.mu.Lock()
	cur := n.current
	n.mu.Unlock()
	if cur == nil {
		return
	}
	cur.Cancel()
	requeued := *cur.Root
	requeued.Flags |= tree.Priority
	n.QueueRoot(&requeued)
}

// Run drains the pending-root queue (reconciling each in turn, emitting
// Finished whenever the queue empties, then waiting for roots queued later)
// while concurrently translating live Monitor events, until ctx is cancelled
// or reconciliation fails. The two loops share a single cancellation scope
// via errgroup, so an error or cancellation in either one tears down the
// other.
func (n *FileNotifier) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			root := n.popRoot()
			if root == nil {
				n.emit(Event{Kind: Finished})
				// Roots queued after the drain (a new directory seen by
				// live dispatch, or a Stop re-queue) are picked up here.
				for root == nil {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(100 * time.Millisecond):
					}
					root = n.popRoot()
				}
			}
			ir := newIndexRoot(ctx, root)
			n.mu.Lock()
			n.current = ir
			n.mu.Unlock()

			err := n.reconcileRoot(ctx, ir)

			root.Stats.FilesFound += ir.Stats.FilesFound
			root.Stats.FilesIgnored += ir.Stats.FilesIgnored
			root.Stats.FilesUpdated += ir.Stats.FilesUpdated
			root.Stats.FilesReindexed += ir.Stats.FilesReindexed

			n.mu.Lock()
			n.current = nil
			n.mu.Unlock()

			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		events := n.mon.Events()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				n.dispatchLive(ctx, ev)
			}
		}
	})

	return g.Wait()
}

func (n *FileNotifier) emit(ev Event) {
	if n.sink != nil {
		n.sink(ev)
	}
}

func (n *FileNotifier) waitForHighWater(ctx context.Context) error {
	if n.highWater == nil {
		return nil
	}
	for n.highWater() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	return nil
}

// reconcileRoot runs the full query-then-crawl reconcile for one root.
// directory-finished is delivered in post-order by construction:
// crawlDirectory only emits it after every recursive call for a child
// directory has returned, which gives the same finished-after-children
// guarantee as an explicit worklist-plus-refcounting drain would, expressed
// as ordinary recursion instead.
func (n *FileNotifier) reconcileRoot(ctx context.Context, ir *IndexRoot) error {
	root := ir.Root
	n.log("reconcile: starting root %s", root.Path)

	records, err := n.st.IndexRootContent(ctx, root.Path)
	if err != nil {
		return fmt.Errorf("reconcile %s: query store: %w", root.Path, err)
	}

	pendingDirs, err := n.queryPhase(ctx, ir, records)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		// The query had no knowledge of this root at all; unconditionally
		// seed it.
		pendingDirs = []string{root.Path}
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.URI] = struct{}{}
	}

	for len(pendingDirs) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := pendingDirs[0]
		pendingDirs = pendingDirs[1:]
		if ir.inheritedDelete(dir) {
			continue
		}
		if err := n.crawlDirectory(ctx, ir, dir, seen, dir == root.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				n.log("reconcile: %s vanished or became unreadable mid-crawl: %v", dir, err)
				continue
			}
			return err
		}
	}

	n.log("reconcile: finished root %s", root.Path)
	return nil
}

// queryPhase processes the store-query rows in cursor-sized batches,
// emitting per-file events and collecting directories to crawl.
func (n *FileNotifier) queryPhase(ctx context.Context, ir *IndexRoot, records []store.FileRecord) ([]string, error) {
	var pendingDirs []string
	currentHash := ""

	for i := 0; i < len(records); i += cursorBatchSize {
		end := i + cursorBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		for _, rec := range batch {
			fd := FileData{
				Path:        rec.URI,
				InStore:     true,
				StoreMtime:  rec.LastModified,
				IsDirInStore: rec.FolderURN != "",
				ExtractorHash: rec.ExtractorHash,
				Mimetype:    rec.Mimetype,
			}
			stat, statErr := n.fsys.Lstat(rec.URI)
			var info *DiskStat
			if statErr == nil {
				fd.InDisk = true
				fd.IsDirInDisk = stat.IsDir
				fd.DiskMtime = stat.Mtime
				info = &stat
			}
			if n.hasher != nil {
				currentHash = n.hasher.Hash(fd.Mimetype)
			}
			state := fd.State(currentHash)

			if fd.IsDirInStore && state == StateDelete {
				ir.DeletedDirs[rec.URI] = struct{}{}
			}

			switch state {
			case StateCreate:
				n.emit(Event{Kind: FileCreated, Path: rec.URI, IsDir: fd.IsDirInDisk, Info: info})
			case StateUpdate, StateExtractorUpdate:
				n.emit(Event{Kind: FileUpdated, Path: rec.URI, IsDir: fd.IsDirInDisk, Info: info})
				if state == StateExtractorUpdate {
					ir.Stats.FilesReindexed++
				} else {
					ir.Stats.FilesUpdated++
				}
			case StateDelete:
				n.emit(Event{Kind: FileDeleted, Path: rec.URI, IsDir: fd.IsDirInStore})
			}

			if fd.InDisk && fd.IsDirInDisk &&
				(root(ir).Flags.Has(tree.Recurse) || rec.URI == root(ir).Path) &&
				n.tree.ParentIsIndexable(rec.URI, n.childNamesBestEffort(rec.URI)) &&
				!stat.Mountpoint {
				pendingDirs = append(pendingDirs, rec.URI)
			}

			if state != StateNone && state != StateDelete && root(ir).Flags.Has(tree.Monitor) && n.mon != nil {
				_ = n.mon.Add(rec.URI)
			}
		}

		if err := n.waitForHighWater(ctx); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return pendingDirs, nil
}

func root(ir *IndexRoot) *tree.Root { return ir.Root }

func (n *FileNotifier) childNamesBestEffort(dir string) []string {
	names, err := n.fsys.ReadDir(dir)
	if err != nil {
		return nil
	}
	return names
}

// crawlDirectory enumerates dir's children in enumBatchSize batches,
// recursing into child directories before emitting directory-finished for
// dir itself (post-order).
func (n *FileNotifier) crawlDirectory(ctx context.Context, ir *IndexRoot, dir string, seen map[string]struct{}, isRoot bool) error {
	stat, err := n.fsys.Lstat(dir)
	if err != nil {
		return err
	}

	if isRoot {
		if _, already := seen[dir]; !already {
			n.emit(Event{Kind: FileCreated, Path: dir, IsDir: true, Info: &stat})
		}
	}
	if root(ir).Flags.Has(tree.Monitor) && n.mon != nil {
		_ = n.mon.Add(dir)
	}

	names, err := n.fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Strings(names)

	for i := 0; i < len(names); i += enumBatchSize {
		end := i + enumBatchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[i:end]

		for _, name := range batch {
			childPath := filepath.Join(dir, name)

			exists, err := n.st.Exists(ctx, childPath)
			if err != nil {
				return fmt.Errorf("crawl %s: ask-file-exists: %w", childPath, err)
			}
			if exists {
				continue // already handled in the query phase for this root
			}

			childStat, err := n.fsys.Lstat(childPath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return err
			}

			attrs := &tree.Attrs{
				IsDir:       childStat.IsDir,
				IsHidden:    strings.HasPrefix(name, "."),
				IsMountPoint: childStat.Mountpoint,
			}
			if !n.tree.FileIsIndexable(childPath, attrs) {
				ir.Stats.FilesIgnored++
				continue
			}
			if !childStat.IsDir && !n.tree.ParentIsIndexable(dir, names) {
				ir.Stats.FilesIgnored++
				continue
			}

			ir.Stats.FilesFound++
			n.emit(Event{Kind: FileCreated, Path: childPath, IsDir: childStat.IsDir, Info: &childStat})

			if childStat.IsDir && root(ir).Flags.Has(tree.Recurse) && !childStat.Mountpoint {
				if err := n.crawlDirectory(ctx, ir, childPath, seen, false); err != nil {
					if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
						n.log("crawl: %s vanished or became unreadable: %v", childPath, err)
						continue
					}
					return err
				}
			}
		}

		if err := n.waitForHighWater(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	n.emit(Event{Kind: DirectoryFinished, Path: dir, Root: root(ir).Path})
	return nil
}
