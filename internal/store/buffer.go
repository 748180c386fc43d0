package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultTaskLimit is the soft pending-task limit.
const DefaultTaskLimit = 800

// Task is a single file-scoped unit of work buffered for the next flush.
type Task struct {
	Path  string
	Error string // set only once a flush has failed; cleared on next success
}

// ErrFlushInProgress is returned by Flush when another flush is already in
// flight; the caller must retry after it completes.
var ErrFlushInProgress = errors.New("store: flush already in progress")

// Corrupt and NoSpace are sentinel errors Apply may wrap and return; the
// Buffer routes them to signals instead of per-task errors.
var (
	Corrupt = errors.New("store: corrupt")
	NoSpace = errors.New("store: no space")
)

// Signal is emitted once per batch occurrence of Corrupt or NoSpace.
type Signal int

const (
	SignalCorrupt Signal = iota
	SignalNoSpace
)

// Buffer accumulates logged mutations into one in-flight batch and flushes
// it against a Store when Flush is called, exclusively owning that batch. All log_* operations are synchronous and idempotent.
type Buffer struct {
	store Store
	limit int

	mu    sync.Mutex
	stmts []Statement
	tasks []*Task
	byURI map[string]*Task

	flightGroup singleflight.Group
	flushing    bool
	onSignal    func(Signal)
}

// New creates a Buffer with the default task limit. onSignal, if non-nil, is
// called when a flush surfaces Corrupt or NoSpace.
func New(s Store, onSignal func(Signal)) *Buffer {
	return &Buffer{
		store:    s,
		limit:    DefaultTaskLimit,
		byURI:    make(map[string]*Task),
		onSignal: onSignal,
	}
}

// SetLimit overrides the soft task limit; primarily for tests.
func (b *Buffer) SetLimit(n int) { b.limit = n }

// Limit returns the current soft task limit.
func (b *Buffer) Limit() int { return b.limit }

// TaskCount returns the number of pending (unflushed) tasks.
func (b *Buffer) TaskCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

// LimitReached reports whether the pool is at or beyond its soft limit.
func (b *Buffer) LimitReached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks) >= b.limit
}

func (b *Buffer) enqueue(path string, stmt Statement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts = append(b.stmts, stmt)
	if t, ok := b.byURI[path]; ok {
		t.Error = "" // idempotent: re-logging a path clears its stale error report
		return
	}
	t := &Task{Path: path}
	b.byURI[path] = t
	b.tasks = append(b.tasks, t)
}

func (b *Buffer) LogDelete(path string) {
	b.enqueue(path, Statement{Kind: StmtDeleteFile, Path: path})
}

func (b *Buffer) LogDeleteContent(dir string) {
	b.enqueue(dir, Statement{Kind: StmtDeleteFolderContents, Path: dir})
}

func (b *Buffer) LogMove(src, dst, dstDataSource string) {
	b.enqueue(src, Statement{Kind: StmtMoveFile, Path: src, DestPath: dst, DataSource: dstDataSource})
}

func (b *Buffer) LogMoveContent(srcDir, dstDir string) {
	b.enqueue(srcDir, Statement{Kind: StmtMoveFolderContents, Path: srcDir, DestPath: dstDir})
}

func (b *Buffer) LogClearContent(path string) {
	b.enqueue(path, Statement{Kind: StmtClearContent, Path: path})
}

func (b *Buffer) LogFile(path, contentGraph, fileResource, graphResource string) {
	b.enqueue(path, Statement{
		Kind: StmtFile, Path: path,
		ContentGraph: contentGraph, FileResource: fileResource, GraphResource: graphResource,
	})
}

func (b *Buffer) LogFolder(path string, isRoot bool, fileResource, folderResource string) {
	b.enqueue(path, Statement{
		Kind: StmtFolder, Path: path, IsRoot: isRoot,
		FileResource: fileResource, GraphResource: folderResource,
	})
}

func (b *Buffer) LogAttributesUpdate(path, contentGraph, fileResource, graphResource string) {
	b.enqueue(path, Statement{
		Kind: StmtAttributesUpdate, Path: path,
		ContentGraph: contentGraph, FileResource: fileResource, GraphResource: graphResource,
	})
}

// Flush commits the current batch against the store. At most one flush is
// in flight at a time; a concurrent caller observes
// ErrFlushInProgress immediately rather than waiting on the in-flight one,
// and is expected to retry once it completes. On success every committed
// task is cleared from the pending set and returned with no Error set.
//
// golang.org/x/sync/singleflight.Group collapses concurrent identical calls
// by sharing one result among all callers, which is the wrong shape here —
// the contract wants followers rejected, not handed the leader's result —
// so the leader/follower decision is made with a plain flag, and
// flightGroup only wraps the single admitted caller's work; the flag alone
// already keeps a second caller from reaching it.
func (b *Buffer) Flush(ctx context.Context, reason string) ([]*Task, error) {
	b.mu.Lock()
	if b.flushing {
		b.mu.Unlock()
		return nil, ErrFlushInProgress
	}
	b.flushing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
	}()

	v, err, _ := b.flightGroup.Do("flush", func() (interface{}, error) {
		return b.doFlush(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Task), nil
}

func (b *Buffer) doFlush(ctx context.Context) ([]*Task, error) {
	b.mu.Lock()
	stmts := b.stmts
	tasks := b.tasks
	b.stmts = nil
	b.tasks = nil
	b.byURI = make(map[string]*Task)
	b.mu.Unlock()

	if len(stmts) == 0 {
		return nil, nil
	}

	err := b.store.Apply(ctx, stmts)
	if err == nil {
		for _, t := range tasks {
			t.Error = "" // a retried task's earlier failure is now resolved
		}
		return tasks, nil
	}

	switch {
	case errors.Is(err, Corrupt):
		if b.onSignal != nil {
			b.onSignal(SignalCorrupt)
		}
	case errors.Is(err, NoSpace):
		if b.onSignal != nil {
			b.onSignal(SignalNoSpace)
		}
	default:
		msg := fmt.Sprintf("flush failed: %v", err)
		for _, t := range tasks {
			t.Error = msg
		}
		// Failed tasks go back into the pending pool so a future flush can
		// retry them; only Corrupt and NoSpace short-circuit the pipeline.
		b.mu.Lock()
		b.stmts = append(stmts, b.stmts...)
		b.tasks = append(tasks, b.tasks...)
		for _, t := range tasks {
			b.byURI[t.Path] = t
		}
		b.mu.Unlock()
	}
	return nil, err
}
