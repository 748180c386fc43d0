package miner

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/localsearch/miner/internal/notifier"
	"github.com/localsearch/miner/internal/store"
)

// Scheduler tunables.
const (
	MaxSimultaneousItems = 64
	BigQueueThreshold    = 1000
	DefaultURNLRUSize    = 100
)

// Config wires a MinerFS's collaborators.
type Config struct {
	Buffer *store.Buffer
	Sink   FileSink

	// Throttle spaces dispatch ticks by Throttle*1s; zero
	// means idle-priority (no artificial spacing).
	Throttle float64

	// OnHighWater is called whenever the high-water boolean changes, so
	// the FileNotifier can suspend/resume its reconcile loop.
	OnHighWater func(bool)

	// OnStatus reports "Processing…"/"Idle" transitions.
	OnStatus func(status string)

	Logger func(format string, args ...any)
}

// MinerFS owns the priority queue and items-by-file index exclusively.
type MinerFS struct {
	buf  *store.Buffer
	sink FileSink
	urn  *lru.Cache

	throttle time.Duration

	onHighWater func(bool)
	onStatus    func(string)
	log         func(format string, args ...any)

	mu              sync.Mutex
	queue           *Queue
	highWater       bool
	stopped         bool
	reconcileActive bool
}

// New creates a MinerFS from cfg.
func New(cfg Config) *MinerFS {
	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	m := &MinerFS{
		buf:         cfg.Buffer,
		sink:        cfg.Sink,
		urn:         lru.New(DefaultURNLRUSize),
		throttle:    time.Duration(cfg.Throttle * float64(time.Second)),
		onHighWater: cfg.OnHighWater,
		onStatus:    cfg.OnStatus,
		log:         logFn,
		queue:       NewQueue(),
	}
	return m
}

// SetReconcileActive lets the caller report whether a reconcile is
// currently in progress, which feeds the idle state machine.
func (m *MinerFS) SetReconcileActive(active bool) {
	m.mu.Lock()
	m.reconcileActive = active
	m.mu.Unlock()
}

// QueueLength returns the current queue length.
func (m *MinerFS) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// IsHighWater reports the current backpressure state, suitable for wiring
// into notifier.Config.HighWater so reconciliation suspends while the
// queue is over the high-water mark.
func (m *MinerFS) IsHighWater() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highWater
}

// Consume is the FileNotifier's single subscriber callback.
func (m *MinerFS) Consume(ev notifier.Event) {
	switch ev.Kind {
	case notifier.FileCreated:
		m.enqueue(&QueueEvent{Kind: Created, Path: ev.Path, IsDir: ev.IsDir, Info: ev.Info})
	case notifier.FileUpdated:
		m.enqueue(&QueueEvent{Kind: Updated, Path: ev.Path, IsDir: ev.IsDir, AttributesOnly: ev.AttributesOnly, Info: ev.Info})
	case notifier.FileDeleted:
		m.invalidateURN(ev.Path)
		m.enqueue(&QueueEvent{Kind: Deleted, Path: ev.Path, IsDir: ev.IsDir})
	case notifier.FileMoved:
		m.invalidateURN(ev.Path)
		m.invalidateURN(ev.DestPath)
		m.enqueue(&QueueEvent{
			Kind: Moved, Path: ev.Path, DestPath: ev.DestPath, IsDir: ev.IsDir,
			Recursive:      ev.Recursive,
			OrphanChildren: ev.OrphanChildren,
		})
	case notifier.DirectoryFinished:
		m.enqueue(&QueueEvent{Kind: FinishDirectory, Path: ev.Path})
	case notifier.Finished:
		m.SetReconcileActive(false)
	}
}

func (m *MinerFS) enqueue(ev *QueueEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.queue.Lookup(ev.Path); ok {
		m.queue.remove(existing)
		merged := coalesce(existing, ev)
		if merged != nil {
			m.queue.push(merged)
		}
	} else {
		m.queue.push(ev)
	}

	if ev.Kind == Deleted && ev.IsDir && m.queue.Len() < BigQueueThreshold {
		m.queue.RemoveDescendants(ev.Path)
	}

	m.updateHighWaterLocked()
}

// invalidateURN drops path from the URN LRU.
func (m *MinerFS) invalidateURN(path string) {
	m.urn.Remove(path)
}

func (m *MinerFS) updateHighWaterLocked() {
	limit := store.DefaultTaskLimit
	if m.buf != nil {
		limit = m.buf.Limit()
	}
	high := m.queue.Len() > 2*limit
	if high != m.highWater {
		m.highWater = high
		if m.onHighWater != nil {
			m.onHighWater(high)
		}
	}
}

// isIdle reports whether the pipeline is at rest: no reconcile active, queue
// empty, no flush in flight, buffer task count zero.
func (m *MinerFS) isIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconcileActive || m.queue.Len() > 0 {
		return false
	}
	return m.buf == nil || m.buf.TaskCount() == 0
}

// statusInterval is how often Run re-announces "Processing…" while the
// queue is non-empty, for callers that poll status rather than react to
// every individual transition.
const statusInterval = 250 * time.Millisecond

// Run drains the queue in MaxSimultaneousItems-sized ticks, spacing ticks by
// the configured throttle, and returns once the pipeline is idle or ctx is
// done, whichever comes first.
func (m *MinerFS) Run(ctx context.Context) error {
	if m.onStatus != nil {
		m.onStatus("Processing…")
	}
	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-statusTicker.C:
			if m.onStatus != nil && !m.isIdle() {
				m.onStatus("Processing…")
			}
		default:
		}

		if m.isIdle() {
			if m.onStatus != nil {
				m.onStatus("Idle")
			}
			return nil
		}

		if err := m.dispatchTick(ctx); err != nil {
			return err
		}

		if m.throttle > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.throttle):
			}
		}
	}
}

func (m *MinerFS) dispatchTick(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	batch := m.queue.Pop(MaxSimultaneousItems)
	m.updateHighWaterLocked()
	m.mu.Unlock()

	for _, ev := range batch {
		if err := m.dispatchOne(ev); err != nil {
			m.log("miner: dispatch %s %s: %v", ev.Kind, ev.Path, err)
		}
	}

	if m.buf != nil && m.buf.LimitReached() {
		tasks, err := m.buf.Flush(ctx, "task-limit")
		if err != nil {
			if err == store.ErrFlushInProgress {
				// Another flush is already in flight; stop processing new
				// events this tick and let the next Run iteration re-arm
				// once it completes.
				return nil
			}
			m.mu.Lock()
			m.stopped = true
			m.mu.Unlock()
			return err
		}
		m.log("miner: flushed %d tasks", len(tasks))
	}
	return nil
}

func (m *MinerFS) dispatchOne(ev *QueueEvent) error {
	if m.buf == nil || m.sink == nil {
		return nil
	}
	switch ev.Kind {
	case Created, Updated:
		if ev.AttributesOnly {
			return m.sink.ProcessFileAttributes(ev.Path, ev.IsDir)
		}
		return m.sink.ProcessFile(ev.Path, ev.Info, ev.IsDir, ev.Kind == Created)

	case Deleted:
		if err := m.sink.RemoveFile(ev.Path, ev.IsDir); err != nil {
			return err
		}
		if ev.IsDir {
			if err := m.sink.RemoveChildren(ev.Path); err != nil {
				return err
			}
		}
		return nil

	case Moved:
		if ev.OrphanChildren {
			if err := m.sink.RemoveChildren(ev.Path); err != nil {
				return err
			}
		}
		if err := m.sink.MoveFile(ev.DestPath, ev.Path, ev.Recursive); err != nil {
			return err
		}
		return nil

	case FinishDirectory:
		return m.sink.FinishDirectory(ev.Path)
	}
	return nil
}
