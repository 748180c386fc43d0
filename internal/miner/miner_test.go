package miner

import (
	"context"
	"testing"
	"time"

	"github.com/localsearch/miner/internal/notifier"
	"github.com/localsearch/miner/internal/store"
)

type fakeStore struct{}

func (fakeStore) IndexRootContent(ctx context.Context, root string) ([]store.FileRecord, error) {
	return nil, nil
}
func (fakeStore) FileMimetype(ctx context.Context, uri string) (string, bool, error) {
	return "", false, nil
}
func (fakeStore) Exists(ctx context.Context, uri string) (bool, error) { return false, nil }
func (fakeStore) FolderCount(ctx context.Context) (int64, error)       { return 0, nil }
func (fakeStore) Apply(ctx context.Context, stmts []store.Statement) error {
	return nil
}
func (fakeStore) Close() error { return nil }

type fakeSink struct {
	processed      []string
	processedInfo  []*notifier.DiskStat
	attrs          []string
	removed        []string
	children       []string
	moved          [][2]string
	movedRecursive []bool
	finished       []string
	calls          []string // ordered log of method names, for call-order assertions
}

func (s *fakeSink) ProcessFile(path string, info *notifier.DiskStat, isDir, created bool) error {
	s.processed = append(s.processed, path)
	s.processedInfo = append(s.processedInfo, info)
	return nil
}
func (s *fakeSink) ProcessFileAttributes(path string, isDir bool) error {
	s.attrs = append(s.attrs, path)
	return nil
}
func (s *fakeSink) RemoveFile(path string, isDir bool) error {
	s.removed = append(s.removed, path)
	return nil
}
func (s *fakeSink) RemoveChildren(path string) error {
	s.children = append(s.children, path)
	s.calls = append(s.calls, "RemoveChildren")
	return nil
}
func (s *fakeSink) MoveFile(dst, src string, recursive bool) error {
	s.moved = append(s.moved, [2]string{src, dst})
	s.movedRecursive = append(s.movedRecursive, recursive)
	s.calls = append(s.calls, "MoveFile")
	return nil
}
func (s *fakeSink) FinishDirectory(path string) error {
	s.finished = append(s.finished, path)
	return nil
}
func (s *fakeSink) GetContentIdentifier(path string) (string, bool) { return "", false }

func newTestMiner(sink FileSink) *MinerFS {
	buf := store.New(fakeStore{}, nil)
	return New(Config{Buffer: buf, Sink: sink})
}

func TestEnqueueCoalescesCreateThenUpdate(t *testing.T) {
	m := newTestMiner(&fakeSink{})
	m.enqueue(&QueueEvent{Kind: Created, Path: "/a"})
	m.enqueue(&QueueEvent{Kind: Updated, Path: "/a"})

	if m.QueueLength() != 1 {
		t.Fatalf("expected one coalesced entry, got %d", m.QueueLength())
	}
	ev, ok := m.queue.Lookup("/a")
	if !ok || ev.Kind != Updated {
		t.Fatalf("expected coalesced Updated event, got %+v ok=%v", ev, ok)
	}
}

func TestEnqueueCreateThenDeleteDropsToDeleted(t *testing.T) {
	m := newTestMiner(&fakeSink{})
	m.enqueue(&QueueEvent{Kind: Created, Path: "/a"})
	m.enqueue(&QueueEvent{Kind: Deleted, Path: "/a"})

	ev, ok := m.queue.Lookup("/a")
	if !ok || ev.Kind != Deleted {
		t.Fatalf("expected Deleted event, got %+v ok=%v", ev, ok)
	}
}

func TestDispatchCreatedForwardsInfoToSink(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMiner(sink)
	info := &notifier.DiskStat{IsDir: false}
	m.Consume(notifier.Event{Kind: notifier.FileCreated, Path: "/a", Info: info})

	if err := m.dispatchTick(context.Background()); err != nil {
		t.Fatalf("dispatchTick: %v", err)
	}
	if len(sink.processedInfo) != 1 || sink.processedInfo[0] != info {
		t.Fatalf("expected ProcessFile to receive the cached stat info, got %v", sink.processedInfo)
	}
}

func TestConsumeTranslatesNotifierEvents(t *testing.T) {
	m := newTestMiner(&fakeSink{})
	m.Consume(notifier.Event{Kind: notifier.FileCreated, Path: "/a"})
	m.Consume(notifier.Event{Kind: notifier.FileMoved, Path: "/a", DestPath: "/b"})

	if m.QueueLength() != 1 {
		t.Fatalf("expected coalesced create+move, got %d entries", m.QueueLength())
	}
	ev, ok := m.queue.Lookup("/b")
	if !ok || ev.Kind != Created || ev.Path != "/b" {
		t.Fatalf("expected Created(/b), got %+v ok=%v", ev, ok)
	}
}

func TestDispatchDeletedDirLogsContentClear(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMiner(sink)
	m.enqueue(&QueueEvent{Kind: Deleted, Path: "/a", IsDir: true})

	if err := m.dispatchTick(context.Background()); err != nil {
		t.Fatalf("dispatchTick: %v", err)
	}
	if len(sink.removed) != 1 || sink.removed[0] != "/a" {
		t.Fatalf("expected RemoveFile(/a), got %v", sink.removed)
	}
	if len(sink.children) != 1 || sink.children[0] != "/a" {
		t.Fatalf("expected RemoveChildren(/a), got %v", sink.children)
	}
}

func TestDispatchMovedOrphanChildrenCallsRemoveChildrenBeforeMove(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMiner(sink)
	m.Consume(notifier.Event{
		Kind: notifier.FileMoved, Path: "/src/sub", DestPath: "/dst/sub", IsDir: true,
		OrphanChildren: true,
	})

	if err := m.dispatchTick(context.Background()); err != nil {
		t.Fatalf("dispatchTick: %v", err)
	}

	if len(sink.children) != 1 || sink.children[0] != "/src/sub" {
		t.Fatalf("expected RemoveChildren(/src/sub), got %v", sink.children)
	}
	if len(sink.moved) != 1 || sink.moved[0] != [2]string{"/src/sub", "/dst/sub"} {
		t.Fatalf("expected MoveFile(/dst/sub, /src/sub), got %v", sink.moved)
	}
	if len(sink.calls) != 2 || sink.calls[0] != "RemoveChildren" || sink.calls[1] != "MoveFile" {
		t.Fatalf("expected RemoveChildren before MoveFile, got %v", sink.calls)
	}
}

func TestDispatchMovedForwardsRecursiveFlag(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMiner(sink)
	m.Consume(notifier.Event{Kind: notifier.FileMoved, Path: "/a", DestPath: "/b", IsDir: true, Recursive: true})
	m.Consume(notifier.Event{Kind: notifier.FileMoved, Path: "/c", DestPath: "/d", IsDir: true, Recursive: false})

	if err := m.dispatchTick(context.Background()); err != nil {
		t.Fatalf("dispatchTick: %v", err)
	}

	if len(sink.moved) != 2 {
		t.Fatalf("expected 2 moves dispatched, got %d", len(sink.moved))
	}
	got := make(map[string]bool, 2)
	for i, pair := range sink.moved {
		got[pair[1]] = sink.movedRecursive[i]
	}
	if !got["/b"] {
		t.Fatalf("expected /b move to be recursive, got %v", got)
	}
	if got["/d"] {
		t.Fatalf("expected /d move to be non-recursive, got %v", got)
	}
}

func TestDispatchFinishDirectoryCallsSink(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMiner(sink)
	m.enqueue(&QueueEvent{Kind: FinishDirectory, Path: "/a"})

	if err := m.dispatchTick(context.Background()); err != nil {
		t.Fatalf("dispatchTick: %v", err)
	}
	if len(sink.finished) != 1 || sink.finished[0] != "/a" {
		t.Fatalf("expected FinishDirectory(/a), got %v", sink.finished)
	}
}

func TestHighWaterTripsAboveTwiceLimit(t *testing.T) {
	var seen []bool
	m := newTestMiner(&fakeSink{})
	m.buf.SetLimit(2)
	m.onHighWater = func(high bool) { seen = append(seen, high) }

	for i := 0; i < 5; i++ {
		m.enqueue(&QueueEvent{Kind: Created, Path: string(rune('a' + i))})
	}
	if len(seen) == 0 || !seen[len(seen)-1] {
		t.Fatalf("expected high water to trip, transitions: %v", seen)
	}
}

func TestInvalidateURNRemovesEntry(t *testing.T) {
	m := newTestMiner(&fakeSink{})
	m.urn.Add("/a", "urn:1")
	m.invalidateURN("/a")
	if _, ok := m.urn.Get("/a"); ok {
		t.Fatalf("expected /a to be evicted from the URN cache")
	}
}

func TestRunReturnsWhenIdle(t *testing.T) {
	m := newTestMiner(&fakeSink{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run on empty queue: %v", err)
	}
}

func TestRunReportsProcessingThenIdle(t *testing.T) {
	var statuses []string
	buf := store.New(fakeStore{}, nil)
	m := New(Config{Buffer: buf, Sink: &fakeSink{}, OnStatus: func(s string) { statuses = append(statuses, s) }})
	m.enqueue(&QueueEvent{Kind: Created, Path: "/a"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(statuses) < 2 || statuses[0] != "Processing…" || statuses[len(statuses)-1] != "Idle" {
		t.Fatalf("expected Processing… then Idle, got %v", statuses)
	}
}
