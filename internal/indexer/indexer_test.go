package indexer

import (
	"context"
	"testing"

	"github.com/localsearch/miner/internal/store"
)

type fakeStore struct {
	applied []store.Statement
}

func (s *fakeStore) IndexRootContent(context.Context, string) ([]store.FileRecord, error) {
	return nil, nil
}
func (s *fakeStore) FileMimetype(context.Context, string) (string, bool, error) { return "", false, nil }
func (s *fakeStore) Exists(context.Context, string) (bool, error)               { return false, nil }
func (s *fakeStore) FolderCount(context.Context) (int64, error)                 { return 0, nil }
func (s *fakeStore) Apply(_ context.Context, stmts []store.Statement) error {
	s.applied = append(s.applied, stmts...)
	return nil
}
func (s *fakeStore) Close() error { return nil }

func newTestIndexer(t *testing.T) (*Indexer, *store.Buffer, *fakeStore) {
	t.Helper()
	fs := &fakeStore{}
	buf := store.New(fs, nil)
	return New(Config{Buffer: buf}), buf, fs
}

func TestProcessFileLogsFileStatement(t *testing.T) {
	idx, buf, fs := newTestIndexer(t)

	if err := idx.ProcessFile("/a/b.txt", nil, false, true); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if idx.Stats().FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1", idx.Stats().FilesIndexed)
	}

	if _, err := buf.Flush(context.Background(), "test"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fs.applied) != 1 || fs.applied[0].Kind != store.StmtFile {
		t.Errorf("applied = %+v, want one StmtFile", fs.applied)
	}
	if fs.applied[0].ContentGraph != store.DefaultGraph {
		t.Errorf("ContentGraph = %q, want %q", fs.applied[0].ContentGraph, store.DefaultGraph)
	}
}

func TestProcessFileLogsFolderStatement(t *testing.T) {
	idx, buf, fs := newTestIndexer(t)

	if err := idx.ProcessFile("/a/dir", nil, true, true); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if idx.Stats().FoldersIndexed != 1 {
		t.Errorf("FoldersIndexed = %d, want 1", idx.Stats().FoldersIndexed)
	}

	if _, err := buf.Flush(context.Background(), "test"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fs.applied) != 1 || fs.applied[0].Kind != store.StmtFolder {
		t.Errorf("applied = %+v, want one StmtFolder", fs.applied)
	}
}

func TestRemoveFileIncrementsCounter(t *testing.T) {
	idx, _, _ := newTestIndexer(t)

	if err := idx.RemoveFile("/a/b.txt", false); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if idx.Stats().Removed != 1 {
		t.Errorf("Removed = %d, want 1", idx.Stats().Removed)
	}
}

func TestResourceIDIsStableAcrossCalls(t *testing.T) {
	a := resourceID("/a/b.txt")
	b := resourceID("/a/b.txt")
	if a != b {
		t.Errorf("resourceID not deterministic: %q != %q", a, b)
	}
	if a == resourceID("/a/c.txt") {
		t.Error("distinct paths produced the same resource id")
	}
}

func TestGetContentIdentifierAlwaysHits(t *testing.T) {
	idx, _, _ := newTestIndexer(t)
	id, ok := idx.GetContentIdentifier("/a/b.txt")
	if !ok || id == "" {
		t.Errorf("GetContentIdentifier = (%q, %v), want non-empty id and true", id, ok)
	}
}

func TestMoveFileRecursiveLogsFolderContentMove(t *testing.T) {
	idx, buf, fs := newTestIndexer(t)

	if err := idx.MoveFile("/b", "/a", true); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := buf.Flush(context.Background(), "test"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fs.applied) != 1 || fs.applied[0].Kind != store.StmtMoveFolderContents {
		t.Errorf("applied = %+v, want one StmtMoveFolderContents", fs.applied)
	}
}
