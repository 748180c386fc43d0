package notifier

import (
	"context"

	"github.com/localsearch/miner/internal/tree"
)

// IndexRoot is the in-memory state of a single active reconcile.
// It is freed when its reconcile completes or is cancelled.
type IndexRoot struct {
	Root  *tree.Root
	Flags tree.Flag

	// DeletedDirs holds directories the query phase found deleted from
	// disk; children appearing later in the cursor inherit the delete
	// without generating spurious per-child events.
	DeletedDirs map[string]struct{}

	Stats tree.RootStats

	ctx    context.Context
	cancel context.CancelFunc
}

func newIndexRoot(parent context.Context, root *tree.Root) *IndexRoot {
	ctx, cancel := context.WithCancel(parent)
	return &IndexRoot{
		Root:        root,
		Flags:       root.Flags,
		DeletedDirs: make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Cancel aborts this IndexRoot's in-flight cursor or enumeration promptly;
// the reconcile loop checks ctx.Done() at every batch boundary.
func (r *IndexRoot) Cancel() { r.cancel() }

func (r *IndexRoot) inheritedDelete(dir string) bool {
	_, ok := r.DeletedDirs[dir]
	return ok
}
