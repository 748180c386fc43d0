package notifier

import (
	"context"
	"path/filepath"

	"github.com/localsearch/miner/internal/monitor"
	"github.com/localsearch/miner/internal/tree"
)

// dispatchLive translates one Monitor event into zero or more logical
// events. This runs concurrently with (or after)
// reconciliation; the IndexingTree it reads is main-loop-only but dispatch
// only calls its read-side predicates.
func (n *FileNotifier) dispatchLive(ctx context.Context, ev monitor.Event) {
	switch ev.Kind {
	case monitor.ItemCreated:
		n.dispatchCreated(ctx, ev)
	case monitor.ItemUpdated:
		n.dispatchUpdated(ev)
	case monitor.ItemAttributeUpdated:
		n.dispatchAttributeUpdated(ev)
	case monitor.ItemDeleted:
		n.dispatchDeleted(ctx, ev)
	case monitor.ItemMoved:
		n.dispatchMoved(ctx, ev)
	}
}

func (n *FileNotifier) indexable(path string, isDir bool) bool {
	return n.tree.FileIsIndexable(path, &tree.Attrs{IsDir: isDir})
}

func (n *FileNotifier) dispatchCreated(ctx context.Context, ev monitor.Event) {
	if !n.indexable(ev.Path, ev.IsDir) {
		return
	}

	parent := filepath.Dir(ev.Path)
	names := n.childNamesBestEffort(parent)
	if !n.tree.ParentIsIndexable(parent, names) {
		// This new child just disqualified its parent via a content
		// filter; tear the parent down as though it had been deleted.
		n.emit(Event{Kind: FileDeleted, Path: parent, IsDir: true})
		if n.mon != nil {
			_ = n.mon.RemoveRecursively(parent)
		}
		return
	}

	if ev.IsDir {
		if r, ok := n.tree.GetRoot(ev.Path); ok && r.Flags.Has(tree.Recurse) {
			// Queue a reconcile of the new subtree. The file-created for
			// the directory itself is emitted immediately below; the
			// reconcile's crawl does not suppress its own file-created
			// for the same directory, so it emits a second one when the
			// store has no row for the directory yet.
			n.QueueRoot(&tree.Root{Path: ev.Path, Flags: r.Flags})
		}
	}

	n.emit(Event{Kind: FileCreated, Path: ev.Path, IsDir: ev.IsDir})
}

func (n *FileNotifier) dispatchUpdated(ev monitor.Event) {
	if !n.indexable(ev.Path, ev.IsDir) {
		return
	}
	n.emit(Event{Kind: FileUpdated, Path: ev.Path, IsDir: ev.IsDir})
}

func (n *FileNotifier) dispatchAttributeUpdated(ev monitor.Event) {
	if !n.indexable(ev.Path, ev.IsDir) {
		return
	}
	n.emit(Event{Kind: FileUpdated, Path: ev.Path, IsDir: ev.IsDir, AttributesOnly: true})
}

func (n *FileNotifier) dispatchDeleted(ctx context.Context, ev monitor.Event) {
	isDir := ev.IsDir
	if !ev.IsDirKnown {
		if mimetype, ok, err := n.st.FileMimetype(ctx, ev.Path); err == nil && ok {
			isDir = mimetype == "inode/directory"
		}
	}

	if n.mon != nil {
		_ = n.mon.RemoveRecursively(ev.Path)
	}

	if !n.indexable(ev.Path, isDir) {
		return
	}
	n.emit(Event{Kind: FileDeleted, Path: ev.Path, IsDir: isDir})
}

func (n *FileNotifier) dispatchMoved(ctx context.Context, ev monitor.Event) {
	srcIndexable := n.indexable(ev.Path, ev.IsDir)
	dstIndexable := n.indexable(ev.DestPath, ev.IsDir)
	dstRoot, dstRootOK := n.tree.GetRoot(ev.DestPath)
	dstRecursive := dstRootOK && dstRoot.Flags.Has(tree.Recurse)

	switch {
	case !ev.SrcWasMonitored:
		// Resolved open question: emit file-created iff the
		// destination URI is new in the store, file-updated otherwise.
		if dstIndexable {
			if ev.IsDir && dstRecursive {
				n.QueueRoot(&tree.Root{Path: ev.DestPath, Flags: dstRoot.Flags})
				return
			}
			exists, err := n.st.Exists(ctx, ev.DestPath)
			if err == nil && !exists {
				n.emit(Event{Kind: FileCreated, Path: ev.DestPath, IsDir: ev.IsDir})
			} else {
				n.emit(Event{Kind: FileUpdated, Path: ev.DestPath, IsDir: ev.IsDir})
			}
		}

	case srcIndexable && !dstIndexable:
		n.emit(Event{Kind: FileDeleted, Path: ev.Path, IsDir: ev.IsDir})
		if n.mon != nil {
			_ = n.mon.RemoveRecursively(ev.Path)
		}

	case !srcIndexable && dstIndexable:
		if ev.IsDir && dstRecursive {
			n.QueueRoot(&tree.Root{Path: ev.DestPath, Flags: dstRoot.Flags})
		} else {
			n.emit(Event{Kind: FileUpdated, Path: ev.DestPath, IsDir: ev.IsDir})
		}

	case srcIndexable && dstIndexable:
		if n.mon != nil {
			_ = n.mon.Move(ev.Path, ev.DestPath)
		}
		srcRoot, srcRootOK := n.tree.GetRoot(ev.Path)
		srcRecursive := srcRootOK && srcRoot.Flags.Has(tree.Recurse)
		n.emit(Event{
			Kind: FileMoved, Path: ev.Path, DestPath: ev.DestPath, IsDir: ev.IsDir,
			Recursive:      ev.IsDir && srcRecursive && dstRecursive,
			OrphanChildren: ev.IsDir && srcRecursive && !dstRecursive,
		})
		if filepath.Ext(ev.Path) != filepath.Ext(ev.DestPath) {
			// The mimetype — and therefore the extractor's work — may
			// have changed even though the bytes didn't move.
			n.emit(Event{Kind: FileUpdated, Path: ev.DestPath, IsDir: ev.IsDir})
		}
	}
}
