package notifier

import (
	"context"
	"testing"

	"github.com/localsearch/miner/internal/monitor"
	"github.com/localsearch/miner/internal/tree"
)

func movedEvent(src, dst string) monitor.Event {
	return monitor.Event{
		Kind: monitor.ItemMoved, Path: src, DestPath: dst, IsDir: true, IsDirKnown: true,
		SrcWasMonitored: true,
	}
}

func TestDispatchMovedSetsRecursiveWhenBothRootsRecursive(t *testing.T) {
	tr := tree.New()
	tr.Add("/src", tree.Recurse)
	tr.Add("/dst", tree.Recurse)

	var got []Event
	n := New(Config{
		Tree:  tr,
		Store: newFakeStore(),
		Sink:  func(ev Event) { got = append(got, ev) },
	})

	n.dispatchMoved(context.Background(), movedEvent("/src/sub", "/dst/sub"))

	if len(got) != 1 || got[0].Kind != FileMoved {
		t.Fatalf("expected one FileMoved event, got %+v", got)
	}
	if !got[0].Recursive {
		t.Fatalf("expected Recursive=true when both src and dst roots are recursive, got %+v", got[0])
	}
	if got[0].OrphanChildren {
		t.Fatalf("expected OrphanChildren=false when both roots are recursive, got %+v", got[0])
	}
}

func TestDispatchMovedClearsRecursiveWhenDestinationIsSingle(t *testing.T) {
	tr := tree.New()
	tr.Add("/src", tree.Recurse)
	tr.Add("/dst", tree.Flag(0))

	var got []Event
	n := New(Config{
		Tree:  tr,
		Store: newFakeStore(),
		Sink:  func(ev Event) { got = append(got, ev) },
	})

	n.dispatchMoved(context.Background(), movedEvent("/src/sub", "/dst/sub"))

	if len(got) != 1 || got[0].Kind != FileMoved {
		t.Fatalf("expected one FileMoved event, got %+v", got)
	}
	if got[0].Recursive {
		t.Fatalf("expected Recursive=false when the destination root is non-recursive, got %+v", got[0])
	}
	if !got[0].OrphanChildren {
		t.Fatalf("expected OrphanChildren=true when a recursive source moves into a non-recursive destination, got %+v", got[0])
	}
}

func TestDispatchMovedClearsRecursiveForPlainFile(t *testing.T) {
	tr := tree.New()
	tr.Add("/src", tree.Recurse)
	tr.Add("/dst", tree.Recurse)

	var got []Event
	n := New(Config{
		Tree:  tr,
		Store: newFakeStore(),
		Sink:  func(ev Event) { got = append(got, ev) },
	})

	ev := movedEvent("/src/a.txt", "/dst/a.txt")
	ev.IsDir = false
	n.dispatchMoved(context.Background(), ev)

	if len(got) != 1 || got[0].Kind != FileMoved {
		t.Fatalf("expected one FileMoved event, got %+v", got)
	}
	if got[0].Recursive {
		t.Fatalf("expected Recursive=false for a plain file move, got %+v", got[0])
	}
	if got[0].OrphanChildren {
		t.Fatalf("expected OrphanChildren=false for a plain file move, got %+v", got[0])
	}
}
