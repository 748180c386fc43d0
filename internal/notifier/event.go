package notifier

// EventKind tags a logical event produced by reconciliation or live dispatch
//. These are the events the miner pipeline consumes.
type EventKind int

const (
	FileCreated EventKind = iota
	FileUpdated
	FileDeleted
	FileMoved
	DirectoryFinished
	Finished
)

// Event is one logical event emitted by the FileNotifier. Fields not
// relevant to Kind are left zero.
type Event struct {
	Kind EventKind

	Path     string
	DestPath string // FileMoved only
	IsDir    bool

	// Info carries cached stat-like attributes gathered while discovering
	// the event (query-phase row or crawl Lstat), so the miner's dispatch
	// doesn't have to re-stat the path. Nil when no stat was available
	// (e.g. a live monitor event that only reports path/is_dir).
	Info *DiskStat

	// Recursive is set on FileMoved: true iff both the source and
	// destination roots are recursive, so the miner can move the whole
	// subtree's store entries in one statement instead of file by file.
	Recursive bool

	// OrphanChildren is set on FileMoved when the source root was
	// recursive but the destination root is not: the destination will
	// only hold the moved directory itself, so its previously indexed
	// descendants must be dropped from the store rather than left behind.
	OrphanChildren bool

	// AttributesOnly marks a FileUpdated produced by an attribute-only
	// change (Monitor's item-attribute-updated), as opposed to content.
	AttributesOnly bool

	// Root is set on DirectoryFinished to identify which reconcile pass
	// produced the event. Finished, emitted once the pending-root queue is
	// empty, carries no Root.
	Root string
}

// Sink receives Events. The FileNotifier has exactly one subscriber (the
// MinerFS), so a direct callback is used rather than a broadcast channel.
type Sink func(Event)
