// Package miner implements the MinerFS: the event queue, coalescing,
// priority scheduling, and backpressure that sits between the FileNotifier
// and the SparqlBuffer.
package miner

import "github.com/localsearch/miner/internal/notifier"

// Kind tags a QueueEvent.
type Kind int

const (
	Created Kind = iota
	Updated
	Deleted
	Moved
	FinishDirectory
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	case FinishDirectory:
		return "finish-directory"
	default:
		return "unknown"
	}
}

// QueueEvent is one entry in the MinerFS priority queue. It carries a
// back-pointer to its own heap slot (the index field) so coalescing can
// remove or re-prioritize it in O(log n) instead of a linear scan.
type QueueEvent struct {
	Kind      Kind
	Path      string
	DestPath  string // Moved only
	IsDir     bool
	Recursive bool // Moved only: both source and destination roots recursive

	// OrphanChildren is set on Moved when the source root was recursive
	// but the destination root is not: the sink must drop the source's
	// previously indexed descendants before recording the move.
	OrphanChildren bool

	// Info carries cached stat-like attributes from discovery, when
	// available, so ProcessFile doesn't have to re-stat path itself.
	Info *notifier.DiskStat

	AttributesOnly bool // Updated produced by an attribute-only change

	Priority bool // front-of-queue, from the governing root's PRIORITY flag
	seq      int64

	index int // heap slot; maintained by container/heap's Swap
}
