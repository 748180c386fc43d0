package miner

// coalesce merges a new event (next) into a path that already has a queued
// event (existing). It returns the event that should end up queued, or nil
// if the path should have no queued event at all. existing has already
// been removed from the queue by the caller; coalesce only decides what
// (if anything) replaces it.
//
// The common-case combinations are handled explicitly below; combinations
// that aren't expected to occur in practice (e.g. a bare Created arriving
// for a path already mid-Move) fall through to keeping the newest observed
// fact — the same "don't reorder a non-coalesced pair" principle applied
// to events that don't otherwise coalesce.
func coalesce(existing, next *QueueEvent) *QueueEvent {
	switch existing.Kind {
	case Created:
		return coalesceFromCreated(existing, next)
	case Updated:
		return coalesceFromUpdated(existing, next)
	case Deleted:
		return coalesceFromDeleted(existing, next)
	case Moved:
		return coalesceFromMoved(existing, next)
	default:
		return next
	}
}

func coalesceFromCreated(existing, next *QueueEvent) *QueueEvent {
	switch next.Kind {
	case Created:
		if next.AttributesOnly {
			return next
		}
		return existing
	case Updated:
		if next.AttributesOnly {
			return existing
		}
		return next
	case Deleted:
		return next
	case Moved:
		// Created(p) then Moved(p -> dst): net effect is as if the file
		// had been created directly at dst.
		return &QueueEvent{Kind: Created, Path: next.DestPath, IsDir: next.IsDir, Priority: existing.Priority || next.Priority}
	default:
		return next
	}
}

func coalesceFromUpdated(existing, next *QueueEvent) *QueueEvent {
	switch next.Kind {
	case Created:
		return existing
	case Updated:
		if !existing.AttributesOnly || !next.AttributesOnly {
			merged := *next
			merged.AttributesOnly = false
			return &merged
		}
		return next
	case Deleted:
		return next
	default:
		return next
	}
}

func coalesceFromDeleted(existing, next *QueueEvent) *QueueEvent {
	if next.Kind == Deleted {
		return existing
	}
	return next
}

func coalesceFromMoved(existing, next *QueueEvent) *QueueEvent {
	switch next.Kind {
	case Deleted:
		// Moved(p->q) then Deleted(q): net effect is the same as deleting
		// the original source outright.
		return &QueueEvent{Kind: Deleted, Path: existing.Path, IsDir: existing.IsDir, Priority: existing.Priority || next.Priority}
	case Moved:
		if existing.DestPath == next.Path {
			if existing.Path == next.DestPath {
				// Round trip p -> q -> p leaves nothing to do.
				return nil
			}
			// Chained rename p -> q -> q2 collapses to p -> q2.
			return &QueueEvent{
				Kind: Moved, Path: existing.Path, DestPath: next.DestPath,
				IsDir: existing.IsDir, Priority: existing.Priority || next.Priority,
			}
		}
		return next
	default:
		return next
	}
}
