package seriesreader

import "container/heap"

// mergeReader is spec.md §4.3's PriorityMergeReader: a stream multiplexer
// over any number of (iterator, VersionKey, endFrontier) inputs, yielding
// points in direction-respecting timestamp order with version-based
// deduplication. Ties at the same timestamp are resolved by VersionKey —
// the largest wins and every other input's entry at that timestamp is
// discarded (shadowed), per spec.md invariant 5.
//
// There is deliberately one implementation for both directions: the
// OrderPolicy supplies the comparator, so nothing here branches on
// direction directly (spec.md §9's "single generic heap" note).
type mergeReader struct {
	dir    Direction
	policy OrderPolicy
	h      mergeHeap
}

func newMergeReader(dir Direction) *mergeReader {
	return &mergeReader{
		dir:    dir,
		policy: dir.Policy(),
		h:      mergeHeap{policy: dir.Policy()},
	}
}

// mergeInput tracks one live reader pushed into the merge: its iterator,
// the version every point it yields is stamped with, the furthest
// timestamp at which it's safe to emit without a later insertion
// invalidating an already-emitted value, and its current head point.
type mergeInput struct {
	it          *BatchIterator
	version     VersionKey
	endFrontier int64
	cur         Point
}

// mergeHeap is the container/heap.Interface backing the merge reader. Using
// one generic heap parameterized by OrderPolicy, rather than separate ASC
// and DESC heap types, avoids duplicating the priority-queue machinery.
type mergeHeap struct {
	policy OrderPolicy
	items  []*mergeInput
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.cur.TimestampMs != b.cur.TimestampMs {
		return h.policy.Less(a.cur.TimestampMs, b.cur.TimestampMs)
	}
	// Tie at the same timestamp: the larger VersionKey must surface first
	// so currentTimeValuePair() previews the eventual winner.
	return b.cur.Version.Less(a.cur.Version)
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x any) { h.items = append(h.items, x.(*mergeInput)) }

func (h *mergeHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	return item
}

// hasNextTimeValuePair reports whether any live input has data.
func (r *mergeReader) hasNextTimeValuePair() bool {
	return r.h.Len() > 0
}

// currentTimeValuePair peeks the eventual winner at the current timestamp
// without consuming anything.
func (r *mergeReader) currentTimeValuePair() Point {
	return r.h.items[0].cur
}

// nextTimeValuePair consumes the winner at the current timestamp and
// discards every other live input's entry at that same timestamp.
func (r *mergeReader) nextTimeValuePair() Point {
	winner := r.h.items[0].cur
	ts := winner.TimestampMs
	for r.h.Len() > 0 && r.h.items[0].cur.TimestampMs == ts {
		in := heap.Pop(&r.h).(*mergeInput)
		r.advance(in)
	}
	return winner
}

// advance refills the heap with in's next point, if it has one.
func (r *mergeReader) advance(in *mergeInput) {
	if !in.it.HasNext() {
		return
	}
	in.cur = in.it.Next()
	in.cur.Version = in.version
	heap.Push(&r.h, in)
}

// getCurrentReadStopTime returns the minimum (ASC) / maximum (DESC) of the
// endFrontier values across still-live inputs — the furthest timestamp at
// which it is safe to emit without risking a later insertion invalidating
// an already-emitted value. Callers must not invoke this with no live
// inputs.
func (r *mergeReader) getCurrentReadStopTime() int64 {
	stop := r.h.items[0].endFrontier
	for _, in := range r.h.items[1:] {
		if r.dir == Asc {
			if in.endFrontier < stop {
				stop = in.endFrontier
			}
		} else if in.endFrontier > stop {
			stop = in.endFrontier
		}
	}
	return stop
}

// addReader registers a new input. Safe to call at any time, including
// when the new input's first timestamp is at or before the current head —
// the heap reorders on the next comparison.
func (r *mergeReader) addReader(it *BatchIterator, version VersionKey, endFrontier int64) {
	if !it.HasNext() {
		return
	}
	in := &mergeInput{it: it, version: version, endFrontier: endFrontier}
	in.cur = it.Next()
	in.cur.Version = version
	heap.Push(&r.h, in)
}
