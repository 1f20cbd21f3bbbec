package seriesreader

import "container/heap"

// fileCursor is spec.md §4.4's LazyFileCursor: it holds the query's two file
// populations unopened and hands them out one at a time as the pipeline
// asks for them. Sequential files are disjoint and already ordered by
// construction, so they are just walked front-to-back (or back-to-front
// under Desc); unsequential files may overlap, so they sit in a priority
// queue ordered by OrderTime so the pipeline always sees the nearest
// unopened candidate next.
type fileCursor struct {
	dir    Direction
	policy OrderPolicy

	seq    []FileHandle
	seqIdx int

	unseq unseqHeap
}

func newFileCursor(dir Direction, seqFiles, unseqFiles []FileHandle) *fileCursor {
	seq := make([]FileHandle, len(seqFiles))
	copy(seq, seqFiles)
	if dir == Desc {
		for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
			seq[i], seq[j] = seq[j], seq[i]
		}
	}

	fc := &fileCursor{
		dir:    dir,
		policy: dir.Policy(),
		seq:    seq,
		unseq:  unseqHeap{policy: dir.Policy()},
	}
	for _, fh := range unseqFiles {
		heap.Push(&fc.unseq, fh)
	}
	return fc
}

// hasNextSeq reports whether an unconsumed sequential file remains.
func (fc *fileCursor) hasNextSeq() bool {
	return fc.seqIdx < len(fc.seq)
}

// peekFrontSeq returns the next unconsumed sequential file without
// consuming it. Callers must check hasNextSeq first.
func (fc *fileCursor) peekFrontSeq() FileHandle {
	return fc.seq[fc.seqIdx]
}

// hasNextUnseq reports whether an unconsumed unsequential file remains.
func (fc *fileCursor) hasNextUnseq() bool {
	return fc.unseq.Len() > 0
}

// peekFrontUnseq returns the nearest unconsumed unsequential file, by
// OrderTime, without consuming it. Callers must check hasNextUnseq first.
func (fc *fileCursor) peekFrontUnseq() FileHandle {
	return fc.unseq.items[0]
}

// loadFront consumes and returns the front file of the requested tier.
// Callers must have checked hasNextSeq/hasNextUnseq first.
func (fc *fileCursor) loadFront(isSeq bool) FileHandle {
	if isSeq {
		fh := fc.seq[fc.seqIdx]
		fc.seqIdx++
		return fh
	}
	return heap.Pop(&fc.unseq).(FileHandle)
}

// unseqHeap is the container/heap.Interface ordering unsequential files by
// OrderTime: start time under Asc, end time under Desc.
type unseqHeap struct {
	policy OrderPolicy
	items  []FileHandle
}

func (h *unseqHeap) Len() int { return len(h.items) }

func (h *unseqHeap) Less(i, j int) bool {
	a := h.policy.OrderTime(h.items[i].Stats())
	b := h.policy.OrderTime(h.items[j].Stats())
	return h.policy.Less(a, b)
}

func (h *unseqHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *unseqHeap) Push(x any) { h.items = append(h.items, x.(FileHandle)) }

func (h *unseqHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	return item
}
