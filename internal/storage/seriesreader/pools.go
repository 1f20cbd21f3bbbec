package seriesreader

import "container/heap"

// orderHeap is the one generic priority queue spec.md §9 asks for: "a
// single generic heap with a Direction-parametric comparator suffices; do
// not duplicate ASC/DESC heaps." It backs every unsequential pool in the
// pipeline — unseq metadata, the chunk pool, and unseq pages — keyed by
// whatever OrderPolicy.OrderTime means for that tier's Stats.
type orderHeap[T any] struct {
	policy OrderPolicy
	key    func(T) int64
	items  []T
}

func newOrderHeap[T any](policy OrderPolicy, key func(T) int64) *orderHeap[T] {
	return &orderHeap[T]{policy: policy, key: key}
}

func (h *orderHeap[T]) Len() int { return len(h.items) }

func (h *orderHeap[T]) Less(i, j int) bool {
	return h.policy.Less(h.key(h.items[i]), h.key(h.items[j]))
}

func (h *orderHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *orderHeap[T]) Push(x any) { h.items = append(h.items, x.(T)) }

func (h *orderHeap[T]) Pop() any {
	n := len(h.items)
	var zero T
	item := h.items[n-1]
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	return item
}

// push inserts a new item, reordering the underlying heap.
func (h *orderHeap[T]) push(item T) { heap.Push(h, item) }

// peek returns the front item without removing it. Callers must check
// Len() first.
func (h *orderHeap[T]) peek() T { return h.items[0] }

// pop removes and returns the front item.
func (h *orderHeap[T]) pop() T { return heap.Pop(h).(T) }

// seqQueue is a FIFO view over items that arrive already ordered by file
// order. Sequential tiers never need a priority queue — their ranges are
// disjoint and ordered by construction — but they do need direction-aware
// insertion: spec.md §4.5.3 appends newly unpacked sequential pages at the
// back under ASC and prepends them under DESC, since loaders always hand
// back chunk/page lists in ascending natural order regardless of the
// read direction.
type seqQueue[T any] struct {
	dir   Direction
	items []T
}

func newSeqQueue[T any](dir Direction) *seqQueue[T] {
	return &seqQueue[T]{dir: dir}
}

func (q *seqQueue[T]) Len() int { return len(q.items) }

// insertAll adds items (given in ascending natural order) to the queue's
// trailing edge for the configured direction.
func (q *seqQueue[T]) insertAll(items []T) {
	if len(items) == 0 {
		return
	}
	if q.dir == Asc {
		q.items = append(q.items, items...)
		return
	}
	reversed := make([]T, len(items))
	for i, it := range items {
		reversed[len(items)-1-i] = it
	}
	q.items = append(reversed, q.items...)
}

func (q *seqQueue[T]) front() T { return q.items[0] }

func (q *seqQueue[T]) popFront() T {
	item := q.items[0]
	q.items = q.items[1:]
	return item
}
