package seriesreader

// Batch is an ordered, already-materialized sequence of Points honoring a
// declared Direction, per spec.md §3. Its cursor starts positioned at the
// head regardless of direction — callers always read it front-to-back in
// Direction order.
type Batch struct {
	dir    Direction
	points []Point
	pos    int
}

// HasCurrent reports whether the cursor has a point to yield.
func (b *Batch) HasCurrent() bool {
	return b != nil && b.pos < len(b.points)
}

// Current returns the point at the cursor without advancing it.
func (b *Batch) Current() Point {
	return b.points[b.pos]
}

// Advance moves the cursor forward one point.
func (b *Batch) Advance() {
	b.pos++
}

// Len returns the total number of points in the batch, irrespective of
// cursor position.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.points)
}

// Direction returns the direction this batch is ordered in.
func (b *Batch) Direction() Direction {
	return b.dir
}

// Iterator returns a fresh, independent cursor over the batch's points,
// used to feed the batch into the priority merge reader as one input.
func (b *Batch) Iterator() *BatchIterator {
	return &BatchIterator{points: b.points}
}

// NewBatch builds a Batch for a PageDecoder implemented outside this
// package. points must already be ordered in dir's direction — this
// package never reorders a PageDecoder's own output, only what it
// assembles itself from several decoders.
func NewBatch(dir Direction, points []Point) *Batch {
	return &Batch{dir: dir, points: points}
}

// BatchIterator is a one-shot forward cursor over a Batch's points.
type BatchIterator struct {
	points []Point
	idx    int
}

// HasNext reports whether there are more points to read.
func (it *BatchIterator) HasNext() bool {
	return it.idx < len(it.points)
}

// Next returns the next point and advances the cursor.
func (it *BatchIterator) Next() Point {
	p := it.points[it.idx]
	it.idx++
	return p
}

// Peek returns the next point without advancing the cursor. Callers must
// check HasNext first.
func (it *BatchIterator) Peek() Point {
	return it.points[it.idx]
}

// batchAssembler is the BatchAssembler of spec.md §4.6: a thin, direction
// aware accumulator that appends points as they are decoded and, for DESC
// reads, reverses them once at the end so the emitted Batch is monotone in
// Direction without needing every producer to special-case DESC internally.
type batchAssembler struct {
	dir    Direction
	filter Filter
	points []Point
}

func newBatchAssembler(dir Direction, filter Filter) *batchAssembler {
	return &batchAssembler{dir: dir, filter: filter}
}

// add appends a point if it satisfies the pushed-down value filter (if
// any), returning whether it was kept.
func (a *batchAssembler) add(p Point) bool {
	if a.filter != nil && !a.filter.Satisfy(p.TimestampMs, p.Value) {
		return false
	}
	a.points = append(a.points, p)
	return true
}

// hasData reports whether any point has been kept so far.
func (a *batchAssembler) hasData() bool {
	return len(a.points) > 0
}

// buildOrNil is build, but returns a nil Batch instead of an empty one —
// the idiom the overlap pipeline uses throughout so "nothing assembled" and
// "an empty batch" are never confused.
func (a *batchAssembler) buildOrNil() (*Batch, error) {
	if !a.hasData() {
		return nil, nil
	}
	return a.build(), nil
}

// build finalizes the batch: ASC batches are already in emission order;
// DESC batches are reversed in place, implementer's choice per spec.md
// §4.6 — this package appends then reverses rather than building backwards.
func (a *batchAssembler) build() *Batch {
	if a.dir == Desc {
		for i, j := 0, len(a.points)-1; i < j; i, j = i+1, j-1 {
			a.points[i], a.points[j] = a.points[j], a.points[i]
		}
	}
	return &Batch{dir: a.dir, points: a.points}
}
