package seriesreader

import "sort"

// StaticPage is a PageDecoder over points a collaborator has already
// pulled fully into memory — a Parquet page span, the hot ring buffer's
// current contents — with no cheaper partial-decode path available. It
// exists so collaborators implementing FileHandle/ChunkMeta loaders from
// outside this package never have to hand-roll direction handling or
// filter push-down themselves.
//
// Points need not arrive pre-sorted; AllSatisfiedData sorts ascending by
// timestamp before applying direction, so a collaborator reading rows in
// on-disk or insertion order doesn't have to reason about read order.
type StaticPage struct {
	stats    Stats
	modified bool
	points   []Point
	filter   Filter
}

// NewStaticPage wraps points already decoded for one page. modified
// should reflect whether deletions may apply to this page specifically,
// not just the chunk or file it belongs to.
func NewStaticPage(stats Stats, modified bool, points []Point) *StaticPage {
	return &StaticPage{stats: stats, modified: modified, points: points}
}

func (p *StaticPage) Statistics() Stats { return p.stats }

func (p *StaticPage) IsModified() bool { return p.modified }

func (p *StaticPage) SetFilter(f Filter) { p.filter = f }

func (p *StaticPage) AllSatisfiedData(dir Direction) (*Batch, error) {
	sorted := make([]Point, len(p.points))
	copy(sorted, p.points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })
	if dir == Desc {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}
	if p.filter == nil {
		return NewBatch(dir, sorted), nil
	}
	kept := make([]Point, 0, len(sorted))
	for _, pt := range sorted {
		if p.filter.Satisfy(pt.TimestampMs, pt.Value) {
			kept = append(kept, pt)
		}
	}
	return NewBatch(dir, kept), nil
}
