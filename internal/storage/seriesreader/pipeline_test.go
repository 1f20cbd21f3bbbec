package seriesreader

import (
	"context"
	"testing"
)

// fakePageSpec describes one page's contents for test fixtures.
type fakePageSpec struct {
	stats  Stats
	points []Point
	calls  *int
}

// fakePage is a PageDecoder test double that records whether it was ever
// fully realized, for spec.md P4 ("no PageDecoder is ever fully realized
// during a pure-statistics traversal").
type fakePage struct {
	stats    Stats
	points   []Point
	modified bool
	filter   Filter
	calls    *int
}

func (f *fakePage) Statistics() Stats { return f.stats }
func (f *fakePage) IsModified() bool  { return f.modified }
func (f *fakePage) SetFilter(flt Filter) { f.filter = flt }
func (f *fakePage) AllSatisfiedData(dir Direction) (*Batch, error) {
	if f.calls != nil {
		*f.calls++
	}
	pts := make([]Point, 0, len(f.points))
	for _, pt := range f.points {
		if f.filter != nil && !f.filter.Satisfy(pt.TimestampMs, pt.Value) {
			continue
		}
		pts = append(pts, pt)
	}
	if dir == Desc {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return &Batch{dir: dir, points: pts}, nil
}

// fakeChunkSpec describes one chunk's contents for test fixtures.
type fakeChunkSpec struct {
	stats   Stats
	version VersionKey
	pages   []fakePageSpec
}

// fakeFile is a FileHandle test double backed by an in-memory chunk list.
type fakeFile struct {
	stats    Stats
	modified bool
	present  bool
	chunks   []fakeChunkSpec
}

func newFakeFile(stats Stats, version int64, points []Point) *fakeFile {
	return &fakeFile{
		stats:   stats,
		present: true,
		chunks: []fakeChunkSpec{{
			stats:   stats,
			version: VersionKey{Generation: version},
			pages:   []fakePageSpec{{stats: stats, points: points}},
		}},
	}
}

func (f *fakeFile) Stats() Stats    { return f.stats }
func (f *fakeFile) Modified() bool  { return f.modified }

func (f *fakeFile) LoadSeriesMeta(_ *TimeRangeFilter) (SeriesMeta, bool, error) {
	if !f.present {
		return SeriesMeta{}, false, nil
	}
	chunks := f.chunks
	loadChunks := func() ([]ChunkMeta, error) {
		out := make([]ChunkMeta, len(chunks))
		for i, c := range chunks {
			pages := c.pages
			loadPages := func(_ *TimeRangeFilter) ([]PageDecoder, error) {
				decs := make([]PageDecoder, len(pages))
				for j, pg := range pages {
					decs[j] = &fakePage{stats: pg.stats, points: pg.points, calls: pg.calls}
				}
				return decs, nil
			}
			out[i] = NewChunkMeta(c.stats, false, false, c.version, loadPages)
		}
		return out, nil
	}
	return NewSeriesMeta(f.stats, false, false, loadChunks), true, nil
}

func pts(pairs ...[2]float64) []Point {
	out := make([]Point, len(pairs))
	for i, pr := range pairs {
		out[i] = Point{TimestampMs: int64(pr[0]), Value: pr[1]}
	}
	return out
}

func rng(start, end int64) Stats { return Stats{StartTime: start, EndTime: end} }

func drain(t *testing.T, dir Direction, seq, unseq []FileHandle) []Point {
	t.Helper()
	r := NewSeriesReader(context.Background(), dir, seq, unseq, nil, nil, nil)
	batch, err := r.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	var out []Point
	for it := batch.Iterator(); it.HasNext(); {
		out = append(out, it.Next())
	}
	return out
}

func assertTimestamps(t *testing.T, got []Point, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d points %+v, want %d timestamps %v", len(got), got, len(want), want)
	}
	for i, p := range got {
		if p.TimestampMs != want[i] {
			t.Fatalf("point %d: got ts %d, want %d (all: %+v)", i, p.TimestampMs, want[i], got)
		}
	}
}

func assertValues(t *testing.T, got []Point, want ...float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d points %+v, want %d values %v", len(got), got, len(want), want)
	}
	for i, p := range got {
		if p.Value != want[i] {
			t.Fatalf("point %d: got value %v, want %v (all: %+v)", i, p.Value, want[i], got)
		}
	}
}

// S1: two disjoint seq files, no unseq.
func TestScenario1_SeqOnlyAscending(t *testing.T) {
	f1 := newFakeFile(rng(1, 3), 1, pts([2]float64{1, 10}, [2]float64{2, 20}, [2]float64{3, 30}))
	f2 := newFakeFile(rng(4, 5), 1, pts([2]float64{4, 40}, [2]float64{5, 50}))

	got := drain(t, Asc, []FileHandle{f1, f2}, nil)
	assertTimestamps(t, got, 1, 2, 3, 4, 5)
	assertValues(t, got, 10, 20, 30, 40, 50)
}

// S1 continued: statistics-only traversal never realizes a page when
// nothing overlaps and nothing is modified (P4).
func TestScenario1_StatisticsOnlyNeverMaterializes(t *testing.T) {
	var calls int
	f1 := &fakeFile{
		stats:   rng(1, 3),
		present: true,
		chunks: []fakeChunkSpec{{
			stats:   rng(1, 3),
			version: VersionKey{Generation: 1},
			pages:   []fakePageSpec{{stats: rng(1, 3), points: pts([2]float64{1, 10}), calls: &calls}},
		}},
	}

	p := NewOverlapPipeline(context.Background(), Asc, []FileHandle{f1}, nil, nil, nil, nil)
	for {
		hasFile, err := p.HasNextFile()
		if err != nil {
			t.Fatalf("HasNextFile: %v", err)
		}
		if !hasFile {
			break
		}
		if p.CurrentFileModified() {
			t.Fatal("expected unmodified file")
		}
		overlapped, err := p.IsFileOverlapped()
		if err != nil {
			t.Fatalf("IsFileOverlapped: %v", err)
		}
		if overlapped {
			t.Fatal("expected no file overlap")
		}
		p.SkipCurrentFile()
	}
	if calls != 0 {
		t.Fatalf("expected 0 page realizations, got %d", calls)
	}
}

// S2: seq carries the original write, unseq carries a newer version
// shadowing timestamps 2..4.
func TestScenario2_UnseqShadowsSeq(t *testing.T) {
	seq := newFakeFile(rng(1, 3), 1, pts([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3}))
	unseq := newFakeFile(rng(2, 4), 2, pts([2]float64{2, 200}, [2]float64{3, 300}, [2]float64{4, 400}))

	asc := drain(t, Asc, []FileHandle{seq}, []FileHandle{unseq})
	assertTimestamps(t, asc, 1, 2, 3, 4)
	assertValues(t, asc, 1, 200, 300, 400)

	seqD := newFakeFile(rng(1, 3), 1, pts([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3}))
	unseqD := newFakeFile(rng(2, 4), 2, pts([2]float64{2, 200}, [2]float64{3, 300}, [2]float64{4, 400}))
	desc := drain(t, Desc, []FileHandle{seqD}, []FileHandle{unseqD})
	assertTimestamps(t, desc, 4, 3, 2, 1)
	assertValues(t, desc, 400, 300, 200, 1)
}

// S3: two overlapping unseq files; the higher VersionKey wins at the tied
// timestamp 20.
func TestScenario3_UnseqVersusUnseq(t *testing.T) {
	u1 := newFakeFile(rng(10, 20), 5, pts([2]float64{10, 1}, [2]float64{20, 2}))
	u2 := newFakeFile(rng(15, 20), 7, pts([2]float64{15, 3}, [2]float64{20, 4}))

	got := drain(t, Asc, nil, []FileHandle{u1, u2})
	assertTimestamps(t, got, 10, 15, 20)
	assertValues(t, got, 1, 3, 4)
}

// S4: three disjoint seq pages plus one unseq page overlapping the middle
// seq page; the first and third seq pages need no merging.
func TestScenario4_MiddlePageOverlapsUnseq(t *testing.T) {
	seqFile := &fakeFile{
		stats:   rng(1, 9),
		present: true,
		chunks: []fakeChunkSpec{{
			stats:   rng(1, 9),
			version: VersionKey{Generation: 1},
			pages: []fakePageSpec{
				{stats: rng(1, 3), points: pts([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3})},
				{stats: rng(4, 6), points: pts([2]float64{4, 4}, [2]float64{5, 5}, [2]float64{6, 6})},
				{stats: rng(7, 9), points: pts([2]float64{7, 7}, [2]float64{8, 8}, [2]float64{9, 9})},
			},
		}},
	}
	unseqFile := newFakeFile(rng(5, 5), 2, []Point{{TimestampMs: 5, Value: 55}})

	got := drain(t, Asc, []FileHandle{seqFile}, []FileHandle{unseqFile})
	assertTimestamps(t, got, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	assertValues(t, got, 1, 2, 3, 4, 55, 6, 7, 8, 9)
}

// S6: a deletion on the seq side forces descent even though the value is
// ultimately re-shadowed by the unseq write at the same timestamp.
func TestScenario6_DeletionForcesDescentButIsReshadowed(t *testing.T) {
	seq := &fakeFile{
		stats:    rng(1, 3),
		present:  true,
		modified: true,
		chunks: []fakeChunkSpec{{
			stats:   rng(1, 3),
			version: VersionKey{Generation: 1},
			pages:   []fakePageSpec{{stats: rng(1, 3), points: pts([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3})}},
		}},
	}
	unseq := newFakeFile(rng(2, 4), 2, pts([2]float64{2, 200}, [2]float64{3, 300}, [2]float64{4, 400}))

	got := drain(t, Asc, []FileHandle{seq}, []FileHandle{unseq})
	assertTimestamps(t, got, 1, 2, 3, 4)
	assertValues(t, got, 1, 200, 300, 400)
}

// P1/P2: a value filter never changes which version wins a tied
// timestamp, only whether the winner survives into the output.
func TestValueFilterAppliesAfterShadowing(t *testing.T) {
	seq := newFakeFile(rng(1, 2), 1, pts([2]float64{1, 1}, [2]float64{2, 2}))
	unseq := newFakeFile(rng(2, 2), 2, []Point{{TimestampMs: 2, Value: 999}})

	r := NewSeriesReader(context.Background(), Asc, []FileHandle{seq}, []FileHandle{unseq}, nil, RangeFilter{Min: 0, Max: 5}, nil)
	batch, err := r.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	var got []Point
	for it := batch.Iterator(); it.HasNext(); {
		got = append(got, it.Next())
	}
	// timestamp 2's winner (999, the unseq write) is filtered out, not the
	// timestamp 1 value it never should have been confused with.
	assertTimestamps(t, got, 1)
	assertValues(t, got, 1)
}

// Cancellation is observed on the next tier call, per spec.md §5.
func TestCancellationSurfacesOnNextCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFakeFile(rng(1, 2), 1, pts([2]float64{1, 1}, [2]float64{2, 2}))
	p := NewOverlapPipeline(ctx, Asc, []FileHandle{f}, nil, nil, nil, nil)

	if _, err := p.HasNextFile(); err != nil {
		t.Fatalf("HasNextFile before cancel: %v", err)
	}
	cancel()
	if _, err := p.HasNextChunk(); err == nil {
		t.Fatal("expected cancellation error after ctx cancel")
	}
}

// S5: cancellation asserted between hasNextChunk and hasNextPage surfaces
// on the very next call.
func TestScenario5_CancellationBetweenChunkAndPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFakeFile(rng(1, 2), 1, pts([2]float64{1, 1}, [2]float64{2, 2}))
	p := NewOverlapPipeline(ctx, Asc, []FileHandle{f}, nil, nil, nil, nil)

	if _, err := p.HasNextFile(); err != nil {
		t.Fatalf("HasNextFile: %v", err)
	}
	if _, err := p.HasNextChunk(); err != nil {
		t.Fatalf("HasNextChunk: %v", err)
	}
	cancel()
	if _, err := p.HasNextPage(); err == nil {
		t.Fatal("expected cancellation error from HasNextPage after cancel")
	}
}

// P3: at most one of firstFile/firstChunk/firstPage is set at any
// observable boundary, and IsEmpty reports true only once every tier,
// pool and the merge reader have been drained.
func TestInvariant_AtMostOneCurrentPerTier(t *testing.T) {
	f := newFakeFile(rng(1, 2), 1, pts([2]float64{1, 1}, [2]float64{2, 2}))
	p := NewOverlapPipeline(context.Background(), Asc, []FileHandle{f}, nil, nil, nil, nil)

	assertAtMostOneCurrent := func() {
		t.Helper()
		set := 0
		if p.firstFile != nil {
			set++
		}
		if p.firstChunk != nil {
			set++
		}
		if p.firstPage != nil {
			set++
		}
		if set > 1 {
			t.Fatalf("expected at most one of firstFile/firstChunk/firstPage set, got %d", set)
		}
	}

	if p.IsEmpty() {
		t.Fatal("fresh pipeline over a non-empty file must not report empty")
	}
	assertAtMostOneCurrent()

	hasFile, err := p.HasNextFile()
	if err != nil || !hasFile {
		t.Fatalf("HasNextFile: ok=%v err=%v", hasFile, err)
	}
	assertAtMostOneCurrent()

	hasChunk, err := p.HasNextChunk()
	if err != nil || !hasChunk {
		t.Fatalf("HasNextChunk: ok=%v err=%v", hasChunk, err)
	}
	assertAtMostOneCurrent()

	hasPage, err := p.HasNextPage()
	if err != nil || !hasPage {
		t.Fatalf("HasNextPage: ok=%v err=%v", hasPage, err)
	}
	assertAtMostOneCurrent()

	if _, err := p.NextPage(); err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	p.SkipCurrentPage()
	assertAtMostOneCurrent()

	hasPage, err = p.HasNextPage()
	if err != nil {
		t.Fatalf("HasNextPage: %v", err)
	}
	if hasPage {
		t.Fatal("expected no further pages for a single-page file")
	}
	if !p.IsEmpty() {
		t.Fatal("expected IsEmpty() after draining the only file's only page")
	}
}

// P5: round-trip across mixed seq/unseq files reads back the same N
// points, correctly shadowed, in reverse order for ASC vs DESC.
func TestInvariant_RoundTripAscDescSymmetry(t *testing.T) {
	newFiles := func() ([]FileHandle, []FileHandle) {
		seq := newFakeFile(rng(1, 5), 1, pts(
			[2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3}, [2]float64{4, 4}, [2]float64{5, 5},
		))
		unseq := newFakeFile(rng(3, 3), 2, []Point{{TimestampMs: 3, Value: 999}})
		return []FileHandle{seq}, []FileHandle{unseq}
	}

	seqAsc, unseqAsc := newFiles()
	asc := drain(t, Asc, seqAsc, unseqAsc)
	assertTimestamps(t, asc, 1, 2, 3, 4, 5)
	assertValues(t, asc, 1, 2, 999, 4, 5)

	seqDesc, unseqDesc := newFiles()
	desc := drain(t, Desc, seqDesc, unseqDesc)
	assertTimestamps(t, desc, 5, 4, 3, 2, 1)
	assertValues(t, desc, 5, 4, 999, 2, 1)

	if len(asc) != len(desc) {
		t.Fatalf("expected equal point counts, got %d asc vs %d desc", len(asc), len(desc))
	}
	for i := range asc {
		mirror := desc[len(desc)-1-i]
		if asc[i].TimestampMs != mirror.TimestampMs || asc[i].Value != mirror.Value {
			t.Fatalf("asc[%d]=%+v does not mirror desc[%d]=%+v", i, asc[i], len(desc)-1-i, mirror)
		}
	}
}

// P6: running the cascade again with an unchanged frontier (no new
// HasNextPage call observes fresh overlap) must not re-unpack or change
// what is already buffered.
func TestInvariant_CascadeIdempotentAtFixedFrontier(t *testing.T) {
	seqFile := &fakeFile{
		stats:   rng(1, 9),
		present: true,
		chunks: []fakeChunkSpec{{
			stats:   rng(1, 9),
			version: VersionKey{Generation: 1},
			pages: []fakePageSpec{
				{stats: rng(1, 3), points: pts([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3})},
				{stats: rng(4, 6), points: pts([2]float64{4, 4}, [2]float64{5, 5}, [2]float64{6, 6})},
			},
		}},
	}
	unseqFile := newFakeFile(rng(5, 5), 2, []Point{{TimestampMs: 5, Value: 55}})

	p := NewOverlapPipeline(context.Background(), Asc, []FileHandle{seqFile}, []FileHandle{unseqFile}, nil, nil, nil)

	if _, err := p.HasNextFile(); err != nil {
		t.Fatalf("HasNextFile: %v", err)
	}
	if _, err := p.HasNextChunk(); err != nil {
		t.Fatalf("HasNextChunk: %v", err)
	}

	// Drive HasNextPage twice in a row with no intervening consumption;
	// the second call must observe the same frontier and be a no-op,
	// reporting the same page as ready rather than re-exploding state.
	has1, err := p.HasNextPage()
	if err != nil || !has1 {
		t.Fatalf("HasNextPage (1st): ok=%v err=%v", has1, err)
	}
	firstStats := p.CurrentPageStatistics()

	has2, err := p.HasNextPage()
	if err != nil || !has2 {
		t.Fatalf("HasNextPage (2nd, idempotent): ok=%v err=%v", has2, err)
	}
	secondStats := p.CurrentPageStatistics()

	if firstStats != secondStats {
		t.Fatalf("expected the same current page across idempotent HasNextPage calls, got %+v then %+v", firstStats, secondStats)
	}
}

// Calling HasNextFile with residual chunk data is a protocol violation.
func TestProtocolMisuseOnResidualData(t *testing.T) {
	f1 := newFakeFile(rng(1, 2), 1, pts([2]float64{1, 1}, [2]float64{2, 2}))
	f2 := newFakeFile(rng(3, 4), 1, pts([2]float64{3, 3}, [2]float64{4, 4}))
	p := NewOverlapPipeline(context.Background(), Asc, []FileHandle{f1, f2}, nil, nil, nil, nil)

	if _, err := p.HasNextFile(); err != nil {
		t.Fatalf("HasNextFile: %v", err)
	}
	if _, err := p.HasNextChunk(); err != nil {
		t.Fatalf("HasNextChunk: %v", err)
	}
	// firstChunk is now set; calling HasNextFile again is a misuse.
	if _, err := p.HasNextFile(); err == nil {
		t.Fatal("expected protocol misuse error")
	}
}

// IsPageOverlapped's merge-reader check must only flag a protocol
// violation when the merge reader's current timestamp has not yet passed
// the page's trailing frontier (EndTime under ASC) — a later timestamp is
// ordinary unresolved state, not a violation.
func TestIsPageOverlapped_MergeReaderFrontier(t *testing.T) {
	newPipeline := func() *OverlapPipeline {
		p := NewOverlapPipeline(context.Background(), Asc, nil, nil, nil, nil, nil)
		p.firstPage = newPageCursor(&fakePage{stats: rng(5, 10)}, VersionKey{Generation: 1}, true, false)
		return p
	}

	t.Run("merge timestamp past the frontier is not a violation", func(t *testing.T) {
		p := newPipeline()
		p.merge.addReader(NewBatch(Asc, []Point{{TimestampMs: 12, Value: 1}}).Iterator(), VersionKey{Generation: 2}, 12)

		overlapped, err := p.IsPageOverlapped()
		if err != nil {
			t.Fatalf("IsPageOverlapped: %v", err)
		}
		if overlapped {
			t.Fatal("expected no overlap: merge holds only a timestamp past the page's frontier")
		}
	})

	t.Run("merge timestamp at or before the frontier is a protocol violation", func(t *testing.T) {
		p := newPipeline()
		p.merge.addReader(NewBatch(Asc, []Point{{TimestampMs: 8, Value: 1}}).Iterator(), VersionKey{Generation: 2}, 8)

		if _, err := p.IsPageOverlapped(); err == nil {
			t.Fatal("expected protocol misuse error: merge reader holds unresolved overlap")
		}
	})
}
