package seriesreader

import (
	"context"
	"fmt"

	stalkererrors "github.com/xtxerr/stalker/internal/errors"
)

// OverlapPipeline is the four-tier lazy unpacking pipeline of spec.md §4.5:
// file → chunk → page → point, descending into the next tier only for
// items that actually overlap a peer, and cascading back up (files →
// metadata → chunks → pages) whenever a downstream discovery — an unseq
// page surfacing mid-merge, say — reveals more overlap than was visible
// when the current tier was last advanced.
//
// At most one "current" item is held per tier at a time (firstFile,
// firstChunk, firstPage — invariant 1). Tiers not yet unpacked into the
// current tier's buffers are guaranteed non-overlapping with the current
// front as of the last cascade (invariant 2); unpacking can make them
// overlap later items, which is exactly what forces the cascade back
// downward through the merge reader.
//
// firstFile is a loaded SeriesMeta rather than a bare FileHandle: file and
// per-series-metadata ranges coincide for the purposes this pipeline cares
// about, and collapsing the two avoids re-deriving, at chunk-tier cascade
// time, overlap decisions the file tier already settled for its own
// candidate. See DESIGN.md for the full rationale.
type OverlapPipeline struct {
	ctx    context.Context
	dir    Direction
	policy OrderPolicy

	files *fileCursor

	timeFilter  *TimeRangeFilter
	valueFilter Filter
	telemetry   *Telemetry

	// file tier
	firstFile *SeriesMeta

	// metadata buffers feeding the chunk tier
	seqMeta   *seqQueue[SeriesMeta]
	unseqMeta *orderHeap[SeriesMeta]

	// chunk tier
	chunkPool  *orderHeap[ChunkMeta]
	firstChunk *ChunkMeta

	// page tier
	pageSeq   *seqQueue[*pageCursor]
	pageUnseq *orderHeap[*pageCursor]
	firstPage *pageCursor

	// point tier: the priority merge reader and whatever it has already
	// assembled into a ready-to-return overlapped batch.
	merge       *mergeReader
	cachedBatch *Batch
}

// NewOverlapPipeline builds a pipeline over one series' sequential and
// unsequential file populations. seqFiles must already be ordered
// ascending by start time (spec.md §4.4); unsequential files may be given
// in any order. telemetry may be nil.
func NewOverlapPipeline(ctx context.Context, dir Direction, seqFiles, unseqFiles []FileHandle, timeFilter *TimeRangeFilter, valueFilter Filter, telemetry *Telemetry) *OverlapPipeline {
	policy := dir.Policy()
	p := &OverlapPipeline{
		ctx:         ctx,
		dir:         dir,
		policy:      policy,
		files:       newFileCursor(dir, seqFiles, unseqFiles),
		timeFilter:  timeFilter,
		valueFilter: valueFilter,
		telemetry:   telemetry,
		seqMeta:     newSeqQueue[SeriesMeta](dir),
		pageSeq:     newSeqQueue[*pageCursor](dir),
		merge:       newMergeReader(dir),
	}
	p.unseqMeta = newOrderHeap(policy, func(m SeriesMeta) int64 { return policy.OrderTime(m.Stats) })
	p.chunkPool = newOrderHeap(policy, func(c ChunkMeta) int64 { return policy.OrderTime(c.Stats) })
	p.pageUnseq = newOrderHeap(policy, func(c *pageCursor) int64 { return policy.OrderTime(c.statistics()) })
	return p
}

// checkCancelled implements spec.md §5's only suspension/cancellation
// point: hasNextFile, hasNextChunk and hasNextPage each observe it on
// entry.
func (p *OverlapPipeline) checkCancelled() error {
	if p.ctx == nil {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", stalkererrors.ErrQueryCancelled, err)
	}
	return nil
}

func protocolMisuse(what string) error {
	return fmt.Errorf("%w: %s", stalkererrors.ErrProtocolMisuse, what)
}

// ---------------------------------------------------------------------------
// File tier
// ---------------------------------------------------------------------------

// hasResidualChunkOrPageData reports whether anything downstream of the
// file tier is still holding data — the precondition HasNextFile enforces
// per spec.md §4.5.1.
func (p *OverlapPipeline) hasResidualChunkOrPageData() bool {
	return p.firstChunk != nil || p.chunkPool.Len() > 0 || p.hasResidualPageData()
}

// HasNextFile ensures firstFile is populated with the next file-tier
// candidate, chosen from whichever tier OrderPolicy prefers when both have
// an unconsumed head; it drops and retries files whose series is absent
// (spec.md §4.4's LazyFileCursor contract). Returns false once both file
// populations are drained.
func (p *OverlapPipeline) HasNextFile() (bool, error) {
	if err := p.checkCancelled(); err != nil {
		return false, err
	}
	if p.hasResidualChunkOrPageData() {
		return false, protocolMisuse("hasNextFile called with residual chunk/page data")
	}
	if p.firstFile != nil {
		return true, nil
	}
	for {
		hasSeq := p.files.hasNextSeq()
		hasUnseq := p.files.hasNextUnseq()
		if !hasSeq && !hasUnseq {
			return false, nil
		}
		var isSeq bool
		switch {
		case hasSeq && !hasUnseq:
			isSeq = true
		case !hasSeq && hasUnseq:
			isSeq = false
		default:
			isSeq = p.policy.PreferSeq(p.files.peekFrontSeq().Stats(), p.files.peekFrontUnseq().Stats())
		}
		fh := p.files.loadFront(isSeq)
		meta, ok, err := p.loadSeriesMeta(fh, isSeq)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		p.firstFile = &meta
		return true, nil
	}
}

// CurrentFileStatistics returns the statistics of the current file-tier
// candidate. Callers must have checked HasNextFile first.
func (p *OverlapPipeline) CurrentFileStatistics() Stats { return p.firstFile.Stats }

// CurrentFileModified reports whether deletions may apply to the current
// file-tier candidate.
func (p *OverlapPipeline) CurrentFileModified() bool { return p.firstFile.IsModified }

// SkipCurrentFile discards the current file-tier candidate without
// descending into its chunks — the statistics-only shortcut of spec.md §4.5
// for queries that only need aggregates and found no overlap or deletion.
func (p *OverlapPipeline) SkipCurrentFile() { p.firstFile = nil }

// IsFileOverlapped reports whether the current file-tier candidate's range
// overlaps the nearest unconsumed file in the other population. Checking
// only the nearest candidate suffices: each population is internally
// ordered by OrderTime, so if the nearest doesn't overlap, none further out
// can either.
func (p *OverlapPipeline) IsFileOverlapped() (bool, error) {
	if p.firstFile == nil {
		return false, protocolMisuse("isFileOverlapped called with no current file")
	}
	stats := p.firstFile.Stats
	if p.files.hasNextSeq() && p.policy.IsOverlappedStats(stats, p.files.peekFrontSeq().Stats()) {
		return true, nil
	}
	if p.files.hasNextUnseq() && p.policy.IsOverlappedStats(stats, p.files.peekFrontUnseq().Stats()) {
		return true, nil
	}
	return false, nil
}

func (p *OverlapPipeline) loadSeriesMeta(fh FileHandle, isSeq bool) (SeriesMeta, bool, error) {
	meta, ok, err := fh.LoadSeriesMeta(p.timeFilter)
	if err != nil {
		return SeriesMeta{}, false, fmt.Errorf("%w: %v", stalkererrors.ErrSeriesLoadFailed, err)
	}
	if !ok {
		return SeriesMeta{}, false, nil
	}
	meta.IsSeq = isSeq
	if isSeq {
		meta.IsModified = meta.IsModified || fh.Modified()
	} else {
		// Open question per spec.md §9: unseq metadata is unconditionally
		// marked modified, bypassing statistic-only shortcuts even when no
		// deletion exists. Specified behavior, not a bug — the cheap
		// correctness shield against deletions inside unseq files.
		meta.IsModified = true
	}
	return meta, true, nil
}

// ---------------------------------------------------------------------------
// Chunk tier
// ---------------------------------------------------------------------------

func (p *OverlapPipeline) hasResidualPageData() bool {
	return p.firstPage != nil || p.cachedBatch != nil ||
		p.pageSeq.Len() > 0 || p.pageUnseq.Len() > 0 ||
		p.merge.hasNextTimeValuePair()
}

// HasNextChunk ensures firstChunk is populated, descending from whichever
// file-tier candidate is current (the "initial descent" of spec.md §4.5.2)
// or continuing from the chunk pool left over by a previously drained page
// tier. Either way, once a chunk is chosen its own frontier is cascaded
// again so anything overlapping specifically that chunk — not just the
// file it came from — gets pulled in before it's handed to the caller.
func (p *OverlapPipeline) HasNextChunk() (bool, error) {
	if err := p.checkCancelled(); err != nil {
		return false, err
	}
	if p.hasResidualPageData() {
		return false, protocolMisuse("hasNextChunk called with residual page data")
	}
	if p.firstChunk != nil {
		return true, nil
	}
	if p.firstFile != nil {
		frontier := p.policy.OverlapCheckTime(p.firstFile.Stats)
		if err := p.cascadeFilesToChunks(frontier); err != nil {
			return false, err
		}
	}
	if p.chunkPool.Len() == 0 {
		return false, nil
	}
	c := p.chunkPool.pop()
	p.firstChunk = &c
	if err := p.cascadeFilesToChunks(p.policy.OverlapCheckTime(c.Stats)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *OverlapPipeline) CurrentChunkStatistics() Stats { return p.firstChunk.Stats }

func (p *OverlapPipeline) CurrentChunkModified() bool { return p.firstChunk.IsModified }

func (p *OverlapPipeline) SkipCurrentChunk() { p.firstChunk = nil }

// IsChunkOverlapped reports whether the current chunk overlaps the nearest
// unconsumed chunk in the pool.
func (p *OverlapPipeline) IsChunkOverlapped() (bool, error) {
	if p.firstChunk == nil {
		return false, protocolMisuse("isChunkOverlapped called with no current chunk")
	}
	if p.chunkPool.Len() > 0 && p.policy.IsOverlappedStats(p.firstChunk.Stats, p.chunkPool.peek().Stats) {
		return true, nil
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Page tier
// ---------------------------------------------------------------------------

// HasNextPage implements spec.md §4.5.3. It first drains whatever the
// merge reader or a cached construction already has ready, then — if
// firstPage is set but overlapped by a peer — drives the overlap-batch
// construction of §4.5.5, and only once nothing is overlapped does it
// report a plain firstPage ready for NextPage. When firstPage is unset it
// is picked fresh from the page pools, cascading chunks into pages at its
// own frontier, and the whole cycle repeats until a non-overlapping
// firstPage is found or the pools drain.
func (p *OverlapPipeline) HasNextPage() (bool, error) {
	if err := p.checkCancelled(); err != nil {
		return false, err
	}
	for {
		if p.cachedBatch != nil {
			return true, nil
		}
		if p.merge.hasNextTimeValuePair() {
			batch, err := p.constructOverlapBatch()
			if err != nil {
				return false, err
			}
			if batch != nil && batch.Len() > 0 {
				p.cachedBatch = batch
				return true, nil
			}
			continue
		}
		if p.firstPage != nil {
			overlapped, err := p.isFirstPageOverlapped()
			if err != nil {
				return false, err
			}
			if !overlapped {
				return true, nil
			}
			batch, err := p.constructOverlapBatch()
			if err != nil {
				return false, err
			}
			if batch != nil && batch.Len() > 0 {
				p.cachedBatch = batch
				return true, nil
			}
			continue
		}

		if p.firstChunk != nil {
			if err := p.cascadeFilesToPages(p.policy.OverlapCheckTime(p.firstChunk.Stats)); err != nil {
				return false, err
			}
		}
		p.firstPage = p.pickFromPagePool()
		if p.firstPage == nil {
			return false, nil
		}
		if err := p.cascadeFilesToPages(p.policy.OverlapCheckTime(p.firstPage.statistics())); err != nil {
			return false, err
		}
	}
}

func (p *OverlapPipeline) CurrentPageStatistics() Stats { return p.firstPage.statistics() }

func (p *OverlapPipeline) CurrentPageModified() bool { return p.firstPage.isModified() }

func (p *OverlapPipeline) SkipCurrentPage() { p.firstPage = nil }

// IsPageOverlapped must be called only after HasNextPage. If the merge
// reader still holds data whose timestamp falls inside the current page's
// range, overlapped data should already have been consumed — that's a
// protocol violation, not a normal "yes it overlaps" answer.
func (p *OverlapPipeline) IsPageOverlapped() (bool, error) {
	if p.cachedBatch != nil {
		return true, nil
	}
	if p.firstPage == nil {
		return false, protocolMisuse("isPageOverlapped called with no current page")
	}
	if p.merge.hasNextTimeValuePair() {
		t := p.merge.currentTimeValuePair().TimestampMs
		if !p.policy.Excess(t, p.policy.OverlapCheckTime(p.firstPage.statistics())) {
			return false, protocolMisuse("merge reader holds unresolved overlap for the current page")
		}
	}
	if p.pageUnseq.Len() > 0 && p.policy.IsOverlappedStats(p.firstPage.statistics(), p.pageUnseq.peek().statistics()) {
		return true, nil
	}
	return false, nil
}

// NextPage returns the next ready batch: the cached overlapped batch if
// one was constructed, otherwise firstPage decoded whole with the value
// filter pushed down (safe only because a non-overlapped page's values
// need no shadowing).
func (p *OverlapPipeline) NextPage() (*Batch, error) {
	if p.cachedBatch != nil {
		b := p.cachedBatch
		p.cachedBatch = nil
		return b, nil
	}
	if p.firstPage == nil {
		return nil, protocolMisuse("nextPage called with no ready batch")
	}
	if p.valueFilter != nil {
		p.firstPage.setFilter(p.valueFilter)
	}
	batch, err := p.firstPage.emit(p.dir)
	if err != nil {
		return nil, err
	}
	p.firstPage = nil
	p.telemetry.addPoints(batch.Len())
	return batch, nil
}

// isFirstPageOverlapped implements spec.md §4.5.3 step 5. Its merge-reader
// branch intentionally uses a literal, direction-agnostic strict ">"
// against StartTime rather than OrderPolicy.Excess — an asymmetry spec.md
// §9 calls out explicitly as specified behavior to replicate, not rewrite.
func (p *OverlapPipeline) isFirstPageOverlapped() (bool, error) {
	stats := p.firstPage.statistics()
	if p.pageSeq.Len() > 0 && p.policy.IsOverlappedStats(stats, p.pageSeq.front().statistics()) {
		return true, nil
	}
	if p.merge.hasNextTimeValuePair() {
		headTs := p.merge.currentTimeValuePair().TimestampMs
		if headTs > stats.StartTime {
			return true, nil
		}
	}
	if p.pageUnseq.Len() > 0 && p.policy.IsOverlappedStats(stats, p.pageUnseq.peek().statistics()) {
		return true, nil
	}
	return false, nil
}

func (p *OverlapPipeline) pickFromPagePool() *pageCursor {
	hasSeq := p.pageSeq.Len() > 0
	hasUnseq := p.pageUnseq.Len() > 0
	switch {
	case !hasSeq && !hasUnseq:
		return nil
	case hasSeq && !hasUnseq:
		return p.pageSeq.popFront()
	case !hasSeq && hasUnseq:
		return p.pageUnseq.pop()
	default:
		if p.policy.PreferSeq(p.pageSeq.front().statistics(), p.pageUnseq.peek().statistics()) {
			return p.pageSeq.popFront()
		}
		return p.pageUnseq.pop()
	}
}

// ---------------------------------------------------------------------------
// Overlap-batch construction (spec.md §4.5.5)
// ---------------------------------------------------------------------------

// constructOverlapBatch seeds the merge reader from firstPage (if any new
// overlap was just discovered) and then drains it as far as it's safe to
// go without skipping past a peer that hasn't been merged in yet, cascading
// further unpacking whenever the point it's about to emit reveals more
// overlap. The clamp in the inner loop ensures emission never crosses into
// a page that begins inside the region already being merged — that page
// must be folded into the merge first so its values can shadow the
// current ones where timestamps tie.
func (p *OverlapPipeline) constructOverlapBatch() (*Batch, error) {
	if p.firstPage != nil {
		if err := p.seedMergeFromFirstPage(); err != nil {
			return nil, err
		}
	}

	asm := newBatchAssembler(p.dir, p.valueFilter)
	for p.merge.hasNextTimeValuePair() {
		pageEnd := p.merge.getCurrentReadStopTime()
		if p.firstPage != nil {
			pageEnd = p.policy.ClampFrontier(pageEnd, p.firstPage.statistics())
		}
		if p.pageSeq.Len() > 0 {
			pageEnd = p.policy.ClampFrontier(pageEnd, p.pageSeq.front().statistics())
		}

		hitFrontier := false
		for p.merge.hasNextTimeValuePair() {
			t := p.merge.currentTimeValuePair().TimestampMs
			if !p.policy.Excess(t, pageEnd) {
				break
			}
			hasDownstream := asm.hasData() || p.firstPage != nil || p.pageSeq.Len() > 0
			if hasDownstream {
				hitFrontier = true
				break
			}
			pageEnd = p.merge.getCurrentReadStopTime()
		}
		if hitFrontier || !p.merge.hasNextTimeValuePair() {
			break
		}

		t := p.merge.currentTimeValuePair().TimestampMs
		if err := p.cascadeFilesToChunks(t); err != nil {
			return nil, err
		}
		if err := p.unpackChunksIntoPages(t); err != nil {
			return nil, err
		}
		if err := p.pullOverlappingUnseqPagesAt(t); err != nil {
			return nil, err
		}

		if p.firstPage != nil {
			if p.policy.Excess(t, p.policy.OverlapCheckTime(p.firstPage.statistics())) {
				break
			}
			if err := p.pushPageIntoMerge(p.firstPage); err != nil {
				return nil, err
			}
			p.firstPage = nil
		}

		if p.pageSeq.Len() > 0 {
			front := p.pageSeq.front()
			if p.policy.Excess(t, p.policy.OverlapCheckTime(front.statistics())) {
				break
			}
			pf := p.pageSeq.popFront()
			if err := p.pushPageIntoMerge(pf); err != nil {
				return nil, err
			}
		}

		if p.merge.hasNextTimeValuePair() {
			pt := p.merge.nextTimeValuePair()
			if asm.add(pt) {
				p.telemetry.addPoint()
			}
		}
	}
	return asm.buildOrNil()
}

// seedMergeFromFirstPage implements §4.5.5 step 1: push every
// currently-overlapping unseq page into the merge reader at firstPage's
// trailing frontier (or the merger's existing stop time, if it already has
// data), and push firstPage itself if it's unseq and falls within that
// frontier too.
func (p *OverlapPipeline) seedMergeFromFirstPage() error {
	frontier := p.policy.OverlapCheckTime(p.firstPage.statistics())
	if p.merge.hasNextTimeValuePair() {
		frontier = p.merge.getCurrentReadStopTime()
	}
	if err := p.pullOverlappingUnseqPagesAt(frontier); err != nil {
		return err
	}
	if p.firstPage != nil && !p.firstPage.isSeq && p.policy.IsOverlappedTime(frontier, p.firstPage.statistics()) {
		if err := p.pushPageIntoMerge(p.firstPage); err != nil {
			return err
		}
		p.firstPage = nil
	}
	return nil
}

func (p *OverlapPipeline) pullOverlappingUnseqPagesAt(frontier int64) error {
	for p.pageUnseq.Len() > 0 && p.policy.IsOverlappedTime(frontier, p.pageUnseq.peek().statistics()) {
		pc := p.pageUnseq.pop()
		if err := p.pushPageIntoMerge(pc); err != nil {
			return err
		}
	}
	return nil
}

func (p *OverlapPipeline) pushPageIntoMerge(pc *pageCursor) error {
	batch, err := pc.emit(p.dir)
	if err != nil {
		return err
	}
	p.merge.addReader(batch.Iterator(), pc.version, p.policy.OverlapCheckTime(pc.statistics()))
	return nil
}

// ---------------------------------------------------------------------------
// Cascade unpacking (spec.md §4.5.4)
// ---------------------------------------------------------------------------

// cascadeFilesToChunks performs the first two cascade steps — files into
// metadata, metadata into chunks — at the given frontier.
func (p *OverlapPipeline) cascadeFilesToChunks(frontier int64) error {
	if err := p.unpackFilesIntoMetadata(frontier); err != nil {
		return err
	}
	return p.unpackMetadataIntoChunks(frontier)
}

// cascadeFilesToPages runs the full three-step cascade down to pages.
func (p *OverlapPipeline) cascadeFilesToPages(frontier int64) error {
	if err := p.cascadeFilesToChunks(frontier); err != nil {
		return err
	}
	return p.unpackChunksIntoPages(frontier)
}

// unpackFilesIntoMetadata is idempotent by construction (spec.md P6): once
// every file overlapping frontier has been consumed from the fileCursor, a
// repeat call sees no front file left that overlaps and does nothing.
func (p *OverlapPipeline) unpackFilesIntoMetadata(frontier int64) error {
	for p.files.hasNextUnseq() && p.policy.IsOverlappedTime(frontier, p.files.peekFrontUnseq().Stats()) {
		fh := p.files.loadFront(false)
		meta, ok, err := p.loadSeriesMeta(fh, false)
		if err != nil {
			return err
		}
		if ok {
			p.unseqMeta.push(meta)
		}
	}
	for p.files.hasNextSeq() && p.policy.IsOverlappedTime(frontier, p.files.peekFrontSeq().Stats()) {
		fh := p.files.loadFront(true)
		meta, ok, err := p.loadSeriesMeta(fh, true)
		if err != nil {
			return err
		}
		if ok {
			p.seqMeta.insertAll([]SeriesMeta{meta})
		}
	}
	return nil
}

func (p *OverlapPipeline) unpackMetadataIntoChunks(frontier int64) error {
	if p.firstFile != nil && p.policy.IsOverlappedTime(frontier, p.firstFile.Stats) {
		meta := *p.firstFile
		p.firstFile = nil
		if err := p.explodeMetaIntoChunks(meta); err != nil {
			return err
		}
	}
	for {
		popped := false
		if p.seqMeta.Len() > 0 && p.policy.IsOverlappedTime(frontier, p.seqMeta.front().Stats) {
			m := p.seqMeta.popFront()
			if err := p.explodeMetaIntoChunks(m); err != nil {
				return err
			}
			popped = true
		}
		if p.unseqMeta.Len() > 0 && p.policy.IsOverlappedTime(frontier, p.unseqMeta.peek().Stats) {
			m := p.unseqMeta.pop()
			if err := p.explodeMetaIntoChunks(m); err != nil {
				return err
			}
			popped = true
		}
		if !popped {
			return nil
		}
	}
}

func (p *OverlapPipeline) unpackChunksIntoPages(frontier int64) error {
	if p.firstChunk != nil && p.policy.IsOverlappedTime(frontier, p.firstChunk.Stats) {
		c := *p.firstChunk
		p.firstChunk = nil
		if err := p.explodeChunkIntoPages(c); err != nil {
			return err
		}
	}
	for p.chunkPool.Len() > 0 && p.policy.IsOverlappedTime(frontier, p.chunkPool.peek().Stats) {
		c := p.chunkPool.pop()
		if err := p.explodeChunkIntoPages(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *OverlapPipeline) explodeMetaIntoChunks(m SeriesMeta) error {
	chunks, err := m.LoadChunks()
	if err != nil {
		return fmt.Errorf("%w: %v", stalkererrors.ErrSeriesLoadFailed, err)
	}
	for _, c := range chunks {
		c.IsSeq = m.IsSeq
		if m.IsModified {
			c.IsModified = true
		}
		p.telemetry.addChunk(c.IsSeq)
		p.chunkPool.push(c)
	}
	return nil
}

func (p *OverlapPipeline) explodeChunkIntoPages(c ChunkMeta) error {
	pages, err := c.LoadPages(p.timeFilter)
	if err != nil {
		return fmt.Errorf("%w: %v", stalkererrors.ErrSeriesLoadFailed, err)
	}
	cursors := make([]*pageCursor, len(pages))
	for i, pd := range pages {
		cursors[i] = newPageCursor(pd, c.Version, c.IsSeq, c.IsModified)
	}
	if c.IsSeq {
		p.pageSeq.insertAll(cursors)
		return nil
	}
	for _, pc := range cursors {
		p.pageUnseq.push(pc)
	}
	return nil
}

// IsEmpty reports whether every tier buffer, pool and the merge reader are
// all empty — the state a non-fatal exhaustion must leave the pipeline in,
// per spec.md §7.
func (p *OverlapPipeline) IsEmpty() bool {
	return p.firstFile == nil && p.firstChunk == nil && p.firstPage == nil && p.cachedBatch == nil &&
		!p.files.hasNextSeq() && !p.files.hasNextUnseq() &&
		p.seqMeta.Len() == 0 && p.unseqMeta.Len() == 0 &&
		p.chunkPool.Len() == 0 &&
		p.pageSeq.Len() == 0 && p.pageUnseq.Len() == 0 &&
		!p.merge.hasNextTimeValuePair()
}

// ---------------------------------------------------------------------------
// SeriesReader: the whole-series convenience driver
// ---------------------------------------------------------------------------

// SeriesReader drives an OverlapPipeline's nested file/chunk/page tiers to
// completion for a caller that wants the series' full contents rather than
// incremental, statistics-shortcutting access to the tiers themselves.
// Query paths that only need aggregates should drive the OverlapPipeline
// directly and call SkipCurrentFile/SkipCurrentChunk/SkipCurrentPage
// whenever CurrentXModified is false and IsXOverlapped is false, per
// spec.md §4.5's whole reason for exposing tier-level inspection.
type SeriesReader struct {
	dir      Direction
	pipeline *OverlapPipeline
}

// NewSeriesReader builds a pipeline over the given sequential and
// unsequential file populations and wraps it for whole-series draining.
func NewSeriesReader(ctx context.Context, dir Direction, seqFiles, unseqFiles []FileHandle, timeFilter *TimeRangeFilter, valueFilter Filter, telemetry *Telemetry) *SeriesReader {
	return &SeriesReader{
		dir:      dir,
		pipeline: NewOverlapPipeline(ctx, dir, seqFiles, unseqFiles, timeFilter, valueFilter, telemetry),
	}
}

// Pipeline exposes the underlying OverlapPipeline for callers that want
// tier-level statistics shortcuts instead of a full drain.
func (r *SeriesReader) Pipeline() *OverlapPipeline { return r.pipeline }

// Drain consumes the entire pipeline into one Batch ordered by r.dir.
func (r *SeriesReader) Drain() (*Batch, error) {
	asm := newBatchAssembler(r.dir, nil)
	p := r.pipeline
	for {
		hasFile, err := p.HasNextFile()
		if err != nil {
			return nil, err
		}
		if !hasFile {
			break
		}
		for {
			hasChunk, err := p.HasNextChunk()
			if err != nil {
				return nil, err
			}
			if !hasChunk {
				break
			}
			for {
				hasPage, err := p.HasNextPage()
				if err != nil {
					return nil, err
				}
				if !hasPage {
					break
				}
				batch, err := p.NextPage()
				if err != nil {
					return nil, err
				}
				for it := batch.Iterator(); it.HasNext(); {
					asm.add(it.Next())
				}
			}
		}
	}
	return asm.build(), nil
}
