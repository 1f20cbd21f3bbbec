package parquet

import (
	"fmt"
	"sync"

	"github.com/xtxerr/stalker/internal/storage/seriesreader"
	"github.com/xtxerr/stalker/internal/storage/types"
)

// SeriesFile adapts one flushed sample Parquet file, plus its sidecar
// manifest, into a seriesreader.FileHandle for a single series. Flushed
// tier files are written once by SampleWriter and never edited in
// place — retention and compaction replace files wholesale rather than
// mutating them — so Modified always reports false here.
//
// A file's rows interleave every series written into it (manifest.go),
// so loading any one page still means reading the page's whole global
// row span and discarding rows that belong to other series.
type SeriesFile struct {
	path     string
	manifest *Manifest
	series   *SeriesManifest
	key      string

	once sync.Once
	rows []types.Sample
	err  error
}

// OpenSeriesFile loads dataPath's sidecar manifest and returns a
// seriesreader.FileHandle scoped to one series. ok is false when the
// series never appears in this file's manifest, the ordinary case for
// most files in a query's time range.
func OpenSeriesFile(dataPath, namespace, target, poller string) (*SeriesFile, bool, error) {
	m, err := LoadManifest(dataPath)
	if err != nil {
		return nil, false, fmt.Errorf("load manifest: %w", err)
	}
	key := namespace + "/" + target + "/" + poller
	sm, ok := m.Series[key]
	if !ok {
		return nil, false, nil
	}
	return &SeriesFile{path: dataPath, manifest: m, series: sm, key: key}, true, nil
}

// Stats reports this series' range within the file.
func (f *SeriesFile) Stats() seriesreader.Stats {
	return seriesreader.Stats{StartTime: f.series.StartTime, EndTime: f.series.EndTime, Count: f.series.Count}
}

// Modified always reports false: flushed files carry no in-place deletes.
func (f *SeriesFile) Modified() bool { return false }

// LoadSeriesMeta builds the lazy chunk list for this series from the
// manifest's per-chunk breakdown, deferring the Parquet read itself
// until a chunk's pages are actually requested.
func (f *SeriesFile) LoadSeriesMeta(_ *seriesreader.TimeRangeFilter) (seriesreader.SeriesMeta, bool, error) {
	stats := f.Stats()
	return seriesreader.NewSeriesMeta(stats, false, false, f.loadChunks), true, nil
}

func (f *SeriesFile) loadChunks() ([]seriesreader.ChunkMeta, error) {
	out := make([]seriesreader.ChunkMeta, 0, len(f.series.PerChunk))
	for i, cs := range f.series.PerChunk {
		if cs == nil {
			continue
		}
		if i >= len(f.manifest.Chunks) {
			return nil, fmt.Errorf("series manifest chunk %d out of range (file has %d)", i, len(f.manifest.Chunks))
		}
		chunkSpan := f.manifest.Chunks[i]
		version := seriesreader.VersionKey{Generation: f.manifest.Generation, ChunkOffset: chunkSpan.RowOffset}
		stats := seriesreader.Stats{StartTime: cs.StartTime, EndTime: cs.EndTime, Count: cs.Count}
		out = append(out, seriesreader.NewChunkMeta(stats, false, false, version, f.loadPages(chunkSpan)))
	}
	return out, nil
}

// loadPages returns a loader over one chunk's page spans. It reads the
// whole file once per SeriesFile (cached via sync.Once) rather than
// once per chunk, since every chunk's pages live in the same file and
// the file has no cheaper row-range read path than a full scan.
func (f *SeriesFile) loadPages(chunkSpan ChunkSpan) func(*seriesreader.TimeRangeFilter) ([]seriesreader.PageDecoder, error) {
	return func(timeFilter *seriesreader.TimeRangeFilter) ([]seriesreader.PageDecoder, error) {
		rows, err := f.allRows()
		if err != nil {
			return nil, err
		}
		decs := make([]seriesreader.PageDecoder, 0, len(chunkSpan.Pages))
		for _, pageSpan := range chunkSpan.Pages {
			pts := f.pagePoints(rows, pageSpan, timeFilter)
			if len(pts) == 0 {
				continue
			}
			decs = append(decs, seriesreader.NewStaticPage(pageStats(pts), false, pts))
		}
		return decs, nil
	}
}

func (f *SeriesFile) pagePoints(rows []types.Sample, pageSpan PageSpan, timeFilter *seriesreader.TimeRangeFilter) []seriesreader.Point {
	end := pageSpan.RowOffset + pageSpan.RowCount
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	if pageSpan.RowOffset >= end {
		return nil
	}
	pts := make([]seriesreader.Point, 0, pageSpan.RowCount)
	for _, s := range rows[pageSpan.RowOffset:end] {
		if s.Key() != f.key || !s.Valid {
			continue
		}
		if timeFilter != nil && !timeFilter.Contains(s.TimestampMs) {
			continue
		}
		pts = append(pts, seriesreader.Point{TimestampMs: s.TimestampMs, Value: s.Value})
	}
	return pts
}

// pageStats derives a page's own range and count from its filtered
// points rather than dividing the chunk's declared range by page count,
// since a time filter or an interleaved-series split can leave a page
// narrower than its nominal span.
func pageStats(pts []seriesreader.Point) seriesreader.Stats {
	if len(pts) == 0 {
		return seriesreader.Stats{}
	}
	start, end := pts[0].TimestampMs, pts[0].TimestampMs
	for _, p := range pts {
		if p.TimestampMs < start {
			start = p.TimestampMs
		}
		if p.TimestampMs > end {
			end = p.TimestampMs
		}
	}
	return seriesreader.Stats{StartTime: start, EndTime: end, Count: int64(len(pts))}
}

func (f *SeriesFile) allRows() ([]types.Sample, error) {
	f.once.Do(func() {
		reader, err := NewSampleReader(f.path)
		if err != nil {
			f.err = fmt.Errorf("open sample reader: %w", err)
			return
		}
		defer reader.Close()
		f.rows, f.err = reader.ReadAll()
	})
	return f.rows, f.err
}
