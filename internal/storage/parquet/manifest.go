package parquet

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest is the sidecar index written alongside a sample Parquet file.
// parquet-go only exposes row-based GenericReader/GenericWriter, not the
// underlying page or row-group layout, so chunk and page boundaries are
// tracked here at write time instead of being recovered from the Parquet
// file itself. Boundaries are global row spans — a file interleaves rows
// from every series written into it — so reading one series' chunk means
// seeking to RowOffset, reading RowCount rows, and discarding rows that
// belong to other series.
type Manifest struct {
	Generation int64                      `json:"generation"`
	RowCount   int64                      `json:"row_count"`
	Chunks     []ChunkSpan                `json:"chunks"`
	Series     map[string]*SeriesManifest `json:"series"`
}

// ChunkSpan is one span of up to Options.RowGroupSize consecutive rows of
// the file.
type ChunkSpan struct {
	RowOffset int64      `json:"row_offset"`
	RowCount  int64      `json:"row_count"`
	Pages     []PageSpan `json:"pages"`
}

// PageSpan is a sub-span of a ChunkSpan.
type PageSpan struct {
	RowOffset int64 `json:"row_offset"`
	RowCount  int64 `json:"row_count"`
}

// SeriesManifest is one series' contribution to the file: its overall
// range and count, and per-chunk breakdowns indexed the same as Chunks.
// PerChunk[i] is nil when the series has no rows in Chunks[i].
type SeriesManifest struct {
	Namespace string              `json:"namespace"`
	Target    string              `json:"target"`
	Poller    string              `json:"poller"`
	StartTime int64               `json:"start_time_ms"`
	EndTime   int64               `json:"end_time_ms"`
	Count     int64               `json:"count"`
	PerChunk  []*SeriesChunkStats `json:"per_chunk"`
}

// SeriesChunkStats is a series' range and count within a single chunk.
type SeriesChunkStats struct {
	StartTime int64 `json:"start_time_ms"`
	EndTime   int64 `json:"end_time_ms"`
	Count     int64 `json:"count"`
}

// manifestBuilder accumulates a Manifest incrementally as rows are
// written, so SampleWriter never has to re-scan the file to build it.
type manifestBuilder struct {
	generation   int64
	rowGroupSize int
	pageRowSpan  int
	rowCount     int64
	chunks       []ChunkSpan
	series       map[string]*SeriesManifest
}

func newManifestBuilder(generation int64, rowGroupSize, pageRowSpan int) *manifestBuilder {
	if rowGroupSize <= 0 {
		rowGroupSize = 100000
	}
	if pageRowSpan <= 0 {
		pageRowSpan = rowGroupSize
	}
	return &manifestBuilder{
		generation:   generation,
		rowGroupSize: rowGroupSize,
		pageRowSpan:  pageRowSpan,
		series:       make(map[string]*SeriesManifest),
	}
}

// addRow records one row at the file's next row index for the given
// series key and timestamp.
func (b *manifestBuilder) addRow(key, namespace, target, poller string, timestampMs int64) {
	idx := b.rowCount
	b.rowCount++

	chunkIdx := b.ensureChunk(idx)
	b.ensurePage(chunkIdx, idx)

	sm, ok := b.series[key]
	if !ok {
		sm = &SeriesManifest{Namespace: namespace, Target: target, Poller: poller, StartTime: timestampMs, EndTime: timestampMs}
		b.series[key] = sm
	}
	sm.Count++
	if timestampMs < sm.StartTime {
		sm.StartTime = timestampMs
	}
	if timestampMs > sm.EndTime {
		sm.EndTime = timestampMs
	}

	for len(sm.PerChunk) <= chunkIdx {
		sm.PerChunk = append(sm.PerChunk, nil)
	}
	cs := sm.PerChunk[chunkIdx]
	if cs == nil {
		cs = &SeriesChunkStats{StartTime: timestampMs, EndTime: timestampMs}
		sm.PerChunk[chunkIdx] = cs
	}
	cs.Count++
	if timestampMs < cs.StartTime {
		cs.StartTime = timestampMs
	}
	if timestampMs > cs.EndTime {
		cs.EndTime = timestampMs
	}
}

func (b *manifestBuilder) ensureChunk(idx int64) int {
	chunkIdx := int(idx / int64(b.rowGroupSize))
	for len(b.chunks) <= chunkIdx {
		off := int64(len(b.chunks)) * int64(b.rowGroupSize)
		b.chunks = append(b.chunks, ChunkSpan{RowOffset: off})
	}
	b.chunks[chunkIdx].RowCount++
	return chunkIdx
}

func (b *manifestBuilder) ensurePage(chunkIdx int, idx int64) {
	chunk := &b.chunks[chunkIdx]
	pageIdx := int((idx - chunk.RowOffset) / int64(b.pageRowSpan))
	for len(chunk.Pages) <= pageIdx {
		off := chunk.RowOffset + int64(len(chunk.Pages))*int64(b.pageRowSpan)
		chunk.Pages = append(chunk.Pages, PageSpan{RowOffset: off})
	}
	chunk.Pages[pageIdx].RowCount++
}

func (b *manifestBuilder) finish() *Manifest {
	return &Manifest{
		Generation: b.generation,
		RowCount:   b.rowCount,
		Chunks:     b.chunks,
		Series:     b.series,
	}
}

// ManifestPath returns the sidecar manifest path for a Parquet data file.
func ManifestPath(dataPath string) string {
	return dataPath + ".manifest.json"
}

// WriteManifest persists m alongside dataPath.
func WriteManifest(dataPath string, m *Manifest) error {
	f, err := os.Create(ManifestPath(dataPath))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the sidecar manifest for dataPath.
func LoadManifest(dataPath string) (*Manifest, error) {
	f, err := os.Open(ManifestPath(dataPath))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
