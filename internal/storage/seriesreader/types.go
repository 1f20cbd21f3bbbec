// Package seriesreader implements the hierarchical, order-preserving merge
// reader for a single time series described by the storage engine's query
// layer. It walks a series' files (sequential and unsequential), chunks and
// pages lazily, descending into overlapping ranges only as far as needed,
// and reconciles overlapping writes by a version key so that later writes
// shadow earlier ones at identical timestamps.
//
// The package owns none of the bytes on disk: it consumes narrow loader
// contracts (the FileHandle and PageDecoder interfaces and the chunk/page
// loader funcs behind SeriesMeta and ChunkMeta) from its collaborators and
// never opens or closes a file itself.
package seriesreader

import (
	"fmt"
)

// VersionKey is the lexicographic (fileGeneration, chunkOffset) pair used to
// resolve same-timestamp conflicts across overlapping writes. Larger is
// newer. Generation is unique per file by construction (a file is written
// once under one generation), so equality across files never happens;
// ChunkOffset only needs to disambiguate chunks within one file.
type VersionKey struct {
	Generation  int64
	ChunkOffset int64
}

// Less reports whether v is older (lower precedence) than other.
func (v VersionKey) Less(other VersionKey) bool {
	if v.Generation != other.Generation {
		return v.Generation < other.Generation
	}
	return v.ChunkOffset < other.ChunkOffset
}

func (v VersionKey) String() string {
	return fmt.Sprintf("(%d,%d)", v.Generation, v.ChunkOffset)
}

// Point is a single decoded (timestamp, value) pair plus the version it was
// read from, so the merge reader can shadow it later without re-deriving
// the version from whichever cursor produced it.
type Point struct {
	TimestampMs int64
	Value       float64
	Version     VersionKey
}

// Filter is the narrow value-filter contract pushed down into non-overlapped
// pages. Expression compilation lives outside this package entirely; a
// Filter here is already a compiled predicate.
type Filter interface {
	Satisfy(timestampMs int64, value float64) bool
}

// RangeFilter is a minimal Filter implementation usable by tests and by the
// operator REPL. Production filter expressions are compiled elsewhere and
// handed in as a Filter.
type RangeFilter struct {
	Min, Max float64
}

func (f RangeFilter) Satisfy(_ int64, value float64) bool {
	return value >= f.Min && value <= f.Max
}

// TimeRangeFilter restricts to a [Start, End] timestamp window. Unlike a
// value Filter, a time filter is safe to push down even to overlapped
// pages — it can only ever shrink candidate ranges, never affect shadowing.
type TimeRangeFilter struct {
	Start, End int64
}

func (f TimeRangeFilter) Contains(timestampMs int64) bool {
	return timestampMs >= f.Start && timestampMs <= f.End
}

// SeriesMeta is the per-series, per-file metadata described by spec.md's
// SeriesMetadata: statistics, the isSeq/isModified tags, and lazy access to
// the file's chunk list for this series.
type SeriesMeta struct {
	Stats      Stats
	IsSeq      bool
	IsModified bool

	loadChunks func() ([]ChunkMeta, error)
}

// NewSeriesMeta builds a SeriesMeta for a collaborator implementing
// FileHandle outside this package. loadChunks is deferred until the
// pipeline actually descends into this series — spec.md's "lazy
// materialization" starts here, at the first tier above the raw file.
func NewSeriesMeta(stats Stats, isSeq, isModified bool, loadChunks func() ([]ChunkMeta, error)) SeriesMeta {
	return SeriesMeta{Stats: stats, IsSeq: isSeq, IsModified: isModified, loadChunks: loadChunks}
}

// LoadChunks lazily loads this series' chunk list from its backing file.
func (m SeriesMeta) LoadChunks() ([]ChunkMeta, error) {
	if m.loadChunks == nil {
		return nil, nil
	}
	return m.loadChunks()
}

// ChunkMeta is one chunk's summary: statistics, inherited isSeq, the version
// key used for shadowing precedence, and lazy access to its page list.
type ChunkMeta struct {
	Stats      Stats
	IsSeq      bool
	IsModified bool
	Version    VersionKey

	loadPages func(timeFilter *TimeRangeFilter) ([]PageDecoder, error)
}

// NewChunkMeta builds a ChunkMeta for a collaborator implementing
// loadChunkList outside this package; loadPages is deferred the same way
// NewSeriesMeta defers loadChunks.
func NewChunkMeta(stats Stats, isSeq, isModified bool, version VersionKey, loadPages func(timeFilter *TimeRangeFilter) ([]PageDecoder, error)) ChunkMeta {
	return ChunkMeta{Stats: stats, IsSeq: isSeq, IsModified: isModified, Version: version, loadPages: loadPages}
}

// LoadPages lazily loads this chunk's page decoders, honoring an optional
// pushed-down time filter.
func (m ChunkMeta) LoadPages(timeFilter *TimeRangeFilter) ([]PageDecoder, error) {
	if m.loadPages == nil {
		return nil, nil
	}
	return m.loadPages(timeFilter)
}

// PageDecoder lazily produces a decoded Batch for one page, parameterized
// by direction, with an optional value-filter push-down. A PageDecoder is
// single-use: AllSatisfiedData is called at most once per decoder.
type PageDecoder interface {
	Statistics() Stats
	IsModified() bool
	SetFilter(f Filter)
	AllSatisfiedData(dir Direction) (*Batch, error)
}

// FileHandle is the opaque per-file resource a caller builds for the
// query's lifetime (spec.md's FileResource). It exposes, for the series
// being read, a time range, a modified flag, and a loader for this file's
// SeriesMeta.
type FileHandle interface {
	// Stats returns this file's range for the series being read.
	Stats() Stats
	// Modified reports whether deletions may apply within this file.
	Modified() bool
	// LoadSeriesMeta loads the per-series metadata from this file. Returns
	// ok=false if the series is absent from the file (it should be
	// dropped and skipped, not treated as an error).
	LoadSeriesMeta(timeFilter *TimeRangeFilter) (meta SeriesMeta, ok bool, err error)
}
