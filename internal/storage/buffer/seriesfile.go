package buffer

import (
	"github.com/xtxerr/stalker/internal/storage/seriesreader"
	"github.com/xtxerr/stalker/internal/storage/types"
)

// bufferVersion is the VersionKey every SeriesFile reports. The ring
// buffer holds whatever was polled most recently and is never itself a
// replay of an older write, so it must shadow every flushed Parquet
// generation at a tied timestamp; a generation larger than any real
// flush can assign achieves that without the buffer needing to know
// what generation the next flush will use.
const bufferVersion = int64(1) << 62

// SeriesFile adapts the ring buffer's still-hot samples for one series
// into a seriesreader.FileHandle. Unlike a flushed Parquet file, the
// buffer can hold more than one sample at the same timestamp (retried
// polls, clock skew between pollers) with no record of which is
// authoritative, so it is always reported modified — callers must
// descend into its points rather than trust a statistics-only shortcut.
type SeriesFile struct {
	rb                        *RingBuffer
	namespace, target, poller string
	since, until              int64
}

// NewSeriesFile scopes rb to one series and time window. since/until are
// Unix milliseconds; zero means unbounded, matching SampleFilter.
func NewSeriesFile(rb *RingBuffer, namespace, target, poller string, since, until int64) *SeriesFile {
	return &SeriesFile{rb: rb, namespace: namespace, target: target, poller: poller, since: since, until: until}
}

func (f *SeriesFile) samples() []types.Sample {
	return f.rb.Query(SampleFilter{
		Namespace: f.namespace,
		Target:    f.target,
		Poller:    f.poller,
		Since:     f.since,
		Until:     f.until,
	}, 0)
}

// Stats reports this series' range currently held in the buffer.
func (f *SeriesFile) Stats() seriesreader.Stats {
	samples := f.samples()
	if len(samples) == 0 {
		return seriesreader.Stats{}
	}
	start, end := samples[0].TimestampMs, samples[0].TimestampMs
	for _, s := range samples {
		if s.TimestampMs < start {
			start = s.TimestampMs
		}
		if s.TimestampMs > end {
			end = s.TimestampMs
		}
	}
	return seriesreader.Stats{StartTime: start, EndTime: end, Count: int64(len(samples))}
}

// Modified always reports true; see the type comment.
func (f *SeriesFile) Modified() bool { return true }

// LoadSeriesMeta snapshots the buffer's current contents for this series
// into a single chunk and page — there is no cheaper lazy decomposition
// available over a structure this small and this volatile.
func (f *SeriesFile) LoadSeriesMeta(timeFilter *seriesreader.TimeRangeFilter) (seriesreader.SeriesMeta, bool, error) {
	samples := f.samples()
	if len(samples) == 0 {
		return seriesreader.SeriesMeta{}, false, nil
	}
	pts := make([]seriesreader.Point, 0, len(samples))
	for _, s := range samples {
		if !s.Valid {
			continue
		}
		if timeFilter != nil && !timeFilter.Contains(s.TimestampMs) {
			continue
		}
		pts = append(pts, seriesreader.Point{TimestampMs: s.TimestampMs, Value: s.Value})
	}
	if len(pts) == 0 {
		return seriesreader.SeriesMeta{}, false, nil
	}
	stats := seriesPointStats(pts)
	version := seriesreader.VersionKey{Generation: bufferVersion}
	loadChunks := func() ([]seriesreader.ChunkMeta, error) {
		loadPages := func(*seriesreader.TimeRangeFilter) ([]seriesreader.PageDecoder, error) {
			return []seriesreader.PageDecoder{seriesreader.NewStaticPage(stats, true, pts)}, nil
		}
		return []seriesreader.ChunkMeta{seriesreader.NewChunkMeta(stats, false, true, version, loadPages)}, nil
	}
	return seriesreader.NewSeriesMeta(stats, false, true, loadChunks), true, nil
}

func seriesPointStats(pts []seriesreader.Point) seriesreader.Stats {
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
