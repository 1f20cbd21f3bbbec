package parquet

import (
	"path/filepath"
	"testing"

	"github.com/xtxerr/stalker/internal/storage/seriesreader"
	"github.com/xtxerr/stalker/internal/storage/types"
)

func writeSeriesFixture(t *testing.T, samples []types.Sample, opts Options) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.parquet")

	w, err := NewSampleWriter(path, opts)
	if err != nil {
		t.Fatalf("NewSampleWriter: %v", err)
	}
	if err := w.Write(samples); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestOpenSeriesFile_MissingSeries(t *testing.T) {
	opts := DefaultOptions()
	opts.Generation = 1
	path := writeSeriesFixture(t, []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 1000, Value: 1, Valid: true},
	}, opts)

	_, ok, err := OpenSeriesFile(path, "prod", "r1", "memory")
	if err != nil {
		t.Fatalf("OpenSeriesFile: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a series absent from the file")
	}
}

func TestSeriesFile_LoadSeriesMetaAndChunks(t *testing.T) {
	opts := DefaultOptions()
	opts.Generation = 7
	opts.RowGroupSize = 4
	opts.PageRowSpan = 2

	var samples []types.Sample
	for i := 0; i < 8; i++ {
		samples = append(samples, types.Sample{
			Namespace: "prod", Target: "r1", Poller: "cpu",
			TimestampMs: int64(1000 + i*100), Value: float64(i), Valid: true,
		})
	}
	// interleave a second series so the manifest's per-chunk split is exercised.
	samples = append(samples, types.Sample{
		Namespace: "prod", Target: "r1", Poller: "memory", TimestampMs: 1050, Value: 99, Valid: true,
	})

	path := writeSeriesFixture(t, samples, opts)

	fh, ok, err := OpenSeriesFile(path, "prod", "r1", "cpu")
	if err != nil {
		t.Fatalf("OpenSeriesFile: %v", err)
	}
	if !ok {
		t.Fatal("expected series to be present")
	}

	stats := fh.Stats()
	if stats.Count != 8 {
		t.Fatalf("expected 8 points, got %d", stats.Count)
	}
	if fh.Modified() {
		t.Error("flushed file should never report modified")
	}

	meta, ok, err := fh.LoadSeriesMeta(nil)
	if err != nil {
		t.Fatalf("LoadSeriesMeta: %v", err)
	}
	if !ok {
		t.Fatal("expected LoadSeriesMeta ok=true")
	}

	chunks, err := meta.LoadChunks()
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 8 rows at row-group size 4, got %d", len(chunks))
	}

	var total int64
	for _, c := range chunks {
		if c.Version.Generation != 7 {
			t.Errorf("expected generation=7 on chunk version, got %d", c.Version.Generation)
		}
		pages, err := c.LoadPages(nil)
		if err != nil {
			t.Fatalf("LoadPages: %v", err)
		}
		for _, p := range pages {
			total += p.Statistics().Count
		}
	}
	if total != 8 {
		t.Errorf("expected 8 points decoded across all pages, got %d", total)
	}
}

func TestSeriesFile_TimeFilterNarrowsPages(t *testing.T) {
	opts := DefaultOptions()
	opts.Generation = 1
	opts.RowGroupSize = 100
	opts.PageRowSpan = 100

	var samples []types.Sample
	for i := 0; i < 5; i++ {
		samples = append(samples, types.Sample{
			Namespace: "prod", Target: "r1", Poller: "cpu",
			TimestampMs: int64(1000 + i*1000), Value: float64(i), Valid: true,
		})
	}
	path := writeSeriesFixture(t, samples, opts)

	fh, ok, err := OpenSeriesFile(path, "prod", "r1", "cpu")
	if err != nil || !ok {
		t.Fatalf("OpenSeriesFile: ok=%v err=%v", ok, err)
	}

	meta, _, err := fh.LoadSeriesMeta(nil)
	if err != nil {
		t.Fatalf("LoadSeriesMeta: %v", err)
	}
	chunks, err := meta.LoadChunks()
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	filter := &seriesreader.TimeRangeFilter{Start: 2000, End: 3000}
	pages, err := chunks[0].LoadPages(filter)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	var total int64
	for _, p := range pages {
		total += p.Statistics().Count
	}
	if total != 2 {
		t.Errorf("expected 2 points within [2000,3000], got %d", total)
	}
}

func TestSeriesFile_InvalidSamplesExcluded(t *testing.T) {
	opts := DefaultOptions()
	opts.Generation = 1
	path := writeSeriesFixture(t, []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 1000, Value: 1, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 2000, Value: 2, Valid: false},
	}, opts)

	fh, ok, err := OpenSeriesFile(path, "prod", "r1", "cpu")
	if err != nil || !ok {
		t.Fatalf("OpenSeriesFile: ok=%v err=%v", ok, err)
	}

	meta, _, err := fh.LoadSeriesMeta(nil)
	if err != nil {
		t.Fatalf("LoadSeriesMeta: %v", err)
	}
	chunks, err := meta.LoadChunks()
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	var total int64
	for _, c := range chunks {
		pages, err := c.LoadPages(nil)
		if err != nil {
			t.Fatalf("LoadPages: %v", err)
		}
		for _, p := range pages {
			total += p.Statistics().Count
		}
	}
	if total != 1 {
		t.Errorf("expected only the valid sample to decode, got %d points", total)
	}
}
