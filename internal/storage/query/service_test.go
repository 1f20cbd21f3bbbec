package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	stalkererrors "github.com/xtxerr/stalker/internal/errors"
	"github.com/xtxerr/stalker/internal/storage/buffer"
	"github.com/xtxerr/stalker/internal/storage/config"
	"github.com/xtxerr/stalker/internal/storage/ingestion"
	"github.com/xtxerr/stalker/internal/storage/parquet"
	"github.com/xtxerr/stalker/internal/storage/types"
)

func TestService_New(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	if svc == nil {
		t.Fatal("service is nil")
	}
}

func TestService_ExecuteSQL(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()

	// Simple query
	results, err := svc.ExecuteSQL(ctx, "SELECT 1 AS value")
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	stats := svc.Stats()
	if stats.QueriesExecuted != 1 {
		t.Errorf("expected 1 query executed, got %d", stats.QueriesExecuted)
	}
}

func TestService_QueryBuffer(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	// Create buffer with samples
	buf := buffer.New(1000)

	now := time.Now()
	nowMs := now.UnixMilli()

	for i := 0; i < 10; i++ {
		buf.Push(types.Sample{
			Namespace:   "prod",
			Target:      "router-01",
			Poller:      "cpu",
			TimestampMs: nowMs + int64(i)*1000,
			Value:       float64(i * 10), // 0, 10, 20, ..., 90
			Valid:       true,
			PollMs:      25,
		})
	}

	svc, err := New(cfg, buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	// Query buffer through service
	q := PollerQuery{
		Namespace: "prod",
		Target:    "router-01",
		Poller:    "cpu",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	ctx := context.Background()
	results, err := svc.QueryPoller(ctx, q)
	if err != nil {
		t.Fatalf("QueryPoller: %v", err)
	}

	// Should have 1 aggregate from buffer data
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Count != 10 {
		t.Errorf("expected count=10, got %d", r.Count)
	}

	// Sum of 0+10+20+...+90 = 450
	if r.Sum != 450 {
		t.Errorf("expected sum=450, got %f", r.Sum)
	}

	if r.Min != 0 {
		t.Errorf("expected min=0, got %f", r.Min)
	}

	if r.Max != 90 {
		t.Errorf("expected max=90, got %f", r.Max)
	}
}

func TestService_AggregateSamples(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	now := time.Now()
	nowMs := now.UnixMilli()

	samples := []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: nowMs, Value: 10, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: nowMs + 1000, Value: 20, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: nowMs + 2000, Value: 30, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: nowMs + 3000, Value: 40, Valid: false}, // Invalid
	}

	results := svc.aggregateSamples(samples, now.Add(-time.Hour), now.Add(time.Hour))

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Count != 3 { // Only valid samples
		t.Errorf("expected count=3, got %d", r.Count)
	}

	if r.Sum != 60 {
		t.Errorf("expected sum=60, got %f", r.Sum)
	}
}

func TestService_MergeResults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	parquet := []types.AggregateResult{
		{Namespace: "prod", Target: "r1", Poller: "cpu", Count: 10},
	}

	buffer := []types.AggregateResult{
		{Namespace: "prod", Target: "r1", Poller: "cpu", Count: 5},
	}

	merged := svc.mergeResults(parquet, buffer)

	if len(merged) != 2 {
		t.Errorf("expected 2 results, got %d", len(merged))
	}
}

func TestService_Stats(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	stats := svc.Stats()

	if stats.QueriesExecuted != 0 {
		t.Errorf("expected 0 queries executed, got %d", stats.QueriesExecuted)
	}

	// Execute some queries
	ctx := context.Background()
	svc.ExecuteSQL(ctx, "SELECT 1")
	svc.ExecuteSQL(ctx, "SELECT 2")

	stats = svc.Stats()
	if stats.QueriesExecuted != 2 {
		t.Errorf("expected 2 queries executed, got %d", stats.QueriesExecuted)
	}
}

func TestPollerQuery(t *testing.T) {
	q := PollerQuery{
		Namespace: "prod",
		Target:    "router-01",
		Poller:    "cpu",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now(),
		Limit:     100,
	}

	if q.Namespace != "prod" {
		t.Error("unexpected namespace")
	}

	if q.Limit != 100 {
		t.Error("unexpected limit")
	}
}

func TestTimeRangeQuery(t *testing.T) {
	q := TimeRangeQuery{
		Namespace: "prod",
		Target:    "router-01",
		StartTime: time.Now().Add(-24 * time.Hour),
		EndTime:   time.Now(),
		Limit:     1000,
	}

	if q.Namespace != "prod" {
		t.Error("unexpected namespace")
	}

	duration := q.EndTime.Sub(q.StartTime)
	if duration != 24*time.Hour {
		t.Errorf("expected 24h duration, got %v", duration)
	}
}

func TestService_QueryRawSeries(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	rawDir := cfg.TierDir("raw")

	writeFixture := func(name string, generation int64, samples []types.Sample) {
		opts := parquet.DefaultOptions()
		opts.Generation = generation
		w, err := parquet.NewSampleWriter(filepath.Join(rawDir, name), opts)
		if err != nil {
			t.Fatalf("NewSampleWriter: %v", err)
		}
		if err := w.Write(samples); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	writeFixture("a.parquet", 1, []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 1000, Value: 10, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 2000, Value: 20, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 3000, Value: 30, Valid: true},
	})
	writeFixture("b.parquet", 2, []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 4000, Value: 40, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 5000, Value: 50, Valid: true},
	})

	buf := buffer.New(100)
	// overlaps file a's t=2000 point; the buffer must shadow it.
	buf.Push(types.Sample{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 2000, Value: 999, Valid: true})

	svc, err := New(cfg, buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	q := RawSeriesQuery{
		Namespace: "prod",
		Target:    "r1",
		Poller:    "cpu",
		StartTime: time.UnixMilli(0),
		EndTime:   time.UnixMilli(10000),
	}

	batch, err := svc.QueryRawSeries(context.Background(), q)
	if err != nil {
		t.Fatalf("QueryRawSeries: %v", err)
	}

	if batch.Len() != 5 {
		t.Fatalf("expected 5 shadow-resolved points, got %d", batch.Len())
	}

	wantTs := []int64{1000, 2000, 3000, 4000, 5000}
	wantVal := []float64{10, 999, 30, 40, 50}
	for i, it := 0, batch.Iterator(); it.HasNext(); i++ {
		p := it.Next()
		if p.TimestampMs != wantTs[i] {
			t.Errorf("point %d: expected ts=%d, got %d", i, wantTs[i], p.TimestampMs)
		}
		if p.Value != wantVal[i] {
			t.Errorf("point %d: expected value=%v, got %v", i, wantVal[i], p.Value)
		}
	}
}

func TestService_QueryRawSeries_MaxOpenFiles(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Query.SeriesReader.MaxOpenFiles = 1

	rawDir := cfg.TierDir("raw")

	for i, name := range []string{"a.parquet", "b.parquet"} {
		opts := parquet.DefaultOptions()
		opts.Generation = int64(i + 1)
		w, err := parquet.NewSampleWriter(filepath.Join(rawDir, name), opts)
		if err != nil {
			t.Fatalf("NewSampleWriter: %v", err)
		}
		if err := w.Write([]types.Sample{
			{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: int64(1000 * (i + 1)), Value: float64(i), Valid: true},
		}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	_, err = svc.QueryRawSeries(context.Background(), RawSeriesQuery{
		Namespace: "prod", Target: "r1", Poller: "cpu",
		StartTime: time.UnixMilli(0), EndTime: time.UnixMilli(10000),
	})
	if err == nil {
		t.Fatal("expected an error when the tier holds more files than max_open_files allows")
	}
}

func TestService_QueryRawSeries_RejectsCompactedTier(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	now := time.Now()
	q := RawSeriesQuery{
		Namespace: "prod",
		Target:    "r1",
		Poller:    "cpu",
		StartTime: now.Add(-60 * 24 * time.Hour),
		EndTime:   now,
	}

	_, err = svc.QueryRawSeries(context.Background(), q)
	if err == nil {
		t.Fatal("expected an error for a range wide enough to select a compacted tier")
	}
	if !errors.Is(err, stalkererrors.ErrUnsupportedSeriesTier) {
		t.Errorf("expected ErrUnsupportedSeriesTier, got %v", err)
	}
}

// TestService_QueryRawSeries_IngestionIntegration drives the real
// production write path instead of hand-written fixtures: samples go
// through ingestion.Service's own flushRawSamples, and a separate
// query.Service reads whatever landed on disk.
func TestService_QueryRawSeries_IngestionIntegration(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Ingestion.Flush.Interval = time.Hour // avoid racing the ticker; Stop() flushes synchronously

	ing, err := ingestion.New(cfg)
	if err != nil {
		t.Fatalf("ingestion.New: %v", err)
	}
	if err := ing.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	samples := []types.Sample{
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 1000, Value: 10, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 2000, Value: 20, Valid: true},
		{Namespace: "prod", Target: "r1", Poller: "cpu", TimestampMs: 3000, Value: 30, Valid: true},
	}
	if err := ing.Ingest(samples); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := ing.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	defer svc.Close()

	batch, err := svc.QueryRawSeries(context.Background(), RawSeriesQuery{
		Namespace: "prod",
		Target:    "r1",
		Poller:    "cpu",
		StartTime: time.UnixMilli(0),
		EndTime:   time.UnixMilli(10000),
	})
	if err != nil {
		t.Fatalf("QueryRawSeries: %v", err)
	}

	if batch.Len() != len(samples) {
		t.Fatalf("expected %d points from the ingestion service's own flush output, got %d", len(samples), batch.Len())
	}

	wantTs := []int64{1000, 2000, 3000}
	wantVal := []float64{10, 20, 30}
	for i, it := 0, batch.Iterator(); it.HasNext(); i++ {
		p := it.Next()
		if p.TimestampMs != wantTs[i] {
			t.Errorf("point %d: expected ts=%d, got %d", i, wantTs[i], p.TimestampMs)
		}
		if p.Value != wantVal[i] {
			t.Errorf("point %d: expected value=%v, got %v", i, wantVal[i], p.Value)
		}
	}
}

func BenchmarkService_AggregateSamples(b *testing.B) {
	tmpDir := b.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir

	svc, _ := New(cfg, nil)
	defer svc.Close()

	now := time.Now()
	nowMs := now.UnixMilli()

	// Create 1000 samples
	samples := make([]types.Sample, 1000)
	for i := range samples {
		samples[i] = types.Sample{
			Namespace:   "prod",
			Target:      "router-01",
			Poller:      "cpu",
			TimestampMs: nowMs + int64(i)*100,
			Value:       float64(i),
			Valid:       true,
			PollMs:      25,
		}
	}

	startTime := now.Add(-time.Hour)
	endTime := now.Add(time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.aggregateSamples(samples, startTime, endTime)
	}
}
