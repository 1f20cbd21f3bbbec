// stalker-inspect is a read-only operator REPL for stepping through the
// series reader's file/chunk/page tiers one at a time, the way a human
// debugging a shadowing or overlap question would want to see them
// rather than the fully merged output.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"

	stalkererrors "github.com/xtxerr/stalker/internal/errors"
	"github.com/xtxerr/stalker/internal/storage/config"
	"github.com/xtxerr/stalker/internal/storage/parquet"
	"github.com/xtxerr/stalker/internal/storage/seriesreader"
	"github.com/xtxerr/stalker/internal/storage/types"
)

func main() {
	dataDir := flag.String("data-dir", "", "samplestore data directory (overrides -config)")
	cfgPath := flag.String("config", "", "samplestore config file path")
	namespace := flag.String("namespace", "", "series namespace")
	target := flag.String("target", "", "series target")
	poller := flag.String("poller", "", "series poller")
	start := flag.String("start", "", "range start, RFC3339")
	end := flag.String("end", "", "range end, RFC3339")
	desc := flag.Bool("desc", false, "walk the series descending instead of ascending")
	flag.Parse()

	if *namespace == "" || *target == "" || *poller == "" {
		log.Fatal("-namespace, -target and -poller are required")
	}

	cfg := config.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	startTime, endTime, err := parseRange(*start, *end)
	if err != nil {
		log.Fatalf("parse range: %v", err)
	}

	dir := seriesreader.Asc
	if *desc {
		dir = seriesreader.Desc
	}

	if tier := types.SelectTierForRange(startTime, endTime); tier != types.TierRaw {
		log.Fatalf("range %s..%s selects tier %s, not raw: %v", startTime, endTime, tier, stalkererrors.ErrUnsupportedSeriesTier)
	}

	unseqFiles, err := loadRawSeriesFiles(cfg, *namespace, *target, *poller)
	if err != nil {
		log.Fatalf("load series files: %v", err)
	}
	if len(unseqFiles) == 0 {
		log.Fatal("no files cover this series in the given range")
	}

	timeFilter := &seriesreader.TimeRangeFilter{Start: startTime.UnixMilli(), End: endTime.UnixMilli()}
	telemetry := seriesreader.NewTelemetry(true)
	pipeline := seriesreader.NewOverlapPipeline(context.Background(), dir, nil, unseqFiles, timeFilter, nil, telemetry)

	sess := &inspector{pipeline: pipeline, telemetry: telemetry}
	fmt.Println("stalker-inspect: file/chunk/page/stats/quit")
	p := prompt.New(sess.executor, sess.completer, prompt.OptionPrefix("inspect> "))
	p.Run()
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	var startTime, endTime time.Time
	var err error
	if start == "" {
		startTime = time.Unix(0, 0).UTC()
	} else if startTime, err = time.Parse(time.RFC3339, start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -start: %w", err)
	}
	if end == "" {
		endTime = time.Now().UTC()
	} else if endTime, err = time.Parse(time.RFC3339, end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -end: %w", err)
	}
	return startTime, endTime, nil
}

// loadRawSeriesFiles opens every manifest-backed sample file in the raw
// tier that carries this series. These are ingestion.Service's flush
// output: they can overlap in time by construction (backfill, retry,
// late arrival), so they are always the pipeline's unsequential
// population, never its sequential one — raw has no compaction writing
// into it, so it has no sequential population at all.
func loadRawSeriesFiles(cfg *config.Config, namespace, target, poller string) ([]seriesreader.FileHandle, error) {
	tierDir := cfg.TierDir(types.TierRaw.String())

	paths, err := filepath.Glob(filepath.Join(tierDir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", tierDir, err)
	}

	var files []seriesreader.FileHandle
	for _, path := range paths {
		fh, ok, err := parquet.OpenSeriesFile(path, namespace, target, poller)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if ok {
			files = append(files, fh)
		}
	}
	return files, nil
}

// inspector holds the REPL's only piece of state: the pipeline being
// stepped through one command at a time.
type inspector struct {
	pipeline  *seriesreader.OverlapPipeline
	telemetry *seriesreader.Telemetry
}

func (s *inspector) executor(in string) {
	switch strings.TrimSpace(in) {
	case "file":
		s.stepFile()
	case "chunk":
		s.stepChunk()
	case "page":
		s.stepPage()
	case "stats":
		s.printStats()
	case "quit", "exit":
		fmt.Println("bye")
		os.Exit(0)
	case "":
	default:
		fmt.Println("commands: file chunk page stats quit")
	}
}

func (s *inspector) completer(d prompt.Document) []prompt.Suggest {
	suggestions := []prompt.Suggest{
		{Text: "file", Description: "advance to the next file-tier candidate"},
		{Text: "chunk", Description: "advance to the next chunk-tier candidate"},
		{Text: "page", Description: "advance to the next page-tier candidate"},
		{Text: "stats", Description: "print telemetry counters so far"},
		{Text: "quit", Description: "exit"},
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func (s *inspector) stepFile() {
	ok, err := s.pipeline.HasNextFile()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("no more files")
		return
	}
	stats := s.pipeline.CurrentFileStatistics()
	overlapped, err := s.pipeline.IsFileOverlapped()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("file: [%d,%d] modified=%v overlapped=%v\n", stats.StartTime, stats.EndTime, s.pipeline.CurrentFileModified(), overlapped)
	if !overlapped && !s.pipeline.CurrentFileModified() {
		fmt.Println("  (no deletions, no overlap — safe to skip with aggregates only)")
	}
}

func (s *inspector) stepChunk() {
	ok, err := s.pipeline.HasNextChunk()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("no more chunks")
		return
	}
	stats := s.pipeline.CurrentChunkStatistics()
	overlapped, err := s.pipeline.IsChunkOverlapped()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("chunk: [%d,%d] modified=%v overlapped=%v\n", stats.StartTime, stats.EndTime, s.pipeline.CurrentChunkModified(), overlapped)
}

func (s *inspector) stepPage() {
	ok, err := s.pipeline.HasNextPage()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("no more pages")
		return
	}
	stats := s.pipeline.CurrentPageStatistics()
	overlapped, err := s.pipeline.IsPageOverlapped()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("page: [%d,%d] modified=%v overlapped=%v\n", stats.StartTime, stats.EndTime, s.pipeline.CurrentPageModified(), overlapped)
	batch, err := s.pipeline.NextPage()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("  %d point(s)\n", batch.Len())
}

func (s *inspector) printStats() {
	fmt.Printf("seq chunks=%d unseq chunks=%d points=%d\n", s.telemetry.SeqChunkCount, s.telemetry.UnseqChunkCount, s.telemetry.PointCount)
}
