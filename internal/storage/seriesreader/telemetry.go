package seriesreader

// Telemetry accumulates the per-query counters spec.md dropped from its
// distillation but SeriesReader.java tracks throughout a read: how many
// chunks were opened from each tier, and how many points survived the
// merge and filter stages. A nil *Telemetry is valid and a no-op, so
// callers that don't care can pass nil into NewSeriesReader.
type Telemetry struct {
	enabled bool

	SeqChunkCount   int64
	UnseqChunkCount int64
	PointCount      int64
}

// NewTelemetry returns a Telemetry that records counters only when enabled
// is true; when false, its methods are cheap no-ops so callers don't need
// to branch on whether tracing was requested.
func NewTelemetry(enabled bool) *Telemetry {
	return &Telemetry{enabled: enabled}
}

func (t *Telemetry) addChunk(isSeq bool) {
	if t == nil || !t.enabled {
		return
	}
	if isSeq {
		t.SeqChunkCount++
	} else {
		t.UnseqChunkCount++
	}
}

func (t *Telemetry) addPoint() {
	if t == nil || !t.enabled {
		return
	}
	t.PointCount++
}

// addPoints bulk-accumulates a page decoded straight through, without
// per-point overlap merging, so the non-overlapped fast path doesn't pay
// for a method call per point.
func (t *Telemetry) addPoints(n int) {
	if t == nil || !t.enabled || n <= 0 {
		return
	}
	t.PointCount += int64(n)
}
