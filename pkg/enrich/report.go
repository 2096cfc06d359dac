package enrich

import (
	"fmt"
	"time"
)

// Report summarizes one run
type Report struct {
	RunID     string
	Chunked   bool
	Resume    bool
	TotalRows int
	// Processed counts rows sent to the generator
	Processed int
	Succeeded int
	Failed    int
	// Skipped counts rows left untouched by a resume
	Skipped int

	ChunksTotal      int
	ChunksWritten    int
	ChunksSkipped    int
	ChunksRecombined int
	// Mismatched counts chunk rows whose label did not match the table
	Mismatched int

	Duration time.Duration
	Err      error
}

// Aborted reports whether the run stopped early
func (r *Report) Aborted() bool {
	return r.Err != nil
}

// Fields flattens the report for structured logging
func (r *Report) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"rows":      r.TotalRows,
		"processed": r.Processed,
		"succeeded": r.Succeeded,
		"failed":    r.Failed,
		"skipped":   r.Skipped,
		"duration":  r.Duration,
	}
	if r.Chunked {
		fields["run_id"] = r.RunID
		fields["chunks_total"] = r.ChunksTotal
		fields["chunks_written"] = r.ChunksWritten
		fields["chunks_skipped"] = r.ChunksSkipped
		fields["chunks_recombined"] = r.ChunksRecombined
		fields["mismatched"] = r.Mismatched
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}
	return fields
}

func (r *Report) String() string {
	return fmt.Sprintf("%d/%d rows processed (%d ok, %d failed, %d skipped)",
		r.Processed, r.TotalRows, r.Succeeded, r.Failed, r.Skipped)
}
