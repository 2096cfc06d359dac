package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"fortidsminder/pkg/enrich"

	"github.com/stretchr/testify/assert"
)

var _ enrich.Observer = (*ProgressDisplay)(nil)

func TestProgressDisplayLine(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, "anlaeg.csv", 4, false)

	p.RowStarted(0, "Rundhøj")
	assert.Contains(t, out.String(), "0/4")
	assert.Contains(t, out.String(), "Rundhøj")

	p.RowFinished(0, "Rundhøj", enrich.Success("En høj.", nil))
	p.RowFinished(1, "Dysse", enrich.Failure(errors.New("x")))
	p.ChunkWritten(0, 2)
	p.RowStarted(2, "Kirke")

	assert.Contains(t, out.String(), "2/4")
	assert.Contains(t, out.String(), "1 errors")
	assert.Contains(t, out.String(), "1 chunks")
}

func TestProgressDisplayDebug(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, "anlaeg.csv", 2, true)

	p.RowFinished(0, "Rundhøj", enrich.Success("En høj.", nil))
	p.RowFinished(1, "Dysse", enrich.Failure(errors.New("timeout")))
	p.ChunkWritten(0, 2)

	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "En høj.")
	assert.Contains(t, out.String(), "timeout")
	assert.Contains(t, out.String(), "chunk 0 saved (2 rows)")
}

func TestProgressDisplayComplete(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, "anlaeg.csv", 10, false)

	p.Complete(&enrich.Report{
		Chunked:          true,
		TotalRows:        10,
		Processed:        6,
		Succeeded:        5,
		Failed:           1,
		ChunksTotal:      3,
		ChunksWritten:    2,
		ChunksRecombined: 2,
		Err:              errors.New("interrupted"),
	})

	assert.Contains(t, out.String(), "Enriched 6/10 rows")
	assert.Contains(t, out.String(), "2/3 chunks written, 2 recombined")
	assert.Contains(t, out.String(), "stopped early: interrupted")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "kort", truncate("kort", 10))
	assert.Equal(t, "æøåæøåæ...", truncate("æøåæøåæøåæøå", 10))
}
