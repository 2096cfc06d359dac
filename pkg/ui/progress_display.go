package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"fortidsminder/pkg/enrich"
)

// ProgressDisplay renders enrichment progress on a single terminal line.
// It implements enrich.Observer.
type ProgressDisplay struct {
	mu           sync.Mutex
	out          io.Writer
	source       string
	totalRows    int
	doneCount    int
	failedCount  int
	chunksDone   int
	currentLabel string
	startTime    time.Time
	isDebug      bool
}

// NewProgressDisplay creates a progress display writing to stdout
func NewProgressDisplay(source string, totalRows int, debug bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, source, totalRows, debug)
}

// NewProgressDisplayTo creates a progress display writing to out
func NewProgressDisplayTo(out io.Writer, source string, totalRows int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		source:    source,
		totalRows: totalRows,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// RowStarted marks the start of one generation
func (p *ProgressDisplay) RowStarted(index int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentLabel = label
	if !p.isDebug {
		p.printProgress()
	}
}

// RowFinished records the outcome of one generation
func (p *ProgressDisplay) RowFinished(index int, label string, result enrich.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doneCount++
	if !result.OK {
		p.failedCount++
	}
	p.currentLabel = ""

	if !p.isDebug {
		p.printProgress()
		return
	}

	if result.OK {
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), label, Dim(truncate(result.Text, 60)))
	} else {
		fmt.Fprintf(p.out, "%s %s • %v\n", Red("✗"), label, result.Err)
	}
}

// ChunkWritten records a checkpoint file being written
func (p *ProgressDisplay) ChunkWritten(id int, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chunksDone++
	if p.isDebug {
		fmt.Fprintf(p.out, "%s chunk %d saved (%d rows)\n", Magenta("→"), id, rows)
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed.Minutes() > 0 {
		rate = float64(p.doneCount) / elapsed.Minutes()
	}

	progress := 0.0
	if p.totalRows > 0 {
		progress = float64(p.doneCount) / float64(p.totalRows)
	}
	if progress > 1 {
		progress = 1
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan(p.source),
		bar,
		p.doneCount,
		p.totalRows,
		rate,
		p.calculateETA(),
	)

	if p.chunksDone > 0 {
		line += fmt.Sprintf(" • %d chunks", p.chunksDone)
	}
	if p.currentLabel != "" {
		line += fmt.Sprintf(" • %s", p.currentLabel)
	}
	if p.failedCount > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.failedCount)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(report *enrich.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	mark := Green("✓")
	if report.Aborted() {
		mark = Yellow("⚠")
	}
	fmt.Fprintf(p.out, "\n\n%s Enriched %d/%d rows from %s\n", mark, report.Processed, report.TotalRows, p.source)
	fmt.Fprintf(p.out, "  %s %d ok, %d failed, %d skipped in %s\n",
		Dim("•"),
		report.Succeeded,
		report.Failed,
		report.Skipped,
		formatDuration(elapsed),
	)

	if report.Chunked {
		fmt.Fprintf(p.out, "  %s %d/%d chunks written, %d recombined\n",
			Dim("•"),
			report.ChunksWritten,
			report.ChunksTotal,
			report.ChunksRecombined,
		)
	}
	if report.Aborted() {
		fmt.Fprintf(p.out, "  %s stopped early: %v\n", Dim("•"), report.Err)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.doneCount == 0 {
		return "calculating..."
	}

	remaining := p.totalRows - p.doneCount
	if remaining <= 0 {
		return "0s"
	}
	rate := float64(p.doneCount) / time.Since(p.startTime).Seconds()
	if rate == 0 {
		return "calculating..."
	}

	eta := time.Duration(float64(remaining)/rate) * time.Second
	return formatDuration(eta)
}

// RateLimitWarning shows a rate limit warning
func (p *ProgressDisplay) RateLimitWarning(waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Rate limit reached. Waiting %s...\n",
		Yellow("⚠"),
		formatDuration(waitTime),
	)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
