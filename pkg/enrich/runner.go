package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortidsminder/pkg/checkpoint"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/table"
)

const (
	DefinitionColumn = "definition"
	SourcesColumn    = "sources"
	DefaultChunkSize = 4
)

// Options selects how a Runner walks the table
type Options struct {
	LabelColumn string
	// ChunkSize is the number of rows per checkpointed chunk
	ChunkSize int
	// Chunked writes a checkpoint file per chunk; otherwise the run is a
	// single in-memory pass
	Chunked bool
	// Resume regenerates only rows whose definition is blank or a failure
	Resume bool
	// Limit bounds a single pass to the first Limit rows; 0 means all
	Limit int
	// Cleanup removes checkpoint files after a run that did not abort
	Cleanup bool
	// Source is recorded in the checkpoint manifest
	Source string
}

// Observer receives progress notifications during a run
type Observer interface {
	RowStarted(index int, label string)
	RowFinished(index int, label string, result Result)
	ChunkWritten(id int, rows int)
}

// Runner enriches a table with generated definitions and their sources
type Runner struct {
	generator   Generator
	checkpoints *checkpoint.Manager
	opts        Options
	logger      logger.Logger
	observer    Observer
}

// NewRunner validates opts and builds a Runner. checkpoints may be nil only
// for single-pass runs.
func NewRunner(gen Generator, checkpoints *checkpoint.Manager, opts Options, log logger.Logger) (*Runner, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if opts.LabelColumn == "" {
		return nil, errors.New("label column is required")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative, got %d", opts.Limit)
	}
	if opts.Chunked && checkpoints == nil {
		return nil, errors.New("chunked mode needs a checkpoint manager")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Runner{
		generator:   gen,
		checkpoints: checkpoints,
		opts:        opts,
		logger:      log.WithField("component", "enrich"),
	}, nil
}

// SetObserver registers o for progress notifications
func (r *Runner) SetObserver(o Observer) {
	r.observer = o
}

// Run adds the definition and sources columns right of the label column
// and fills them. Per-row failures are recorded in the table and never
// stop the run. The returned error, also stored in Report.Err, reports an
// aborted run; t still holds every result that was recovered.
func (r *Runner) Run(ctx context.Context, t *table.Table) (*Report, error) {
	report := &Report{TotalRows: t.Len(), Chunked: r.opts.Chunked, Resume: r.opts.Resume}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	if err := prepareColumns(t, r.opts.LabelColumn); err != nil {
		report.Err = err
		return report, err
	}

	logger.LogComponentStart(r.logger, "enrich", map[string]interface{}{
		"rows":       t.Len(),
		"chunked":    r.opts.Chunked,
		"chunk_size": r.opts.ChunkSize,
		"resume":     r.opts.Resume,
		"limit":      r.opts.Limit,
	})

	var err error
	if r.opts.Chunked {
		err = r.runChunked(ctx, t, report)
	} else {
		err = r.runSinglePass(ctx, t, report)
	}
	report.Err = err

	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(r.logger, "enrich", reason)
	return report, err
}

// prepareColumns inserts the output columns after the label column when
// they are missing
func prepareColumns(t *table.Table, labelColumn string) error {
	if !t.HasColumn(labelColumn) {
		return fmt.Errorf("%w: %s", table.ErrColumnNotFound, labelColumn)
	}
	if err := t.InsertColumnAfter(labelColumn, DefinitionColumn, ""); err != nil {
		return err
	}
	return t.InsertColumnAfter(DefinitionColumn, SourcesColumn, "")
}

// pending reports whether row must be generated in this run
func (r *Runner) pending(t *table.Table, row int) bool {
	if !r.opts.Resume {
		return true
	}
	definition, _ := t.Get(row, DefinitionColumn)
	return NeedsGeneration(definition)
}

// generate runs the generator for one row and updates the counters
func (r *Runner) generate(ctx context.Context, index int, label string, report *Report) Result {
	if r.observer != nil {
		r.observer.RowStarted(index, label)
	}

	res := r.generator.Generate(ctx, label)
	if !res.OK && res.Err == nil {
		res.Err = errors.New("generation failed")
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}

	report.Processed++
	if res.OK {
		report.Succeeded++
	} else {
		report.Failed++
		r.logger.WarnWithFields("row failed", map[string]interface{}{
			"row":   index,
			"label": label,
			"error": res.Err.Error(),
		})
	}

	if r.observer != nil {
		r.observer.RowFinished(index, label, res)
	}
	return res
}

func (r *Runner) runSinglePass(ctx context.Context, t *table.Table, report *Report) error {
	end := t.Len()
	if r.opts.Limit > 0 && r.opts.Limit < end {
		end = r.opts.Limit
	}

	type outcome struct {
		row    int
		result Result
	}
	results := make([]outcome, 0, end)

	for row := 0; row < end; row++ {
		if err := ctx.Err(); err != nil {
			r.logger.WithError(err).Warn("single pass interrupted, discarding results")
			return fmt.Errorf("single pass interrupted after %d rows: %w", len(results), err)
		}
		if !r.pending(t, row) {
			report.Skipped++
			continue
		}
		label, _ := t.Get(row, r.opts.LabelColumn)
		results = append(results, outcome{row: row, result: r.generate(ctx, row, label, report)})
	}

	for _, o := range results {
		if err := applyResult(t, o.row, o.result.Definition(), o.result.Sources); err != nil {
			return err
		}
	}
	return nil
}

func applyResult(t *table.Table, row int, definition string, sources []string) error {
	if err := t.Set(row, DefinitionColumn, normalizeNewlines(definition)); err != nil {
		return err
	}
	return t.Set(row, SourcesColumn, table.EncodeSources(sources))
}
