package enrich

import (
	"context"
	"errors"
	"fmt"

	"fortidsminder/pkg/checkpoint"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/table"
)

// ChunkID returns the chunk a row belongs to
func ChunkID(row, chunkSize int) int {
	return row / chunkSize
}

// ChunkCount returns how many chunks cover rows rows
func ChunkCount(rows, chunkSize int) int {
	return (rows + chunkSize - 1) / chunkSize
}

func (r *Runner) runChunked(ctx context.Context, t *table.Table, report *Report) error {
	size := r.opts.ChunkSize
	total := ChunkCount(t.Len(), size)
	report.ChunksTotal = total

	manifest, err := r.openManifest(t.Len())
	if err != nil {
		return err
	}
	report.RunID = manifest.RunID

	loopErr := r.processChunks(ctx, t, manifest, report)
	if loopErr != nil {
		r.logger.WithError(loopErr).Error("chunk loop aborted, recombining written chunks")
	}

	recombined, mergeErr := r.recombine(t, report)
	if mergeErr != nil {
		r.logger.WithError(mergeErr).Error("recombination failed")
	}
	report.ChunksRecombined = recombined

	if err := errors.Join(loopErr, mergeErr); err != nil {
		return err
	}

	if r.opts.Cleanup {
		if err := r.checkpoints.Clear(); err != nil {
			r.logger.WithError(err).Warn("failed to remove checkpoint files")
		}
	}
	return nil
}

// openManifest starts a fresh checkpoint run, or continues the previous one
// in resume mode
func (r *Runner) openManifest(rows int) (*checkpoint.Manifest, error) {
	if r.opts.Resume {
		manifest, err := r.checkpoints.LoadManifest()
		if err != nil {
			return nil, err
		}
		if manifest != nil {
			if err := manifest.Compatible(r.opts.ChunkSize, rows); err != nil {
				return nil, err
			}
			r.logger.InfoWithFields("resuming checkpoint run", map[string]interface{}{
				"run_id":           manifest.RunID,
				"completed_chunks": len(manifest.CompletedChunks),
			})
			return manifest, nil
		}
	} else {
		ids, err := r.checkpoints.ChunkIDs()
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			r.logger.InfoWithFields("discarding checkpoints from a previous run", map[string]interface{}{
				"chunks": len(ids),
				"dir":    r.checkpoints.Dir(),
			})
		}
		if err := r.checkpoints.Clear(); err != nil {
			return nil, err
		}
	}

	return r.checkpoints.CreateManifest(r.opts.Source, r.opts.LabelColumn, r.opts.ChunkSize, rows)
}

// processChunks generates chunk after chunk, writing each one before
// moving on. A chunk file holds only the rows generated for it. It stops at
// the first write failure or cancellation.
func (r *Runner) processChunks(ctx context.Context, t *table.Table, manifest *checkpoint.Manifest, report *Report) error {
	size := r.opts.ChunkSize
	rows := t.Len()
	total := report.ChunksTotal

	for id := 0; id < total; id++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted before chunk %d: %w", id, err)
		}

		first := id * size
		last := first + size
		if last > rows {
			last = rows
		}

		var todo []int
		for row := first; row < last; row++ {
			if r.pending(t, row) {
				todo = append(todo, row)
			}
		}
		if len(todo) == 0 {
			report.Skipped += last - first
			report.ChunksSkipped++
			continue
		}
		report.Skipped += (last - first) - len(todo)

		chunk := checkpoint.Chunk{ID: id, Rows: make([]checkpoint.Row, 0, len(todo))}
		for _, row := range todo {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("interrupted in chunk %d: %w", id, err)
			}
			label, _ := t.Get(row, r.opts.LabelColumn)
			res := r.generate(ctx, row, label, report)
			chunk.Rows = append(chunk.Rows, checkpoint.Row{
				Index:      row,
				Label:      label,
				Definition: res.Definition(),
				Sources:    res.Sources,
			})
		}

		// a row cut short by cancellation must not be checkpointed as failed
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted in chunk %d: %w", id, err)
		}

		if err := r.checkpoints.SaveChunk(chunk); err != nil {
			return fmt.Errorf("checkpoint write failed: %w", err)
		}
		if err := r.checkpoints.MarkChunk(manifest, id); err != nil {
			return fmt.Errorf("checkpoint write failed: %w", err)
		}
		report.ChunksWritten++

		if r.observer != nil {
			r.observer.ChunkWritten(id, len(chunk.Rows))
		}
		logger.LogChunkProgress(r.logger, id, total, last, rows)
	}
	return nil
}

// recombine folds every chunk file on disk back into t by row position,
// skipping rows whose label no longer matches
func (r *Runner) recombine(t *table.Table, report *Report) (int, error) {
	chunks, err := r.checkpoints.LoadChunks()

	for _, chunk := range chunks {
		for _, row := range chunk.Rows {
			label, getErr := t.Get(row.Index, r.opts.LabelColumn)
			if getErr != nil || normalizeNewlines(label) != normalizeNewlines(row.Label) {
				report.Mismatched++
				r.logger.WarnWithFields("chunk row does not match table, skipped", map[string]interface{}{
					"chunk": chunk.ID,
					"row":   row.Index,
					"label": row.Label,
				})
				continue
			}
			if setErr := applyResult(t, row.Index, row.Definition, row.Sources); setErr != nil {
				return len(chunks), setErr
			}
		}
	}

	if err != nil {
		return len(chunks), fmt.Errorf("failed to load checkpoints: %w", err)
	}

	r.logger.InfoWithFields("chunks recombined", map[string]interface{}{
		"chunks":     len(chunks),
		"mismatched": report.Mismatched,
	})
	return len(chunks), nil
}
