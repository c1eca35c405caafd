package tsml

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
)

// Options controls TransformAll.
type Options struct {
	// Workers bounds concurrent row transforms. Zero means GOMAXPROCS.
	Workers int
	// SkipInvalid drops failing rows into BatchResult.Skipped instead of
	// failing the whole batch.
	SkipInvalid bool
}

// RowError ties a transform failure to its position in the input.
type RowError struct {
	Index int
	RowID string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.RowID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// BatchResult is the outcome of TransformAll.
type BatchResult struct {
	Records    []model.Tsml
	Skipped    []*RowError
	Suppressed int
}

type rowResult struct {
	rec     model.Tsml
	visible bool
	err     error
}

// TransformAll transforms rows concurrently and returns the visible records
// in input order. Without SkipInvalid the first failing row (by input
// position) aborts the batch.
func (t *Transformer) TransformAll(rows []model.Row, now time.Time, opts Options) (BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]rowResult, len(rows))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range rows {
		g.Go(func() error {
			rec, ok, err := t.Transform(rows[i], now)
			results[i] = rowResult{rec: rec, visible: ok, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Records: make([]model.Tsml, 0, len(rows))}
	for i, r := range results {
		if r.err != nil {
			rowErr := &RowError{Index: i, RowID: rows[i].ID, Err: r.err}
			if !opts.SkipInvalid {
				return BatchResult{}, rowErr
			}
			out.Skipped = append(out.Skipped, rowErr)
			continue
		}
		if !r.visible {
			out.Suppressed++
			continue
		}
		out.Records = append(out.Records, r.rec)
	}
	return out, nil
}
