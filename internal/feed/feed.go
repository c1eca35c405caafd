// Package feed runs one fetch-and-transform pass over the meetings table.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/clickonetwo/airtable-tsml-feed/internal/log"
	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
	"github.com/clickonetwo/airtable-tsml-feed/internal/tsml"
)

// RowSource yields every row of the export view, in order.
type RowSource interface {
	FetchRows(ctx context.Context) ([]model.Row, error)
}

// Result is one pass over the table.
type Result struct {
	Records    []model.Tsml
	Skipped    []*tsml.RowError
	Fetched    int
	Suppressed int
}

// Service builds the feed. It holds no per-request state.
type Service struct {
	source      RowSource
	transformer *tsml.Transformer
	clock       func() time.Time
	opts        tsml.Options
}

// NewService returns a Service. A nil clock means time.Now.
func NewService(source RowSource, transformer *tsml.Transformer, clock func() time.Time, opts tsml.Options) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{source: source, transformer: transformer, clock: clock, opts: opts}
}

// Build fetches all rows, then transforms them. A fetch failure, or a row
// failure when rows are not being skipped, fails the whole pass.
func (s *Service) Build(ctx context.Context) (Result, error) {
	return s.build(ctx, s.opts)
}

// Audit is Build with failing rows always skipped and reported.
func (s *Service) Audit(ctx context.Context) (Result, error) {
	opts := s.opts
	opts.SkipInvalid = true
	return s.build(ctx, opts)
}

func (s *Service) build(ctx context.Context, opts tsml.Options) (Result, error) {
	rows, err := s.source.FetchRows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch meetings: %w", err)
	}
	now := s.clock()

	batch, err := s.transformer.TransformAll(rows, now, opts)
	if err != nil {
		return Result{}, fmt.Errorf("transform meetings: %w", err)
	}
	for _, skipped := range batch.Skipped {
		log.Error("meeting row skipped", skipped.Err, "row", skipped.RowID, "index", skipped.Index)
	}
	log.Info("feed built",
		"fetched", len(rows),
		"exported", len(batch.Records),
		"suppressed", batch.Suppressed,
		"skipped", len(batch.Skipped),
	)
	return Result{
		Records:    batch.Records,
		Skipped:    batch.Skipped,
		Fetched:    len(rows),
		Suppressed: batch.Suppressed,
	}, nil
}
