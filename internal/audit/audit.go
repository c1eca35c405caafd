// Package audit periodically runs the feed with bad rows skipped, so that
// rows the export would reject show up in the logs before a client asks
// for the feed.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clickonetwo/airtable-tsml-feed/internal/feed"
	appLog "github.com/clickonetwo/airtable-tsml-feed/internal/log"
)

// Auditor runs one skip-invalid feed pass.
type Auditor interface {
	Audit(ctx context.Context) (feed.Result, error)
}

// Scheduler runs audits on a cron schedule.
type Scheduler struct {
	auditor  Auditor
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	timeout  time.Duration
}

// NewScheduler parses spec (standard 5-field cron) in loc. Each run is
// bounded by timeout.
func NewScheduler(spec string, loc *time.Location, timeout time.Duration, auditor Auditor) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("audit schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		auditor:  auditor,
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: sched,
		loc:      loc,
		timeout:  timeout,
	}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		_, _ = s.RunOnce(context.Background())
	}))
	return s, nil
}

// Start begins running scheduled audits in the background.
func (s *Scheduler) Start() {
	appLog.Info("audit scheduler started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running audit to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	appLog.Info("audit scheduler stopped")
}

// Next reports the first scheduled run after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

// RunOnce performs one audit and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (feed.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.auditor.Audit(ctx)
	if err != nil {
		appLog.Error("audit failed", err)
		return res, err
	}
	appLog.Info("audit completed",
		"fetched", res.Fetched,
		"exported", len(res.Records),
		"suppressed", res.Suppressed,
		"rejected", len(res.Skipped),
	)
	return res, nil
}
