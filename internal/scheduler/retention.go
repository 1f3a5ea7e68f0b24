package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes watermarks that have not been updated for a number of days.
type Purger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// Retention removes stale watermarks on a cron schedule.
type Retention struct {
	store    Purger
	days     int
	schedule string
	log      *slog.Logger
	parser   cron.Parser
}

// NewRetention validates schedule and returns a Retention job.
// Schedules use the five-field cron syntax or descriptors like @daily.
func NewRetention(store Purger, days int, schedule string, log *slog.Logger) (*Retention, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", schedule, err)
	}
	return &Retention{
		store:    store,
		days:     days,
		schedule: schedule,
		log:      log,
		parser:   parser,
	}, nil
}

// Start runs the sweep on schedule until ctx is cancelled.
// A non-positive retention disables the job.
func (r *Retention) Start(ctx context.Context) error {
	if r.days <= 0 {
		r.log.Info("watermark retention disabled")
		return nil
	}

	c := cron.New(cron.WithParser(r.parser), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(r.schedule, func() { _, _ = r.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	c.Start()
	r.log.Info("watermark retention scheduled", "schedule", r.schedule, "days", r.days)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Sweep deletes watermarks older than the retention period once.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.PurgeOlderThan(ctx, r.days)
	if err != nil {
		r.log.Error("purge watermarks", "days", r.days, "error", err)
		return 0, err
	}
	if n > 0 {
		r.log.Info("purged stale watermarks", "count", n, "days", r.days)
	}
	return n, nil
}
