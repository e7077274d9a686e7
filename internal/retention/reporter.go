// Package retention reports on soft-deleted events that have passed
// the retention horizon. The reporter only observes: restorable data is
// never purged automatically.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daymark-app/daymark/internal/events"
	"github.com/daymark-app/daymark/internal/platform/logutil"
	"github.com/daymark-app/daymark/internal/platform/metrics"
	"github.com/daymark-app/daymark/internal/store"
)

// DefaultSchedule runs the report once an hour.
const DefaultSchedule = "@hourly"

// Reporter periodically counts events past retention and publishes the
// number as a gauge and a log line.
type Reporter struct {
	store  store.EventStore
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron
}

// NewReporter creates a retention reporter. now may be nil for time.Now.
func NewReporter(st store.EventStore, logger *slog.Logger, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		store:  st,
		logger: logutil.NoopIfNil(logger),
		now:    now,
	}
}

// Start schedules the report with the given cron expression and runs it
// once immediately. An empty schedule uses DefaultSchedule.
func (r *Reporter) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Report(ctx) }); err != nil {
		return fmt.Errorf("invalid retention report schedule %q: %w", schedule, err)
	}

	r.cron = c
	c.Start()
	r.Report(ctx)
	return nil
}

// Stop cancels the schedule and waits for a running report to finish.
func (r *Reporter) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Report counts soft-deleted events whose retention window has elapsed
// and returns the count.
func (r *Reporter) Report(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-events.RetentionDays * 24 * time.Hour)

	n, err := r.store.CountDeletedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention report failed", "error", err)
		return 0, err
	}

	metrics.EventsPastRetention.Set(float64(n))
	if n > 0 {
		r.logger.Info("events past retention", "count", n, "cutoff", cutoff)
	} else {
		r.logger.Debug("no events past retention", "cutoff", cutoff)
	}
	return n, nil
}
