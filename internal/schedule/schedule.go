// Package schedule runs a job on a five-field POSIX cron schedule
// evaluated in UTC, or once when no schedule is configured.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Parse validates and compiles a five-field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	return cron.ParseStandard(expr)
}

// Next returns the next occurrence of the schedule strictly after now,
// in UTC.
func Next(sched cron.Schedule, now time.Time) time.Time {
	return sched.Next(now.UTC())
}

// Run invokes job immediately and then, when expr is non-empty, on
// every cron occurrence until the context ends. It returns the last
// job result; a cancelled wait returns the context error.
func Run(ctx context.Context, expr string, log *slog.Logger, job func(context.Context) error) error {
	err := job(ctx)

	if expr == "" {
		return err
	}

	sched, parseErr := Parse(expr)
	if parseErr != nil {
		// Config validation already rejected malformed schedules;
		// failing here means the config changed underneath us.
		return parseErr
	}

	for {
		next := Next(sched, time.Now())
		log.Info("next run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = job(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
