package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// defaultPollInterval is how often a scheduled sleep re-checks the
// task's finished flag so external cancellation takes effect within
// one poll interval.
const defaultPollInterval = 5 * time.Second

// NextRunDelay computes how long to wait before the next run.
// Interval schedules use a fixed period. Daily schedules target the
// next occurrence of the wall-clock time, rolling to tomorrow when
// today's occurrence has already passed.
func NextRunDelay(cfg *models.ScheduleConfig, now time.Time) (time.Duration, error) {
	if cfg == nil {
		return 0, fmt.Errorf("no schedule configured")
	}

	if cfg.IntervalMinutes > 0 {
		return time.Duration(cfg.IntervalMinutes) * time.Minute, nil
	}

	if cfg.DailyTime != "" {
		at, err := time.ParseInLocation("15:04", cfg.DailyTime, now.Location())
		if err != nil {
			return 0, fmt.Errorf("parse daily time %q: %w", cfg.DailyTime, err)
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next.Sub(now), nil
	}

	return 0, fmt.Errorf("empty schedule")
}

// sleepUntilNextRun sleeps for d in bounded increments, re-checking
// cancelled between increments. Returns true when the full delay
// elapsed, false when cancelled or the context ended.
func sleepUntilNextRun(ctx context.Context, d, poll time.Duration, cancelled func() bool) bool {
	if poll <= 0 {
		poll = defaultPollInterval
	}

	deadline := time.Now().Add(d)
	for {
		if cancelled() {
			return false
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > poll {
			remaining = poll
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(remaining):
		}
	}
}
