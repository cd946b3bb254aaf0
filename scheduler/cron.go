package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule wraps a parsed five-field cron expression.
type CronSchedule struct {
	raw      string
	schedule cron.Schedule
}

// ParseCron parses a standard minute/hour/dom/month/dow cron expression.
func ParseCron(expr string) (*CronSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse cron %q: %w", expr, err)
	}
	return &CronSchedule{raw: expr, schedule: schedule}, nil
}

// Next returns the next activation strictly after t.
func (c *CronSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// String returns the raw cron expression.
func (c *CronSchedule) String() string {
	return c.raw
}
