package scheduler

import (
	"context"
	"time"
)

// JobFunc is the work a job performs when triggered, whether by its timer,
// a matching domain event, or a manual TriggerNow call. It typically closes
// over a runner.Runner and invokes Ask/RunAsync against job.UserID/SessionID.
type JobFunc func(ctx context.Context, job Job) error

// EventTrigger fires a job when a DomainEvent matching Event (and, if set,
// every key/value in Filter) is published via Scheduler.PublishDomainEvent.
type EventTrigger struct {
	Event  string
	Filter map[string]string
}

// DomainEvent is the minimal shape an external event source must produce to
// drive an event-triggered job. It is intentionally decoupled from the
// telemetry bus's richer span model so this package carries no dependency
// on it.
type DomainEvent struct {
	Type    string
	Payload map[string]any
}

// MatchEvent reports whether e satisfies trigger: the type matches exactly
// and every filter key is present in the payload with the expected string
// value.
func MatchEvent(e DomainEvent, trigger *EventTrigger) bool {
	if trigger == nil {
		return false
	}
	if e.Type != trigger.Event {
		return false
	}
	for key, expected := range trigger.Filter {
		val, ok := e.Payload[key]
		if !ok {
			return false
		}
		strVal, ok := val.(string)
		if !ok || strVal != expected {
			return false
		}
	}
	return true
}

// Job is a registered recurring (or event-triggered) invocation, per spec
// §4.11. Exactly one of IntervalMs, CronSpec, or OnEvent should be set to
// give the job a timer or event source; a job with none of the three can
// still be fired manually via Scheduler.TriggerNow.
type Job struct {
	ID        string
	UserID    string
	SessionID string
	Input     any

	IntervalMs int
	CronSpec   string
	OnEvent    *EventTrigger

	MaxExecutions int
	Enabled       bool
	Cooldown      time.Duration

	Run JobFunc

	OnTrigger  func(Job)
	OnComplete func(Job)
	OnError    func(Job, error)
}
