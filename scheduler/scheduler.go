// Package scheduler implements the Scheduler of spec §4.11: a recurring-job
// registry driving fixed-interval, cron-spec, and event-triggered
// invocations, with per-job lifecycle events and a manual trigger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultTick is the scheduler's internal polling resolution. It must be
// fine enough to observe sub-second IntervalMs jobs (spec §8's end-to-end
// scenario uses a 100ms interval).
const defaultTick = 10 * time.Millisecond

var errUnknownJob = errors.New("scheduler: unknown job id")

// jobState is a job's live runtime bookkeeping, guarded by Scheduler.mu.
type jobState struct {
	job      Job
	cron     *CronSchedule
	running  bool
	lastRun  time.Time
	nextDue  time.Time
	runCount int
	enabled  bool
}

// Scheduler manages interval, cron, and event-triggered jobs and emits
// their lifecycle on a Bus.
type Scheduler struct {
	bus  *Bus
	tick time.Duration

	mu   sync.Mutex
	jobs map[string]*jobState

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
}

// New constructs a Scheduler publishing lifecycle events on bus.
func New(bus *Bus) *Scheduler {
	if bus == nil {
		bus = NewBus()
	}
	return &Scheduler{bus: bus, tick: defaultTick, jobs: make(map[string]*jobState)}
}

// Bus returns the scheduler's lifecycle event bus.
func (s *Scheduler) Bus() *Bus { return s.bus }

// WithTick overrides the internal polling resolution. Intended for tests
// that want a faster (or slower) sweep than defaultTick.
func (s *Scheduler) WithTick(d time.Duration) *Scheduler {
	if d > 0 {
		s.tick = d
	}
	return s
}

// Register adds job to the registry and emits a `scheduled` lifecycle
// event. A job with none of IntervalMs/CronSpec/OnEvent set is valid but
// only ever runs via TriggerNow.
func (s *Scheduler) Register(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("scheduler: job id is required")
	}
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %q has no Run function", job.ID)
	}

	st := &jobState{job: job, enabled: job.Enabled}

	if job.CronSpec != "" {
		expr, err := ParseCron(job.CronSpec)
		if err != nil {
			return err
		}
		st.cron = expr
	}

	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: job %q already registered", job.ID)
	}
	st.nextDue = s.firstDue(st, time.Now())
	s.jobs[job.ID] = st
	s.mu.Unlock()

	s.bus.publish(LifecycleEvent{Type: Scheduled, ScheduleID: job.ID, Timestamp: time.Now()})
	slog.Info("scheduler: registered job", "id", job.ID, "interval_ms", job.IntervalMs, "cron", job.CronSpec)
	return nil
}

func (s *Scheduler) firstDue(st *jobState, now time.Time) time.Time {
	switch {
	case st.cron != nil:
		return st.cron.Next(now)
	case st.job.IntervalMs > 0:
		return now.Add(time.Duration(st.job.IntervalMs) * time.Millisecond)
	default:
		return time.Time{}
	}
}

// Unregister removes a job from the registry. It does not interrupt an
// in-flight execution.
func (s *Scheduler) Unregister(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return errUnknownJob
	}
	delete(s.jobs, id)
	return nil
}

// Start begins the polling loop that drives interval and cron jobs. It
// returns immediately; the loop runs until Stop is called.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep fires every job whose timer has come due and is not already
// running, per invariant P6 (non-overlap).
func (s *Scheduler) sweep(now time.Time) {
	var due []*jobState
	s.mu.Lock()
	for _, st := range s.jobs {
		if !st.enabled || st.running {
			continue
		}
		if st.nextDue.IsZero() || st.nextDue.After(now) {
			continue
		}
		due = append(due, st)
	}
	s.mu.Unlock()

	for _, st := range due {
		s.fire(st, "timer")
	}
}

// PublishDomainEvent delivers e to every enabled, non-running event-triggered
// job whose trigger matches and whose cooldown has elapsed.
func (s *Scheduler) PublishDomainEvent(e DomainEvent) {
	now := time.Now()
	var due []*jobState
	s.mu.Lock()
	for _, st := range s.jobs {
		if !st.enabled || st.running || st.job.OnEvent == nil {
			continue
		}
		if !MatchEvent(e, st.job.OnEvent) {
			continue
		}
		if st.job.Cooldown > 0 && now.Sub(st.lastRun) < st.job.Cooldown {
			continue
		}
		due = append(due, st)
	}
	s.mu.Unlock()

	for _, st := range due {
		s.fire(st, "event:"+e.Type)
	}
}

// TriggerNow runs job immediately, independent of its timer. It returns an
// error if the job is unknown or already running (non-overlap holds even
// for manual triggers).
func (s *Scheduler) TriggerNow(id string) error {
	s.mu.Lock()
	st, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errUnknownJob
	}
	if st.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: job %q is already running", id)
	}
	s.mu.Unlock()

	s.fire(st, "manual")
	return nil
}

// fire claims st for execution and runs it on its own goroutine, emitting
// `triggered` immediately and `completed`/`failed` (and, if this was the
// job's last permitted execution, `exhausted`) when it returns.
func (s *Scheduler) fire(st *jobState, trigger string) {
	s.mu.Lock()
	if st.running {
		s.mu.Unlock()
		return
	}
	st.running = true
	st.lastRun = time.Now()
	st.runCount++
	job := st.job
	runCount := st.runCount
	s.mu.Unlock()

	s.bus.publish(LifecycleEvent{Type: Triggered, ScheduleID: job.ID, Timestamp: time.Now(), Payload: trigger})
	if job.OnTrigger != nil {
		job.OnTrigger(job)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := job.Run(context.Background(), job)

		s.mu.Lock()
		st.running = false
		if st.cron != nil {
			st.nextDue = st.cron.Next(time.Now())
		} else if job.IntervalMs > 0 {
			st.nextDue = time.Now().Add(time.Duration(job.IntervalMs) * time.Millisecond)
		}
		exhausted := job.MaxExecutions > 0 && runCount >= job.MaxExecutions
		if exhausted {
			st.enabled = false
		}
		s.mu.Unlock()

		if err != nil {
			slog.Error("scheduler: job failed", "id", job.ID, "error", err)
			s.bus.publish(LifecycleEvent{Type: Failed, ScheduleID: job.ID, Timestamp: time.Now(), Payload: err.Error()})
			if job.OnError != nil {
				job.OnError(job, err)
			}
		} else {
			s.bus.publish(LifecycleEvent{Type: Completed, ScheduleID: job.ID, Timestamp: time.Now()})
			if job.OnComplete != nil {
				job.OnComplete(job)
			}
		}

		if exhausted {
			slog.Info("scheduler: job exhausted", "id", job.ID, "runs", runCount)
			s.bus.publish(LifecycleEvent{Type: Exhausted, ScheduleID: job.ID, Timestamp: time.Now()})
		}
	}()
}

// Stop cancels the polling loop and awaits any in-flight executions up to
// deadline. Executions still running when the deadline passes are abandoned
// and reported via a `stopped` lifecycle event for their job id.
func (s *Scheduler) Stop(deadline time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(deadline):
		s.mu.Lock()
		var abandoned []string
		for id, st := range s.jobs {
			if st.running {
				abandoned = append(abandoned, id)
			}
		}
		s.mu.Unlock()
		for _, id := range abandoned {
			s.bus.publish(LifecycleEvent{Type: Stopped, ScheduleID: id, Timestamp: time.Now(), Payload: "abandoned at drain deadline"})
		}
	}
	slog.Info("scheduler: stopped")
}
