package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/silfenpath/adk/scheduler"
)

// NewSchedulerCommand returns the scheduler demo subcommand: it registers
// one interval job and prints its lifecycle events until interrupted.
func NewSchedulerCommand() *cli.Command {
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Run a demo interval job and print its lifecycle events",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "interval-ms",
				Usage: "Job interval in milliseconds",
				Value: 1000,
			},
		},
		Action: runScheduler,
	}
}

func runScheduler(ctx context.Context, cmd *cli.Command) error {
	sched := scheduler.New(nil)

	unsubscribe := sched.Bus().Subscribe(func(ev scheduler.LifecycleEvent) {
		fmt.Printf("[%s] job=%s %s\n", ev.Timestamp.Format("15:04:05"), ev.ScheduleID, ev.Type)
	})
	defer unsubscribe()

	count := 0
	err := sched.Register(scheduler.Job{
		ID:         "demo-tick",
		IntervalMs: cmd.Int("interval-ms"),
		Enabled:    true,
		Run: func(context.Context, scheduler.Job) error {
			count++
			fmt.Printf("tick %d\n", count)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	sched.Stop(2 * time.Second)
	return nil
}
