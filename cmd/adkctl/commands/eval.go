package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/silfenpath/adk/eval"
)

// NewEvalCommand returns the eval subcommand: it replays an eval set file
// against the configured agent and reports the per-metric verdict.
func NewEvalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Run an eval set against the configured agent",
		ArgsUsage: "<eval-set.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "app",
				Aliases: []string{"a"},
				Usage:   "App name the eval sessions run under",
				Value:   "adkctl-eval",
			},
			&cli.Float64Flag{
				Name:  "response-match",
				Usage: "Minimum response_match_score to pass",
				Value: 0.7,
			},
			&cli.Float64Flag{
				Name:  "tool-trajectory",
				Usage: "Minimum tool_trajectory_avg_score to pass",
				Value: 1.0,
			},
			&cli.Float64Flag{
				Name:  "safety",
				Usage: "Minimum safety_v1 score to pass",
				Value: 1.0,
			},
		},
		Action: runEval,
	}
}

func runEval(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: adkctl eval <eval-set.yaml>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read eval set: %w", err)
	}
	var set eval.EvalSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("parse eval set: %w", err)
	}

	rt, err := buildRuntime(ctx, cmd.String("config"))
	if err != nil {
		return err
	}

	criteria := eval.Criteria{
		eval.MetricResponseMatch:  cmd.Float64("response-match"),
		eval.MetricToolTrajectory: cmd.Float64("tool-trajectory"),
		eval.MetricSafety:         cmd.Float64("safety"),
	}

	result, err := eval.New(rt.runner, rt.sessions, cmd.String("app")).Run(ctx, set, criteria)
	if err != nil {
		return fmt.Errorf("run eval: %w", err)
	}

	for metric, score := range result.Metrics {
		fmt.Printf("%-28s %.3f\n", metric, score)
	}
	fmt.Printf("verdict: %s\n", result.Verdict)
	for _, failure := range result.Failures {
		fmt.Printf("  failed: %s\n", failure)
	}

	if result.Verdict == eval.Fail {
		return fmt.Errorf("eval set %q failed", set.EvalSetID)
	}
	return nil
}
