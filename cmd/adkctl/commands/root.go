// Package commands implements the adkctl subcommands: a small CLI that
// wires a Config into a runnable Runner and drives it for ad-hoc asks,
// scheduler demos, and eval-set runs.
package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/silfenpath/adk/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:  "adkctl",
		Usage: "Drive an ADK agent runtime from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewAskCommand(),
			NewSchedulerCommand(),
			NewEvalCommand(),
			newVersionCommand(version, commit),
		},
	}
}

func newVersionCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the adkctl version",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("adkctl %s (%s)\n", version, commit)
			return nil
		},
	}
}
