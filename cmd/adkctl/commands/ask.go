package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a message to the configured agent and print the response",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "app",
				Aliases: []string{"a"},
				Usage:   "App name the session belongs to",
				Value:   "adkctl",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User ID the session belongs to",
				Value: "local",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session ID to resume (empty = new session)",
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	message := cmd.Args().First()
	if message == "" {
		return fmt.Errorf("usage: adkctl ask <message>")
	}

	rt, err := buildRuntime(ctx, cmd.String("config"))
	if err != nil {
		return err
	}

	appName, userID := cmd.String("app"), cmd.String("user")
	sessionID := cmd.String("session")

	if sessionID == "" {
		sess, err := rt.sessions.CreateSession(ctx, appName, userID, nil)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = sess.ID
		fmt.Printf("session: %s\n", sessionID)
	}

	reply, err := rt.runner.Ask(ctx, appName, userID, sessionID, message)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(reply)
	return nil
}
