package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"finstack/internal/compose"
	"finstack/pkg/store"
)

// Dispatcher verbs. Each is a zero-argument command whose effect is one
// fixed docker compose invocation; the tool's exit code is compose's own.
var opCommands = []struct {
	op    compose.Op
	short string
}{
	{compose.OpBuild, "Build and start the stack (compose up --build -d --remove-orphans)"},
	{compose.OpDown, "Stop the stack (compose down)"},
	{compose.OpDownVolumes, "Stop the stack and remove volumes (compose down -v)"},
	{compose.OpMakeMigrations, "Generate database migrations in a disposable container"},
	{compose.OpMigrate, "Apply database migrations in a disposable container"},
	{compose.OpShell, "Open an interactive shell in a disposable app container"},
	{compose.OpEnv, "Print the environment of a disposable app container"},
	{compose.OpSuperuser, "Create an admin user interactively in a disposable container"},
}

func init() {
	for _, entry := range opCommands {
		op := entry.op
		rootCmd.AddCommand(&cobra.Command{
			Use:   string(op),
			Short: entry.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOp(op)
			},
		})
	}
}

func runOp(op compose.Op) error {
	invoker := compose.New(composeConfig(), newLogger())

	started := time.Now()
	code, err := invoker.Invoke(context.Background(), op)
	if err != nil {
		return err
	}

	argv, _ := invoker.Args(op)
	recordHistory(&store.Record{
		Kind:       "compose",
		Name:       string(op),
		Argv:       store.FormatArgv(append([]string{"docker"}, argv...)),
		StartedAt:  started,
		FinishedAt: time.Now(),
		ExitCode:   code,
	})

	if code != 0 {
		os.Exit(code)
	}
	return nil
}
