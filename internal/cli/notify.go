package cli

import (
	"context"
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/infra/notify"
	"github.com/vietddude/vitality/internal/watch/health"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test notification through every enabled sink",
	Run:   runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)
	ctx := context.Background()

	app := newApp(ctx, cfg)
	defer func() { _ = app.Close(ctx) }()

	settings := app.Store().Snapshot()
	err := app.Dispatcher().Dispatch(ctx, settings, health.TestSubject, health.TestBody)
	switch {
	case errors.Is(err, notify.ErrNoSinks):
		color.Yellow("✗ Nothing was sent: no notification sink is configured")
		os.Exit(1)
	case err != nil:
		color.Red("✗ %v", err)
		os.Exit(1)
	}
	for _, s := range app.Dispatcher().Sinks(settings) {
		color.Green("✓ %s", s.Name())
	}
}
