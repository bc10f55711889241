package cli

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one signed reachability ping",
	Run:   runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)
	ctx := context.Background()

	app := newApp(ctx, cfg)
	defer func() { _ = app.Close(ctx) }()

	if err := app.Prober().Probe(ctx); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
	color.Green("✓ Reachability ping accepted by %s", cfg.Amboss.URL)
}
