package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/watch/channels"
)

var dryRun bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one channel health check and print the report",
	Long: `Run one channel health check against the node. Without --dry-run slacking peers are
disconnected and reconnected and the remaining findings are sent to the enabled sinks.`,
	Run: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only inspect, do not remediate or notify")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)
	ctx := context.Background()

	app := newApp(ctx, cfg)
	defer func() { _ = app.Close(ctx) }()

	if _, err := app.CheckNode(ctx); err != nil {
		slog.Error("Node check failed", "error", err)
		os.Exit(1)
	}

	var (
		res *channels.Result
		err error
	)
	if dryRun {
		res, err = app.Cycle().Check(ctx)
	} else {
		res, err = app.Cycle().Run(ctx)
	}
	if err != nil {
		color.Red("Channel check failed: %v", err)
		os.Exit(1)
	}

	printReport(res)
}

func printReport(res *channels.Result) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)

	_, _ = bold.Printf("Node %s (%s) at height %d\n", res.Node.ID, res.Node.Network, res.Node.BlockHeight)

	remaining := res.Remaining()
	if remaining.Empty() {
		if res.Post != nil {
			color.Green("✓ %d slacking peer(s) recovered after remediation", res.Pre.Len())
			return
		}
		color.Green("✓ All channels healthy")
		return
	}

	_, _ = warn.Printf("✗ %d slacking peer(s), %d finding(s)\n\n", remaining.Len(), remaining.Count())
	fmt.Println(strings.TrimRight(res.Body, "\n"))

	switch {
	case res.Subject == "" || dryRun:
	case res.Dispatched:
		color.Green("\nReport sent")
	case res.DispatchErr != nil:
		color.Red("\nFailed to send report: %v", res.DispatchErr)
	}
}
