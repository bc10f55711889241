package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/watch/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loop status of a running instance",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(statusURL(cfg, serverAddr) + "/health/detailed")
	if err != nil {
		slog.Error("Failed to reach vitality", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var report health.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode status", "error", err)
		os.Exit(1)
	}

	fmt.Printf("System: %s\n", paint(report.SystemStatus))
	if report.Node != nil {
		fmt.Printf("Node transport: %s (available=%t, error rate %.2f, %d requests)\n",
			report.Node.Transport, report.Node.Available, report.Node.ErrorRate, report.Node.Requests)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "LOOP\tSTATUS\tRUNS\tFAILURES\tSLACKERS\tLAST SUCCESS\tINTERVAL\tLAST ERROR")
	for name, ls := range report.Loops {
		last := "-"
		if !ls.LastSuccess.IsZero() {
			last = ls.LastSuccess.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			name, ls.Status, ls.Runs, ls.ConsecutiveFailures, ls.Slackers, last, ls.Interval, ls.LastError)
	}
	_ = w.Flush()
}

func paint(s health.SystemStatus) string {
	switch s {
	case health.StatusHealthy:
		return color.GreenString(string(s))
	case health.StatusDegraded:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
