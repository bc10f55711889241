package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/watch/health"
)

var serverAddr string

var setCmd = &cobra.Command{
	Use:   "set <option> <value>",
	Short: "Change an option on a running instance",
	Long: `Change an option on a running instance through its status server. The change is
persisted and survives a restart. Options:

` + optionList(),
	Args: cobra.ExactArgs(2),
	Run:  runSet,
}

var unsetCmd = &cobra.Command{
	Use:   "unset <option>",
	Short: "Drop a persisted option change on a running instance",
	Long: `Drop the persisted change of an option on a running instance. The option
returns to its value from the config file.`,
	Args: cobra.ExactArgs(1),
	Run:  runUnset,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "status server of the running instance (default http://127.0.0.1:<server.port>)")
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(unsetCmd)
}

func optionList() string {
	var b bytes.Buffer
	for _, id := range config.Options() {
		fmt.Fprintf(&b, "  %s\n", id.Name())
	}
	return b.String()
}

// rawValue encodes arg for the option kind. Bool and int options keep
// JSON literals (true, 144); everything else is sent as a string.
func rawValue(id config.OptionID, arg string) json.RawMessage {
	switch id.Kind() {
	case config.KindBool, config.KindInt:
		if json.Valid([]byte(arg)) {
			return json.RawMessage(arg)
		}
	}
	quoted, _ := json.Marshal(arg)
	return quoted
}

func runSet(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)

	id, err := config.ParseOptionName(args[0])
	if err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}

	body, _ := json.Marshal(health.SetRequest{Config: args[0], Val: rawValue(id, args[1])})
	req, _ := http.NewRequest(http.MethodPost, statusURL(cfg, serverAddr)+"/config", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if err := callConfig(req); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
	color.Green("✓ %s = %s", args[0], args[1])
}

func runUnset(cmd *cobra.Command, args []string) {
	cfg, _ := setup(cmd)

	id, err := config.ParseOptionName(args[0])
	if err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}

	req, _ := http.NewRequest(http.MethodDelete, statusURL(cfg, serverAddr)+"/config/"+url.PathEscape(id.Name()), nil)
	if err := callConfig(req); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
	color.Green("✓ %s reset to the config file value", id.Name())
}

// callConfig sends req to the status server and turns a non-200 answer
// into its error message.
func callConfig(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach vitality: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(out, &apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return errors.New(apiErr.Error)
}
