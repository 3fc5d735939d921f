package cli

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthTimeout time.Duration //nolint:gochecknoglobals // Cobra flag binding

var healthCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "health <url>",
	Short: "Check an agent's /health endpoint",
	Long: `Health issues a GET against the given URL (typically
https://host:port/health) and reports latency and the decoded response body.

Certificate verification is intentionally skipped here: this command is a
reachability probe run from an operator's workstation, which generally holds
no workload credential of its own and so cannot perform the mTLS handshake a
peer agent would. It must never be used as a substitute for a real mTLS
health check between agents.`,
	Args: cobra.ExactArgs(1),
	RunE: runHealth,
}

func init() { //nolint:gochecknoinits // Cobra requires init for flag setup
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for the request")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client := &http.Client{
		Timeout:   healthTimeout,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}, //nolint:gosec // operator reachability probe only, see command docs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health endpoint returned status %d", ErrUnreachable, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "healthy (%s), non-JSON response body\n", latency)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "healthy (%s)\n", latency)
	for k, v := range body {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", k, v)
	}
	return nil
}
