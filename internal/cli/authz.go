package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentweave/agentweave/internal/adapters/secondary/policy"
)

var (
	authzCaller     string //nolint:gochecknoglobals // Cobra flag binding
	authzCallee     string //nolint:gochecknoglobals // Cobra flag binding
	authzAction     string //nolint:gochecknoglobals // Cobra flag binding
	authzEndpoint   string //nolint:gochecknoglobals // Cobra flag binding
	authzPolicyPath string //nolint:gochecknoglobals // Cobra flag binding
)

var authzCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "authz",
	Short: "Authorization policy operations",
}

var authzCheckCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "check",
	Short: "Query the policy engine for an authorization decision",
	Long: `Check queries the external policy engine directly, using the same
policy.Client the running server's AuthorizationService wraps, without
touching the decision cache or circuit breaker -- useful for debugging why a
particular caller/callee/action combination is allowed or denied.`,
	RunE: runAuthzCheck,
}

func init() { //nolint:gochecknoinits // Cobra requires init for flag setup
	authzCheckCmd.Flags().StringVar(&authzCaller, "caller", "", "Caller workload identifier")
	authzCheckCmd.Flags().StringVar(&authzCallee, "callee", "", "Callee workload identifier")
	authzCheckCmd.Flags().StringVar(&authzAction, "action", "", "Action/capability being invoked")
	authzCheckCmd.Flags().StringVar(&authzEndpoint, "opa-endpoint", "http://localhost:8181", "Policy engine endpoint")
	authzCheckCmd.Flags().StringVar(&authzPolicyPath, "policy-path", "agentweave/authz", "Policy path")
	_ = authzCheckCmd.MarkFlagRequired("caller")
	_ = authzCheckCmd.MarkFlagRequired("callee")
	_ = authzCheckCmd.MarkFlagRequired("action")
	authzCmd.AddCommand(authzCheckCmd)
}

func runAuthzCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client := policy.NewClient(authzEndpoint, 5*time.Second)
	input := map[string]any{
		"caller_spiffe_id": authzCaller,
		"callee_spiffe_id": authzCallee,
		"action":           authzAction,
	}

	decision, err := client.Evaluate(ctx, authzPolicyPath, input)
	if err != nil {
		return fmt.Errorf("query policy engine at %s: %w", authzEndpoint, err)
	}

	if decision.Allowed {
		fmt.Fprintln(cmd.OutOrStdout(), "ALLOWED")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "DENIED")
	}
	if decision.Reason != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "reason: %s\n", decision.Reason)
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return nil
}
