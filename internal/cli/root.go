// Package cli implements the agentweave command-line surface: validate,
// serve, ping, card generate, authz check and health (spec.md §6 "External
// interfaces" names this exact subcommand set). Grounded in the teacher's
// internal/cli/root.go cobra-root-plus-subcommand-files layout, and in
// original_source/agentweave/cli/main.py's command set, whose own
// implementations are explicit placeholders ("Note: this is a placeholder
// implementation") this package replaces with real wiring against the
// now-built identity, authorization, transport and request-server layers.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:     "agentweave",
	Short:   "Build and operate networked agents with workload identity and policy-based authorization",
	Version: "0.1.0",
}

// Execute runs the CLI to completion, returning a non-nil error on failure.
// Exit code plumbing (0 on success, 1 on failure) is the caller's
// responsibility, matching spec.md §6's CLI exit-code contract.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI bound to ctx, so callers (tests, or a future
// signal-aware main) can cancel it.
func ExecuteContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("agentweave: %w", err)
	}
	return nil
}

func init() { //nolint:gochecknoinits // Cobra requires init for command registration
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(authzCmd)
	rootCmd.AddCommand(healthCmd)
}
