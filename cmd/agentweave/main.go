// Command agentweave is the CLI entry point for agentweave's external
// interfaces (spec.md §6): validate, serve, ping, card generate, authz check
// and health. Exit code 0 on success, 1 on failure, per spec.md §6's CLI
// contract; Cobra's own usage/flag errors use its standard exit code.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentweave/agentweave/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
