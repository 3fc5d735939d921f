package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentweave/agentweave/internal/adapters/secondary/config"
	"github.com/agentweave/agentweave/pkg/agentweave"
)

var (
	serveHost string //nolint:gochecknoglobals // Cobra flag binding
	servePort int     //nolint:gochecknoglobals // Cobra flag binding
)

var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "serve <file>",
	Short: "Start an agent from a configuration file",
	Long: `Serve loads the configuration file, builds the identity provider,
authorization enforcer and request server it describes, and blocks until
interrupted (Ctrl+C) or the listener fails.

It registers no capabilities of its own: a program embedding agentweave
registers capabilities in code via Agent.RegisterCapability before calling
Serve. This command is useful to smoke-test a deployment's identity,
authorization and listener wiring end to end without writing a capability.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() { //nolint:gochecknoinits // Cobra requires init for flag setup
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override server.host from the configuration file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override server.port from the configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	provider := config.NewFileProvider()
	cfg, err := provider.LoadConfiguration(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	agent, err := agentweave.New(cfg)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}
	defer agent.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "serving %s on %s:%d (Ctrl+C to stop)\n", cfg.Agent.Name, cfg.Server.Host, cfg.Server.Port)
	if err := agent.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
