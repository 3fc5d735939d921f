package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentweave/agentweave/internal/adapters/secondary/config"
)

var validateCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "validate <file>",
	Short: "Validate an agent configuration file",
	Long: `Validate loads the configuration file, applies AGENTWEAVE_* environment
overrides and runs the full validation ruleset (struct tags plus the
production-security checklist when agent.environment is "production").`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	provider := config.NewFileProvider()
	cfg, err := provider.LoadConfiguration(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: agent=%s trust_domain=%s identity_provider=%s authorization_provider=%s server=%s:%d\n",
		cfg.Agent.Name, cfg.Agent.TrustDomain, cfg.Identity.Provider, cfg.Authorization.Provider, cfg.Server.Host, cfg.Server.Port)
	return nil
}
