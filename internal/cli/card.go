package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentweave/agentweave/internal/adapters/secondary/config"
	"github.com/agentweave/agentweave/internal/core/domain"
)

var cardOutput string //nolint:gochecknoglobals // Cobra flag binding

var cardCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "card",
	Short: "Agent card operations",
}

var cardGenerateCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "generate <file>",
	Short: "Generate an agent card from a configuration file",
	Long: `Generate builds the agent.json document a running agent would publish
at /.well-known/agent.json directly from its configuration file, without
contacting a live identity provider -- the workload identifier is derived
from agent.trust_domain and agent.name per spec.md's
spiffe://<trust-domain>/agent/<name> convention, the same derivation
original_source/agentweave/cli/main.py's card_generate command uses.`,
	Args: cobra.ExactArgs(1),
	RunE: runCardGenerate,
}

func init() { //nolint:gochecknoinits // Cobra requires init for flag setup
	cardGenerateCmd.Flags().StringVarP(&cardOutput, "output", "o", "", "Output file (default: stdout)")
	cardCmd.AddCommand(cardGenerateCmd)
}

func runCardGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	provider := config.NewFileProvider()
	cfg, err := provider.LoadConfiguration(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, err)
	}

	identifier, err := domain.NewWorkloadIdentifier(cfg.Agent.TrustDomain, "agent/"+cfg.Agent.Name)
	if err != nil {
		return fmt.Errorf("derive workload identifier: %w", err)
	}

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	url := fmt.Sprintf("https://%s:%d", host, cfg.Server.Port)

	card := domain.NewAgentCard(cfg.Agent.Name, cfg.Agent.Description, url, "1.0", identifier)
	for _, name := range cfg.Agent.Capabilities {
		card.RegisterCapability(domain.Capability{Name: name})
	}

	out, err := json.MarshalIndent(card.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode agent card: %w", err)
	}

	if cardOutput != "" {
		if err := os.WriteFile(cardOutput, out, 0o644); err != nil {
			return fmt.Errorf("write agent card to %s: %w", cardOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent card written to %s\n", cardOutput)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
