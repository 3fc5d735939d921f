package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentweave/agentweave/internal/adapters/secondary/config"
	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
	"github.com/agentweave/agentweave/internal/transport"
	"github.com/agentweave/agentweave/pkg/agentweave"
)

var (
	pingConfigFile string        //nolint:gochecknoglobals // Cobra flag binding
	pingAddr       string        //nolint:gochecknoglobals // Cobra flag binding
	pingTimeout    time.Duration //nolint:gochecknoglobals // Cobra flag binding
)

var pingCmd = &cobra.Command{ //nolint:gochecknoglobals // Cobra command pattern
	Use:   "ping <workload-id>",
	Short: "Verify mTLS connectivity to a peer agent and fetch its agent card",
	Long: `Ping dials the peer over mTLS, pinning the connection to the given
workload identifier, probes /health and fetches /.well-known/agent.json,
reporting round-trip latency.

Since a SPIFFE ID alone does not carry a network address, --addr selects
where to dial; workload-id is still what the connection is pinned to, so a
peer presenting any other identity on its certificate is rejected even if
reachable at that address.`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() { //nolint:gochecknoinits // Cobra requires init for flag setup
	pingCmd.Flags().StringVarP(&pingConfigFile, "config", "c", "", "Agent configuration file (for this agent's own identity)")
	pingCmd.Flags().StringVar(&pingAddr, "addr", "", "Network address of the peer, e.g. https://host:8443 (required)")
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "t", 5*time.Second, "Timeout for the ping")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	targetID, err := domain.ParseWorkloadIdentifier(args[0])
	if err != nil {
		return fmt.Errorf("invalid workload id %q: %w", args[0], err)
	}
	if pingAddr == "" {
		return fmt.Errorf("--addr is required")
	}
	if pingConfigFile == "" {
		return fmt.Errorf("--config is required")
	}

	provider := config.NewFileProvider()
	cfg, err := provider.LoadConfiguration(ctx, pingConfigFile)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, err)
	}

	identity, err := agentweave.NewIdentityProvider(cfg)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIdentity, err)
	}
	defer identity.Close()

	material, err := identity.BuildTLSMaterial(ctx, ports.TLSRoleClient)
	if err != nil {
		return fmt.Errorf("%w: build TLS material: %s", ErrIdentity, err)
	}
	tlsConfig, ok := material.Config().(*tls.Config)
	if !ok {
		return fmt.Errorf("%w: identity provider returned unexpected TLS material type %T", ErrIdentity, material.Config())
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	channel := transport.NewChannel(pingAddr, tlsConfig, targetID, pingTimeout)
	defer channel.Close()

	start := time.Now()
	if !channel.Healthy(pingCtx) {
		return fmt.Errorf("%w: %s did not respond healthy at %s", ErrUnreachable, args[0], pingAddr)
	}
	latency := time.Since(start)

	card, err := channel.FetchAgentCard(pingCtx)
	if err != nil {
		return fmt.Errorf("%w: fetch agent card: %s", ErrUnreachable, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy (%s)\n", args[0], latency)
	fmt.Fprintf(cmd.OutOrStdout(), "  name: %v\n", card["name"])
	fmt.Fprintf(cmd.OutOrStdout(), "  capabilities: %v\n", card["capabilities"])
	return nil
}
