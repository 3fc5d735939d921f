package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/agentweave/agentweave/internal/core/ports"
)

// writeTestConfig writes a minimal valid configuration file to dir and
// returns its path.
func writeTestConfig(t *testing.T, dir string, mutate func(*ports.Configuration)) string {
	t.Helper()

	cfg := ports.GetDefaultConfiguration()
	cfg.Agent.Name = "test-agent"
	cfg.Agent.TrustDomain = "agents.internal"
	if mutate != nil {
		mutate(cfg)
	}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
