package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweave/agentweave/internal/core/ports"
)

func TestRunValidate_Success(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), nil)

	out, err := runCmd(t, validateCmd, path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, "test-agent")
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := runCmd(t, validateCmd, "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), func(cfg *ports.Configuration) {
		cfg.Agent.Name = ""
	})

	_, err := runCmd(t, validateCmd, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
