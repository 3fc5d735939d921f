package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServe_ConfigNotFound(t *testing.T) {
	_, err := runCmd(t, serveCmd, "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
