// Package config loads agentweave's Configuration from a YAML file, with
// AGENTWEAVE_* environment variables always taking precedence.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/agentweave/agentweave/internal/core/errors"
	"github.com/agentweave/agentweave/internal/core/ports"
)

// FileProvider is a ports.ConfigurationProvider backed by a YAML file on disk.
type FileProvider struct{}

// NewFileProvider creates a FileProvider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// LoadConfiguration reads and validates the configuration at path, then
// applies any AGENTWEAVE_* environment overrides on top of it.
func (p *FileProvider) LoadConfiguration(ctx context.Context, path string) (*ports.Configuration, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &errors.ValidationError{
			Field:   "path",
			Value:   path,
			Message: "configuration file path cannot be empty or whitespace",
		}
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config file path: %w", err)
	}

	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("configuration loading canceled: %w", ctx.Err())
		default:
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ports.Configuration
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.MergeWithEnvironment(); err != nil {
		return nil, fmt.Errorf("invalid configuration in file %s: %w", path, err)
	}

	return &config, nil
}

// GetDefaultConfiguration returns safe, explicit local-development defaults.
// It never blocks, so it ignores ctx cancellation.
func (p *FileProvider) GetDefaultConfiguration(ctx context.Context) *ports.Configuration {
	return ports.GetDefaultConfiguration()
}
