// Package ports provides configuration builder for clean configuration construction.
package ports

import "fmt"

// ConfigurationBuilder provides a fluent interface for building configurations,
// starting from GetDefaultConfiguration and overriding only what the caller cares about.
type ConfigurationBuilder struct {
	config *Configuration
}

// NewConfigurationBuilder creates a builder seeded with safe development defaults.
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{config: GetDefaultConfiguration()}
}

// WithAgent sets the agent's name and trust domain.
func (b *ConfigurationBuilder) WithAgent(name, trustDomain string) *ConfigurationBuilder {
	b.config.Agent.Name = name
	b.config.Agent.TrustDomain = trustDomain
	return b
}

// WithIdentitySocket sets the SPIFFE Workload API socket path.
func (b *ConfigurationBuilder) WithIdentitySocket(socketPath string) *ConfigurationBuilder {
	b.config.Identity.Provider = "spiffe"
	b.config.Identity.Socket = socketPath
	return b
}

// WithStaticCredential switches the identity provider to the degraded
// file-based variant, reading its credential from path.
func (b *ConfigurationBuilder) WithStaticCredential(path string) *ConfigurationBuilder {
	b.config.Identity.Provider = "static"
	b.config.Identity.StaticCredentialPath = path
	return b
}

// WithAuthorization sets the policy engine endpoint, policy path and default action.
func (b *ConfigurationBuilder) WithAuthorization(endpoint, policyPath, defaultAction string) *ConfigurationBuilder {
	b.config.Authorization.Provider = "opa"
	b.config.Authorization.Endpoint = endpoint
	b.config.Authorization.PolicyPath = policyPath
	b.config.Authorization.DefaultAction = defaultAction
	return b
}

// WithAllowedTrustDomains restricts which peer trust domains are accepted.
func (b *ConfigurationBuilder) WithAllowedTrustDomains(domains []string) *ConfigurationBuilder {
	b.config.Identity.AllowedTrustDomains = domains
	return b
}

// WithServerAddress sets the request server's listen host and port.
func (b *ConfigurationBuilder) WithServerAddress(host string, port int) *ConfigurationBuilder {
	b.config.Server.Host = host
	b.config.Server.Port = port
	return b
}

// Build constructs and validates the final configuration.
func (b *ConfigurationBuilder) Build() (*Configuration, error) {
	if b.config.Agent.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if b.config.Agent.TrustDomain == "" {
		return nil, fmt.Errorf("trust domain is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return b.config, nil
}

// BuildUnsafe constructs the configuration without validation (for testing).
func (b *ConfigurationBuilder) BuildUnsafe() *Configuration {
	return b.config
}
