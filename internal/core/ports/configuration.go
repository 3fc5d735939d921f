// Package ports defines interfaces for core services and domain boundaries.
package ports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

// Configuration is the full on-disk/environment configuration schema for an
// agent, matching the agent/identity/authorization/transport/server/
// observability sections an operator writes in a YAML file.
type Configuration struct {
	Agent         AgentConfig         `yaml:"agent" validate:"required"`
	Identity      IdentityConfig      `yaml:"identity" validate:"required"`
	Authorization AuthorizationConfig `yaml:"authorization" validate:"required"`
	Transport     TransportConfig     `yaml:"transport"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AgentConfig identifies this agent and what it publishes on its agent card.
type AgentConfig struct {
	Name         string   `yaml:"name" validate:"required,min=1"`
	TrustDomain  string   `yaml:"trust_domain" validate:"required"`
	Description  string   `yaml:"description"`
	Environment  string   `yaml:"environment" validate:"omitempty,oneof=development staging production"`
	Capabilities []string `yaml:"capabilities"`
}

// IdentityConfig configures how the agent obtains its workload credential.
type IdentityConfig struct {
	Provider             string   `yaml:"provider" validate:"required,oneof=spiffe static"`
	Socket               string   `yaml:"socket"`
	StaticCredentialPath string   `yaml:"static_credential_path"`
	AllowedTrustDomains  []string `yaml:"allowed_trust_domains"`
}

// AuditConfig controls whether/where authorization decisions are recorded.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Destination string `yaml:"destination" validate:"omitempty,oneof=stdout file multi"`
	FilePath    string `yaml:"file_path"`
}

// AuthorizationConfig configures the external policy engine and its fallback behavior.
type AuthorizationConfig struct {
	Provider      string      `yaml:"provider" validate:"required,oneof=opa allow-all deny-all"`
	Endpoint      string      `yaml:"endpoint"`
	PolicyPath    string      `yaml:"policy_path"`
	DefaultAction string      `yaml:"default_action" validate:"required,oneof=allow deny"`
	CacheSize     int         `yaml:"cache_size"`
	CacheTTL      string      `yaml:"cache_ttl"`
	Audit         AuditConfig `yaml:"audit"`
}

// ConnectionPoolConfig bounds the secure channel's connection pool.
type ConnectionPoolConfig struct {
	MaxPerTarget  int    `yaml:"max_per_target"`
	MaxTotal      int    `yaml:"max_total"`
	IdleTimeout   string `yaml:"idle_timeout"`
	HealthCheckInterval string `yaml:"health_check_interval"`
}

// CircuitBreakerConfig configures the per-peer circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	SuccessThreshold int    `yaml:"success_threshold"`
	RecoveryTimeout  string `yaml:"recovery_timeout"`
}

// RetryConfig configures the exponential-backoff retry policy.
type RetryConfig struct {
	MaxRetries       int     `yaml:"max_retries"`
	BaseDelay        string  `yaml:"base_delay"`
	MaxDelay         string  `yaml:"max_delay"`
	ExponentialBase  float64 `yaml:"exponential_base"`
	Jitter           bool    `yaml:"jitter"`
}

// TransportConfig configures the mTLS secure channel.
type TransportConfig struct {
	TLSMinVersion    string               `yaml:"tls_min_version" validate:"omitempty,oneof=1.2 1.3"`
	PeerVerification string               `yaml:"peer_verification" validate:"omitempty,oneof=strict none"`
	ConnectionPool   ConnectionPoolConfig `yaml:"connection_pool"`
	CircuitBreaker   CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry            RetryConfig          `yaml:"retry"`
}

// ServerConfig configures the request server's listen address.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Protocol string `yaml:"protocol" validate:"omitempty,oneof=http grpc"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Port    int    `yaml:"port"`
}

// TracingConfig configures distributed tracing export (currently unused by
// core request handling; reserved for an exporter binding).
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// ObservabilityConfig groups the metrics/tracing/logging settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

var configValidator = validator.New()

// Validate checks the configuration against its struct tags and the
// cross-field rules the tags can't express (e.g. identity provider vs
// static_credential_path pairing).
func (c *Configuration) Validate() error {
	if c == nil {
		return cerrors.ErrValidationFailed.WithMessage("configuration cannot be nil")
	}

	if err := configValidator.Struct(c); err != nil {
		return cerrors.ErrValidationFailed.WithCause(err)
	}

	if c.Identity.Provider == "static" && c.Identity.StaticCredentialPath == "" {
		return &cerrors.ValidationError{
			Field:   "identity.static_credential_path",
			Value:   c.Identity.StaticCredentialPath,
			Message: "required when identity.provider is \"static\"",
		}
	}
	if c.Identity.Provider == "spiffe" && c.Identity.Socket == "" {
		return &cerrors.ValidationError{
			Field:   "identity.socket",
			Value:   c.Identity.Socket,
			Message: "required when identity.provider is \"spiffe\"",
		}
	}

	return nil
}

// ConfigurationProvider loads and supplies configurations from a backing store.
type ConfigurationProvider interface {
	// LoadConfiguration loads configuration from the given file path, applying
	// environment-variable overrides on top of it.
	LoadConfiguration(ctx context.Context, path string) (*Configuration, error)

	// GetDefaultConfiguration returns a configuration with safe, explicit
	// (non-production) defaults suitable for local development.
	GetDefaultConfiguration(ctx context.Context) *Configuration
}

// Environment variable names. MergeWithEnvironment applies every one except
// EnvDebugEnabled (read by IsProductionReady), and a set AGENTWEAVE_* variable
// overrides the file-provided value.
const (
	EnvAgentName           = "AGENTWEAVE_AGENT_NAME"
	EnvTrustDomain         = "AGENTWEAVE_TRUST_DOMAIN"
	EnvIdentitySocket      = "AGENTWEAVE_IDENTITY_SOCKET"
	EnvAuthzEndpoint       = "AGENTWEAVE_AUTHZ_ENDPOINT"
	EnvAuthzDefaultAction  = "AGENTWEAVE_AUTHZ_DEFAULT_ACTION"
	EnvAllowedTrustDomains = "AGENTWEAVE_ALLOWED_TRUST_DOMAINS"
	EnvLogLevel            = "AGENTWEAVE_LOG_LEVEL"
	EnvServerPort          = "AGENTWEAVE_SERVER_PORT"
	EnvTLSMinVersion       = "AGENTWEAVE_TLS_MIN_VERSION"
	EnvDebugEnabled        = "AGENTWEAVE_DEBUG_ENABLED"
)

// GetDefaultConfiguration returns safe, explicit local-development defaults:
// SPIFFE identity provider on the local SPIRE agent socket, deny-by-default
// authorization with audit on, and
// strict peer verification. Nothing here is production-ready on its own;
// IsProductionReady still gates a production rollout.
func GetDefaultConfiguration() *Configuration {
	return &Configuration{
		Agent: AgentConfig{
			Environment: "development",
		},
		Identity: IdentityConfig{
			Provider: "spiffe",
			Socket:   "/tmp/spire-agent/public/api.sock",
		},
		Authorization: AuthorizationConfig{
			Provider:      "deny-all",
			DefaultAction: "deny",
			CacheSize:     1024,
			CacheTTL:      "30s",
			Audit: AuditConfig{
				Enabled:     true,
				Destination: "stdout",
			},
		},
		Transport: TransportConfig{
			TLSMinVersion:    "1.3",
			PeerVerification: "strict",
			ConnectionPool: ConnectionPoolConfig{
				MaxPerTarget:        10,
				MaxTotal:            100,
				IdleTimeout:         "60s",
				HealthCheckInterval: "30s",
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				RecoveryTimeout:  "30s",
			},
			Retry: RetryConfig{
				MaxRetries:      3,
				BaseDelay:       "1s",
				MaxDelay:        "30s",
				ExponentialBase: 2.0,
				Jitter:          true,
			},
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8443,
			Protocol: "http",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

// MergeWithEnvironment overrides file-provided values with any AGENTWEAVE_*
// environment variables that are set, then re-validates.
func (c *Configuration) MergeWithEnvironment() error {
	if v := os.Getenv(EnvAgentName); v != "" {
		c.Agent.Name = v
	}
	if v := os.Getenv(EnvTrustDomain); v != "" {
		c.Agent.TrustDomain = v
	}
	if v := os.Getenv(EnvIdentitySocket); v != "" {
		c.Identity.Socket = v
	}
	if v := os.Getenv(EnvAuthzEndpoint); v != "" {
		c.Authorization.Endpoint = v
	}
	if v := os.Getenv(EnvAuthzDefaultAction); v != "" {
		c.Authorization.DefaultAction = v
	}
	if v := os.Getenv(EnvAllowedTrustDomains); v != "" {
		c.Identity.AllowedTrustDomains = parseCommaSeparatedList(v)
	}
	if v := os.Getenv(EnvTLSMinVersion); v != "" {
		c.Transport.TLSMinVersion = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Observability.Logging.Level = v
	}

	return c.Validate()
}

func parseCommaSeparatedList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// validateProductionSecurity enforces spec.md §6's production checklist:
// default_action must be deny, the authorization provider must not be the
// allow-all stub, peer verification must be strict (never "none"), and audit
// logging must be enabled. It also rejects the obvious demo/placeholder
// values the teacher's original check targeted.
func validateProductionSecurity(config *Configuration) error {
	var errs []error

	if config.Authorization.DefaultAction != "deny" {
		errs = append(errs, fmt.Errorf("authorization.default_action must be \"deny\" in production, got %q", config.Authorization.DefaultAction))
	}
	if config.Authorization.Provider == "allow-all" {
		errs = append(errs, fmt.Errorf("authorization.provider cannot be \"allow-all\" in production"))
	}
	if config.Transport.PeerVerification != "strict" {
		errs = append(errs, fmt.Errorf("transport.peer_verification must be \"strict\" in production, got %q", config.Transport.PeerVerification))
	}
	if !config.Authorization.Audit.Enabled {
		errs = append(errs, fmt.Errorf("authorization.audit.enabled must be true in production"))
	}

	if strings.Contains(config.Agent.TrustDomain, "example.org") || strings.Contains(config.Agent.TrustDomain, "example.com") {
		errs = append(errs, cerrors.ErrExampleTrustDomain)
	}
	if strings.Contains(config.Agent.TrustDomain, "localhost") {
		errs = append(errs, cerrors.ErrLocalhostTrustDomain)
	}
	if strings.Contains(config.Agent.Name, "example") {
		errs = append(errs, cerrors.ErrExampleServiceName)
	}
	if strings.Contains(config.Agent.Name, "demo") {
		errs = append(errs, cerrors.ErrDemoServiceName)
	}
	if os.Getenv(EnvDebugEnabled) == "true" {
		errs = append(errs, cerrors.ErrDebugEnabled)
	}

	return cerrors.NewProductionValidationError(errs...)
}

// IsProductionReady checks if the configuration is suitable for production use.
func (c *Configuration) IsProductionReady() error {
	return validateProductionSecurity(c)
}

// GetBoolEnv returns a boolean environment variable value with a default.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
