package ports

import (
	"context"

	"github.com/agentweave/agentweave/internal/core/domain"
)

// PolicyEngine evaluates one authorization input document against an
// externally-hosted policy and returns a decision (spec.md §4.2
// "Authorization Enforcer"). Implementations talk to whatever policy engine
// backs the deployment (OPA, a custom service); the enforcer itself never
// encodes policy logic.
type PolicyEngine interface {
	Evaluate(ctx context.Context, policyPath string, input map[string]any) (domain.AuthorizationDecision, error)
}

// DecisionCache caches AuthorizationDecision results keyed by DecisionCacheKey.
type DecisionCache interface {
	Get(key domain.DecisionCacheKey) (domain.AuthorizationDecision, bool)
	Put(key domain.DecisionCacheKey, decision domain.AuthorizationDecision)
}

// AuditSink records authorization decisions and other audit-worthy events
// (spec.md §4.10 "Audit Trail").
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
	Close() error
}

// AuditEvent is one entry written to an AuditSink.
type AuditEvent struct {
	ID         string
	Timestamp  int64
	Caller     string
	Capability string
	Decision   domain.AuthorizationDecision
}

// Authorizer is the core port the request pipeline calls to admit or reject
// a capability invocation.
type Authorizer interface {
	// Check evaluates whether caller may invoke capability with the given
	// input document, consulting the cache, then the circuit-breaker-guarded
	// policy engine, falling back to the configured default action if the
	// policy engine is unreachable.
	Check(ctx context.Context, caller domain.WorkloadIdentifier, capability string, input map[string]any) (domain.AuthorizationDecision, error)
}
