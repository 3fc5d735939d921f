package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
	"github.com/agentweave/agentweave/internal/transport"
)

// AuthorizationService implements ports.Authorizer: cache lookup, then a
// circuit-breaker-protected, bounded-timeout call to the external policy
// engine, falling back to the configured default action when the engine is
// unreachable, and recording each evaluated decision to the audit sink (a
// cache hit is returned without a new audit event) (spec.md §4.2
// "Authorization Enforcer"). Grounded in
// original_source/agentweave/authz/opa.py's OPAAuthorizer.check.
type AuthorizationService struct {
	engine        ports.PolicyEngine
	cache         ports.DecisionCache
	audit         ports.AuditSink
	breaker       *transport.CircuitBreaker
	policyPath    string
	defaultAction bool // true = allow, false = deny, applied when the engine can't be reached
	callTimeout   time.Duration
	metrics       MetricsReporter
	logger        *slog.Logger
}

// NewAuthorizationService wires an AuthorizationService. defaultAllow should
// be false in any production deployment (spec.md §6's production checklist:
// default_action must be "deny").
func NewAuthorizationService(
	engine ports.PolicyEngine,
	cache ports.DecisionCache,
	audit ports.AuditSink,
	breaker *transport.CircuitBreaker,
	policyPath string,
	defaultAllow bool,
	callTimeout time.Duration,
	metrics MetricsReporter,
) *AuthorizationService {
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &AuthorizationService{
		engine:        engine,
		cache:         cache,
		audit:         audit,
		breaker:       breaker,
		policyPath:    policyPath,
		defaultAction: defaultAllow,
		callTimeout:   callTimeout,
		metrics:       metrics,
		logger:        slog.Default(),
	}
}

// Check implements ports.Authorizer.
func (s *AuthorizationService) Check(ctx context.Context, caller domain.WorkloadIdentifier, capability string, input map[string]any) (domain.AuthorizationDecision, error) {
	key := domain.NewDecisionCacheKey(caller, capability, input)

	if s.cache != nil {
		if decision, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheHit("decision")
			return decision, nil
		}
		s.metrics.RecordCacheMiss("decision")
	}

	decision, err := s.evaluate(ctx, capability, input)
	if err != nil {
		s.logger.Warn("policy engine unavailable, applying default action",
			"capability", capability, "caller", caller.String(), "error", err)
		decision = domain.AuthorizationDecision{
			Allowed: s.defaultAction,
			Reason:  "policy engine unavailable, default action applied",
		}
	}

	if s.cache != nil {
		s.cache.Put(key, decision)
	}

	s.metrics.RecordAuthorizationDecision(capability, decision.Allowed)
	s.recordAudit(ctx, caller, capability, decision)

	return decision, nil
}

func (s *AuthorizationService) evaluate(ctx context.Context, capability string, input map[string]any) (domain.AuthorizationDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var decision domain.AuthorizationDecision
	err := s.breaker.Call(func() error {
		var innerErr error
		decision, innerErr = s.engine.Evaluate(ctx, s.policyPath, input)
		return innerErr
	})

	s.metrics.RecordCircuitState(capability, string(s.breaker.State()))

	if err != nil {
		return domain.AuthorizationDecision{}, err
	}
	return decision, nil
}

// recordAudit records the decision, swallowing sink errors (a broken audit
// backend must never block the request path); it logs the failure instead.
func (s *AuthorizationService) recordAudit(ctx context.Context, caller domain.WorkloadIdentifier, capability string, decision domain.AuthorizationDecision) {
	if s.audit == nil {
		return
	}
	event := ports.AuditEvent{
		ID:         decision.AuditID,
		Timestamp:  time.Now().Unix(),
		Caller:     caller.String(),
		Capability: capability,
		Decision:   decision,
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Error("failed to record audit event", "error", err, "audit_id", event.ID)
	}
}
