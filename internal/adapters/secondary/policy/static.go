package policy

import (
	"context"

	"github.com/agentweave/agentweave/internal/core/domain"
)

// AllowAll is a ports.PolicyEngine that admits every call. Grounded in
// original_source/agentweave/agent.py's "allow-all" authz_provider branch,
// which the original leaves as a placeholder with a development-only
// warning; this is that provider, made concrete.
type AllowAll struct{}

// Evaluate always allows. For development use only; never select this
// provider in a production deployment (spec.md §6's production checklist).
func (AllowAll) Evaluate(ctx context.Context, policyPath string, input map[string]any) (domain.AuthorizationDecision, error) {
	return domain.AuthorizationDecision{Allowed: true, Reason: "allow-all policy provider"}, nil
}

// DenyAll is a ports.PolicyEngine that rejects every call. Useful as a safe
// default when no policy engine endpoint has been configured yet, since
// AuthorizationService's own default-action fallback only applies once the
// engine has already failed -- DenyAll fails closed before that even matters.
type DenyAll struct{}

// Evaluate always denies.
func (DenyAll) Evaluate(ctx context.Context, policyPath string, input map[string]any) (domain.AuthorizationDecision, error) {
	return domain.AuthorizationDecision{Allowed: false, Reason: "deny-all policy provider"}, nil
}
