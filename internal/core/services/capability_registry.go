package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agentweave/agentweave/internal/core/domain"
	cerrors "github.com/agentweave/agentweave/internal/core/errors"
	"github.com/agentweave/agentweave/internal/core/ports"
)

// CapabilityRegistry holds an agent's registered capabilities and dispatches
// inbound calls through the fixed pipeline: lookup -> peer-pattern match ->
// authorization -> invoke. The audit event is recorded by the Authorizer in the
// authorization step; nothing is recorded after the handler returns. Grounded in
// original_source/agentweave/decorators.py's module-level _capability_registry
// and its @capability/@requires_peer/@audit_log decorator stack, translated
// into an explicit-registration service per spec.md §9 (no reflection or
// decorator discovery: a capability exists in the registry only because
// something called Register with it).
type CapabilityRegistry struct {
	mu           sync.RWMutex
	capabilities map[string]domain.Capability

	authz  ports.Authorizer
	card   *domain.AgentCard
	logger *slog.Logger
}

// NewCapabilityRegistry wires a CapabilityRegistry. card, if non-nil, is kept
// in sync: every Register call also appends a CapabilitySummary to it so the
// agent card served at /.well-known/agent.json always reflects what Dispatch
// will actually accept.
func NewCapabilityRegistry(authz ports.Authorizer, card *domain.AgentCard) *CapabilityRegistry {
	return &CapabilityRegistry{
		capabilities: make(map[string]domain.Capability),
		authz:        authz,
		card:         card,
		logger:       slog.Default(),
	}
}

// Register adds a capability, rejecting a duplicate name or a capability
// that fails its own static validation.
func (r *CapabilityRegistry) Register(cap domain.Capability) error {
	if err := cap.Validate(); err != nil {
		return fmt.Errorf("invalid capability: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[cap.Name]; exists {
		return fmt.Errorf("capability %q is already registered", cap.Name)
	}
	r.capabilities[cap.Name] = cap

	if r.card != nil {
		r.card.RegisterCapability(cap)
	}
	return nil
}

// Lookup returns the capability registered under name.
func (r *CapabilityRegistry) Lookup(name string) (domain.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.capabilities[name]
	return cap, ok
}

// List returns every registered capability.
func (r *CapabilityRegistry) List() []domain.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Capability, 0, len(r.capabilities))
	for _, cap := range r.capabilities {
		out = append(out, cap)
	}
	return out
}

// Dispatch runs the full inbound pipeline for a single capability call:
// unknown-capability -> peer-pattern mismatch -> authorization denial ->
// handler invocation, with the handler's panics isolated so one broken
// capability can't take the request server down with it. Grounded in
// decorators.py's wrapper chain (capability -> requires_peer -> audit_log),
// collapsed into one explicit pipeline instead of three stacked closures.
func (r *CapabilityRegistry) Dispatch(ctx context.Context, caller domain.WorkloadIdentifier, name string, payload map[string]any) (result map[string]any, err error) {
	cap, ok := r.Lookup(name)
	if !ok {
		return nil, cerrors.ErrUnknownCapability.WithMessage("no handler registered for capability " + name)
	}

	if !cap.MatchesPeer(caller) {
		return nil, cerrors.ErrPeerPatternMismatch.WithMessage(
			"caller " + caller.String() + " does not match any peer pattern for capability " + name)
	}

	var decision domain.AuthorizationDecision
	if r.authz != nil {
		decision, err = r.authz.Check(ctx, caller, name, payload)
		if err != nil {
			return nil, fmt.Errorf("authorization check failed for capability %q: %w", name, err)
		}
		if !decision.Allowed {
			return nil, cerrors.ErrAccessDenied.WithMessage(decision.Reason)
		}
	}

	reqCtx := &domain.RequestContext{
		Caller:     caller,
		Capability: name,
		Decision:   &decision,
		AuditID:    uuid.NewString(),
	}
	ctx = domain.WithRequestContext(ctx, reqCtx)

	return r.invoke(ctx, cap, reqCtx, payload)
}

// invoke calls the capability handler, recovering a panic into an error so
// Dispatch's caller always gets a normal return rather than a crashed goroutine.
func (r *CapabilityRegistry) invoke(ctx context.Context, cap domain.Capability, reqCtx *domain.RequestContext, payload map[string]any) (result map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("capability handler panicked", "capability", cap.Name, "audit_id", reqCtx.AuditID, "panic", rec)
			err = fmt.Errorf("capability %q panicked: %v", cap.Name, rec)
		}
	}()
	return cap.Handler(ctx, reqCtx, payload)
}
