package domain

import (
	"context"
	"fmt"
	"path"
	"regexp"
)

// AuditLevel is a capability's declared audit detail (spec.md §3 "Capability").
// Validate defaults it to AuditLevelDecision; the dispatch pipeline does not read
// it, and the Authorizer records its audit events whatever the level.
type AuditLevel string

const (
	AuditLevelNone    AuditLevel = "none"
	AuditLevelDecision AuditLevel = "decision"
	AuditLevelFull    AuditLevel = "full"
)

var capabilityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// CapabilityHandler executes a capability invocation. reqCtx carries the
// caller's workload identifier and the authorization decision that admitted
// the call; it is threaded explicitly rather than stashed in a singleton.
type CapabilityHandler func(ctx context.Context, reqCtx *RequestContext, payload map[string]any) (map[string]any, error)

// Capability is a unit of work an agent exposes to peers, registered
// explicitly (no decorator/reflection discovery) per spec.md §9.
type Capability struct {
	Name              string
	Description       string
	AcceptedInputs    []string
	ProducedOutputs   []string
	PeerPatterns      []string // glob patterns over workload identifiers; empty means "any authenticated peer"
	AuditLevel        AuditLevel
	Handler           CapabilityHandler
}

// Validate checks the capability's static shape before registration.
func (c *Capability) Validate() error {
	if !capabilityNamePattern.MatchString(c.Name) {
		return fmt.Errorf("capability name %q must match %s", c.Name, capabilityNamePattern.String())
	}
	if c.Handler == nil {
		return fmt.Errorf("capability %q has no handler", c.Name)
	}
	if c.AuditLevel == "" {
		c.AuditLevel = AuditLevelDecision
	}
	return nil
}

// MatchesPeer reports whether identifier is allowed to invoke this capability
// according to its peer patterns. An empty pattern list admits any peer;
// authorization is still enforced separately by the authorization enforcer.
func (c *Capability) MatchesPeer(identifier WorkloadIdentifier) bool {
	if len(c.PeerPatterns) == 0 {
		return true
	}
	uri := identifier.String()
	for _, pattern := range c.PeerPatterns {
		if ok, err := path.Match(pattern, uri); err == nil && ok {
			return true
		}
	}
	return false
}

// RequestContext is the per-call context threaded through the capability
// dispatch pipeline (demux -> peer extraction -> authz -> invoke).
// It is passed explicitly through context.Context values, never stored in a
// package-level or task-local singleton (spec.md §9).
type RequestContext struct {
	Caller      WorkloadIdentifier
	Capability  string
	Decision    *AuthorizationDecision
	AuditID     string
}

type requestContextKey struct{}

// WithRequestContext returns a derived context carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the RequestContext stashed by WithRequestContext, if any.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
