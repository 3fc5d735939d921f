package ports

import (
	"context"
	"errors"

	"github.com/agentweave/agentweave/internal/core/domain"
)

// ErrIdentityNotFound is returned when an identity cannot be found
var ErrIdentityNotFound = errors.New("identity not found")

type ServiceIdentity interface {
	GetDomain() string
	GetName() string
	Validate() error
	Close() error
}

// TLSRole selects which side of an mTLS handshake BuildTLSMaterial builds
// credentials for (spec.md §4.1 "build_tls_material(role)").
type TLSRole string

const (
	TLSRoleServer TLSRole = "server"
	TLSRoleClient TLSRole = "client"
)

// RotationCallback is invoked whenever the underlying credential rotates. A
// panic or error from one callback must never prevent the others from
// running (spec.md §4.1's per-callback isolation requirement); implementations
// of OnRotation are responsible for that isolation, not the callback itself.
type RotationCallback func(ctx context.Context, identifier domain.WorkloadIdentifier)

// IdentityProvider is the identity layer's core port: the current workload
// identifier and credential, the trust bundle backing verification of peers,
// TLS material for either side of a handshake, and a subscription mechanism
// for rotation events (spec.md §4.1).
type IdentityProvider interface {
	// CurrentIdentifier returns this agent's own workload identifier.
	CurrentIdentifier(ctx context.Context) (domain.WorkloadIdentifier, error)

	GetServiceIdentity(ctx context.Context) (*domain.ServiceIdentity, error)
	GetCertificate(ctx context.Context) (*domain.Certificate, error)
	GetTrustBundle(ctx context.Context) (*domain.TrustBundle, error)

	// BuildTLSMaterial returns a *tls.Config suitable for the given role,
	// wired to this provider's current credential and trust bundle.
	BuildTLSMaterial(ctx context.Context, role TLSRole) (TLSMaterial, error)

	// OnRotation registers a callback invoked after every successful
	// credential rotation. Returns an unsubscribe function.
	OnRotation(callback RotationCallback) (unsubscribe func())

	Close() error
}

// TLSMaterial is the opaque *tls.Config wrapper handed back by
// BuildTLSMaterial; kept as an interface here so this port does not import
// crypto/tls directly, mirroring the hexagonal boundary the rest of
// internal/core/ports keeps.
type TLSMaterial interface {
	// Config returns the underlying *tls.Config as an any; adapters assert it
	// back to *tls.Config. Kept untyped here to avoid a crypto/tls import in
	// the ports package.
	Config() any
}