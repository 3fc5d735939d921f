// Package domain contains the core value objects and entities of agentweave.
package domain

import (
	"fmt"
	"strings"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// WorkloadIdentifier is a URI of the form scheme://trust-domain/path identifying
// a workload to the identity authority (spec.md §3 "Workload Identifier").
// Scheme is fixed at "spiffe"; TrustDomain is the URI's authority component and
// Path is everything after it. Equality between two identifiers is byte-exact.
type WorkloadIdentifier struct {
	id spiffeid.ID
}

// ParseWorkloadIdentifier validates and parses a raw URI into a WorkloadIdentifier.
func ParseWorkloadIdentifier(raw string) (WorkloadIdentifier, error) {
	id, err := spiffeid.FromString(raw)
	if err != nil {
		return WorkloadIdentifier{}, fmt.Errorf("invalid workload identifier %q: %w", raw, err)
	}
	return WorkloadIdentifier{id: id}, nil
}

// NewWorkloadIdentifier builds a WorkloadIdentifier from a trust domain and a
// service name, mirroring how credentials are minted for this agent's own identity.
func NewWorkloadIdentifier(trustDomain, serviceName string) (WorkloadIdentifier, error) {
	td, err := spiffeid.TrustDomainFromString(trustDomain)
	if err != nil {
		return WorkloadIdentifier{}, fmt.Errorf("invalid trust domain %q: %w", trustDomain, err)
	}
	id, err := spiffeid.FromPath(td, "/"+strings.TrimPrefix(serviceName, "/"))
	if err != nil {
		return WorkloadIdentifier{}, fmt.Errorf("invalid path %q: %w", serviceName, err)
	}
	return WorkloadIdentifier{id: id}, nil
}

// WorkloadIdentifierFromSPIFFEID wraps an already-validated spiffeid.ID
// without re-running validation; used when extracting an identifier from a
// peer certificate or a Workload API SVID.
func WorkloadIdentifierFromSPIFFEID(id spiffeid.ID) WorkloadIdentifier {
	return WorkloadIdentifier{id: id}
}

// IsZero reports whether this identifier was never populated.
func (w WorkloadIdentifier) IsZero() bool {
	return w.id.IsZero()
}

// TrustDomain returns the trust-domain component.
func (w WorkloadIdentifier) TrustDomain() string {
	return w.id.TrustDomain().String()
}

// Path returns the path component (including leading slash).
func (w WorkloadIdentifier) Path() string {
	return w.id.Path()
}

// String returns the full scheme://trust-domain/path URI.
func (w WorkloadIdentifier) String() string {
	return w.id.String()
}

// Equal reports byte-exact equality, per spec.md's invariant that peer
// verification requires the SAN URI to equal the expected identifier exactly.
func (w WorkloadIdentifier) Equal(other WorkloadIdentifier) bool {
	return w.id.String() == other.id.String()
}

// SPIFFEID exposes the underlying spiffeid.ID for adapters that need to hand
// it to go-spiffe APIs (tlsconfig.AuthorizeID, etc).
func (w WorkloadIdentifier) SPIFFEID() spiffeid.ID {
	return w.id
}

// ServiceIdentity converts this identifier into the richer ServiceIdentity
// value object used by the identity/transport services.
func (w WorkloadIdentifier) ServiceIdentity() *ServiceIdentity {
	return NewServiceIdentityFromSPIFFEID(w.id)
}
