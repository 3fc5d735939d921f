// Package staticidentity implements ports.IdentityProvider against a fixed
// SVID and trust bundle loaded from disk once at startup, for environments
// without a reachable SPIRE agent (spec.md §4.1 "Static-credential variant").
// Unlike spiffe.Provider it never rotates: OnRotation accepts a callback
// that is simply never invoked, and the credential's own expiry is the
// deployment's responsibility to track and replace.
package staticidentity

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spiffe/go-spiffe/v2/bundle/x509bundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/svid/x509svid"

	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
)

// expiryWarningWindow is how far ahead of NotAfter Provider logs a warning at
// construction, since a static credential has no rotation path to fall back on.
const expiryWarningWindow = 24 * time.Hour

// Provider is a ports.IdentityProvider backed by files on disk, loaded once.
// It reads identity.static_credential_path/{svid.pem,svid_key.pem,bundle.pem},
// the conventional filenames go-spiffe's x509svid.Load/x509bundle.Load expect.
type Provider struct {
	svid                *x509svid.SVID
	bundle              *x509bundle.Bundle
	trustDomain         spiffeid.TrustDomain
	allowedTrustDomains []spiffeid.TrustDomain
	logger              *slog.Logger
}

// NewProvider loads the static credential from identity.static_credential_path.
// It refuses to start with a credential already past its NotAfter; a
// near-expiry credential is allowed to start but logged as a warning, since
// there is no automatic rotation to recover from replacing it too late.
func NewProvider(agent *ports.AgentConfig, identity *ports.IdentityConfig) (*Provider, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent configuration is required")
	}
	if identity == nil || identity.StaticCredentialPath == "" {
		return nil, fmt.Errorf("identity.static_credential_path is required for the static provider")
	}

	td, err := spiffeid.TrustDomainFromString(agent.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("invalid trust domain %q: %w", agent.TrustDomain, err)
	}

	dir := identity.StaticCredentialPath
	svid, err := x509svid.Load(filepath.Join(dir, "svid.pem"), filepath.Join(dir, "svid_key.pem"))
	if err != nil {
		return nil, fmt.Errorf("load static SVID from %s: %w", dir, err)
	}
	bundle, err := x509bundle.Load(td, filepath.Join(dir, "bundle.pem"))
	if err != nil {
		return nil, fmt.Errorf("load static trust bundle from %s: %w", dir, err)
	}

	if len(svid.Certificates) == 0 {
		return nil, fmt.Errorf("static SVID at %s contains no certificates", dir)
	}
	expiry := svid.Certificates[0].NotAfter
	if time.Now().After(expiry) {
		return nil, fmt.Errorf("static credential at %s expired at %s", dir, expiry)
	}

	var allowed []spiffeid.TrustDomain
	for _, raw := range identity.AllowedTrustDomains {
		atd, err := spiffeid.TrustDomainFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed trust domain %q: %w", raw, err)
		}
		allowed = append(allowed, atd)
	}

	logger := slog.Default()
	if time.Now().Add(expiryWarningWindow).After(expiry) {
		logger.Warn("static identity credential expires soon and this provider does not rotate; replace the files and restart before it expires",
			"path", dir, "expires_at", expiry)
	}

	return &Provider{
		svid:                svid,
		bundle:              bundle,
		trustDomain:         td,
		allowedTrustDomains: allowed,
		logger:              logger,
	}, nil
}

// GetX509SVID implements x509svid.Source so Provider can be handed directly
// to tlsconfig.MTLSServerConfig/MTLSClientConfig.
func (p *Provider) GetX509SVID() (*x509svid.SVID, error) {
	return p.svid, nil
}

// GetX509BundleForTrustDomain implements x509bundle.Source.
func (p *Provider) GetX509BundleForTrustDomain(td spiffeid.TrustDomain) (*x509bundle.Bundle, error) {
	if td != p.trustDomain {
		return nil, fmt.Errorf("no trust bundle loaded for trust domain %q", td)
	}
	return p.bundle, nil
}

// CurrentIdentifier implements ports.IdentityProvider.
func (p *Provider) CurrentIdentifier(ctx context.Context) (domain.WorkloadIdentifier, error) {
	return domain.WorkloadIdentifierFromSPIFFEID(p.svid.ID), nil
}

// GetServiceIdentity implements ports.IdentityProvider.
func (p *Provider) GetServiceIdentity(ctx context.Context) (*domain.ServiceIdentity, error) {
	return domain.NewServiceIdentityFromSPIFFEID(p.svid.ID), nil
}

// GetCertificate implements ports.IdentityProvider.
func (p *Provider) GetCertificate(ctx context.Context) (*domain.Certificate, error) {
	return domain.NewCertificate(p.svid.Certificates[0], p.svid.PrivateKey, p.svid.Certificates)
}

// GetTrustBundle implements ports.IdentityProvider.
func (p *Provider) GetTrustBundle(ctx context.Context) (*domain.TrustBundle, error) {
	return domain.NewTrustBundle(p.bundle.X509Authorities())
}

type tlsMaterial struct {
	cfg *tls.Config
}

func (m tlsMaterial) Config() any { return m.cfg }

// BuildTLSMaterial implements ports.IdentityProvider, using the same
// never-AuthorizeAny peer-verification policy as spiffe.Provider.
func (p *Provider) BuildTLSMaterial(ctx context.Context, role ports.TLSRole) (ports.TLSMaterial, error) {
	authorizer, err := p.peerAuthorizer()
	if err != nil {
		return nil, err
	}

	var cfg *tls.Config
	switch role {
	case ports.TLSRoleServer:
		cfg = tlsconfig.MTLSServerConfig(p, p, authorizer)
	case ports.TLSRoleClient:
		cfg = tlsconfig.MTLSClientConfig(p, p, authorizer)
	default:
		return nil, fmt.Errorf("unknown TLS role %q", role)
	}
	return tlsMaterial{cfg: cfg}, nil
}

func (p *Provider) peerAuthorizer() (tlsconfig.Authorizer, error) {
	switch len(p.allowedTrustDomains) {
	case 0:
		return tlsconfig.AuthorizeMemberOf(p.trustDomain), nil
	case 1:
		return tlsconfig.AuthorizeMemberOf(p.allowedTrustDomains[0]), nil
	default:
		domains := p.allowedTrustDomains
		return func(id spiffeid.ID, _ [][]*x509.Certificate) error {
			for _, td := range domains {
				if id.MemberOf(td) {
					return nil
				}
			}
			return fmt.Errorf("peer %q is not a member of any allowed trust domain", id)
		}, nil
	}
}

// OnRotation implements ports.IdentityProvider. The static credential never
// rotates, so callback is discarded and never invoked; unsubscribe is a no-op.
func (p *Provider) OnRotation(callback ports.RotationCallback) (unsubscribe func()) {
	return func() {}
}

// Close implements ports.IdentityProvider. There is no background resource to
// release; the credential was read once at construction.
func (p *Provider) Close() error {
	return nil
}
