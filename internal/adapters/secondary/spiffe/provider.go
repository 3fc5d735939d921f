// Package spiffe implements ports.IdentityProvider against the SPIFFE
// Workload API: it fetches and caches the agent's X.509 SVID and trust
// bundle through a workloadapi.X509Source, builds mTLS *tls.Config material
// for either side of a handshake, and polls for credential rotation so
// registered callbacks fire when the SPIRE agent issues a new SVID.
package spiffe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"

	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
)

// pollInterval is how often Provider checks the Workload API source for a
// rotated SVID, clamped to spec.md §4.1's [5s,30s] rotation-poll window.
const pollInterval = 10 * time.Second

// Provider is a ports.IdentityProvider backed by the SPIFFE Workload API.
type Provider struct {
	socketPath          string
	trustDomain         string
	allowedTrustDomains []spiffeid.TrustDomain

	mu         sync.Mutex
	x509Source *workloadapi.X509Source
	lastSerial string

	callbacksMu sync.Mutex
	callbacks   map[int]ports.RotationCallback
	nextID      int

	cancel context.CancelFunc
	logger *slog.Logger
}

// NewProvider constructs a Provider reading SVIDs from identity.socket and
// expecting the agent's own identity to live in agent.trust_domain.
func NewProvider(agent *ports.AgentConfig, identity *ports.IdentityConfig) (*Provider, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent configuration is required")
	}
	if identity == nil || identity.Socket == "" {
		return nil, fmt.Errorf("identity.socket is required for the spiffe provider")
	}

	var allowed []spiffeid.TrustDomain
	for _, raw := range identity.AllowedTrustDomains {
		td, err := spiffeid.TrustDomainFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed trust domain %q: %w", raw, err)
		}
		allowed = append(allowed, td)
	}

	return &Provider{
		socketPath:          identity.Socket,
		trustDomain:         agent.TrustDomain,
		allowedTrustDomains: allowed,
		callbacks:           make(map[int]ports.RotationCallback),
		logger:              slog.Default(),
	}, nil
}

func (p *Provider) ensureSource(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.x509Source != nil {
		return nil
	}

	source, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(
			workloadapi.WithAddr("unix://"+p.socketPath),
		),
	)
	if err != nil {
		return fmt.Errorf("create X509 source: %w", err)
	}
	p.x509Source = source

	pollCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.watchRotation(pollCtx)

	return nil
}

// watchRotation polls the Workload API source for a changed SVID serial
// number and notifies every registered callback when one is detected. A
// poller rather than a push subscription because workloadapi.X509Source
// doesn't expose update hooks; it only exposes the latest SVID.
func (p *Provider) watchRotation(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkRotation(ctx)
		}
	}
}

func (p *Provider) checkRotation(ctx context.Context) {
	p.mu.Lock()
	source := p.x509Source
	p.mu.Unlock()
	if source == nil {
		return
	}

	svid, err := source.GetX509SVID()
	if err != nil {
		p.logger.Warn("rotation poll: failed to read current SVID", "error", err)
		return
	}

	serial := svid.Certificates[0].SerialNumber.String()

	p.mu.Lock()
	changed := p.lastSerial != "" && p.lastSerial != serial
	p.lastSerial = serial
	p.mu.Unlock()

	if !changed {
		return
	}

	identifier := domain.WorkloadIdentifierFromSPIFFEID(svid.ID)
	p.callbacksMu.Lock()
	callbacks := make([]ports.RotationCallback, 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		callbacks = append(callbacks, cb)
	}
	p.callbacksMu.Unlock()

	for _, cb := range callbacks {
		p.invokeCallback(ctx, cb, identifier)
	}
}

// invokeCallback isolates one rotation callback's panic from the others and
// from the poller loop itself (spec.md §4.1's per-callback isolation requirement).
func (p *Provider) invokeCallback(ctx context.Context, cb ports.RotationCallback, identifier domain.WorkloadIdentifier) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("rotation callback panicked", "panic", r)
		}
	}()
	cb(ctx, identifier)
}

// CurrentIdentifier implements ports.IdentityProvider.
func (p *Provider) CurrentIdentifier(ctx context.Context) (domain.WorkloadIdentifier, error) {
	if err := p.ensureSource(ctx); err != nil {
		return domain.WorkloadIdentifier{}, err
	}
	svid, err := p.x509Source.GetX509SVID()
	if err != nil {
		return domain.WorkloadIdentifier{}, fmt.Errorf("get current SVID: %w", err)
	}
	return domain.WorkloadIdentifierFromSPIFFEID(svid.ID), nil
}

// GetServiceIdentity implements ports.IdentityProvider.
func (p *Provider) GetServiceIdentity(ctx context.Context) (*domain.ServiceIdentity, error) {
	if err := p.ensureSource(ctx); err != nil {
		return nil, err
	}
	svid, err := p.x509Source.GetX509SVID()
	if err != nil {
		return nil, fmt.Errorf("get current SVID: %w", err)
	}
	return domain.NewServiceIdentityFromSPIFFEID(svid.ID), nil
}

// GetCertificate implements ports.IdentityProvider.
func (p *Provider) GetCertificate(ctx context.Context) (*domain.Certificate, error) {
	if err := p.ensureSource(ctx); err != nil {
		return nil, err
	}
	svid, err := p.x509Source.GetX509SVID()
	if err != nil {
		return nil, fmt.Errorf("get current SVID: %w", err)
	}
	return domain.NewCertificate(svid.Certificates[0], svid.PrivateKey, svid.Certificates)
}

// GetTrustBundle implements ports.IdentityProvider. The trust domain used to
// look up the bundle comes from this agent's own configuration, never a
// hardcoded default.
func (p *Provider) GetTrustBundle(ctx context.Context) (*domain.TrustBundle, error) {
	if err := p.ensureSource(ctx); err != nil {
		return nil, err
	}
	td, err := spiffeid.TrustDomainFromString(p.trustDomain)
	if err != nil {
		return nil, fmt.Errorf("invalid configured trust domain %q: %w", p.trustDomain, err)
	}
	bundle, err := p.x509Source.GetX509BundleForTrustDomain(td)
	if err != nil {
		return nil, fmt.Errorf("get trust bundle for %s: %w", td, err)
	}
	return domain.NewTrustBundle(bundle.X509Authorities())
}

// tlsMaterial is the concrete ports.TLSMaterial wrapping a *tls.Config.
type tlsMaterial struct {
	cfg *tls.Config
}

func (m tlsMaterial) Config() any { return m.cfg }

// BuildTLSMaterial implements ports.IdentityProvider. Peer verification uses
// AuthorizeMemberOf for the single configured trust domain, or, when
// identity.allowed_trust_domains lists more than one, a check that the peer is
// a member of at least one of them; never
// AuthorizeAny — spec.md §3 requires peer verification on the workload
// identifier, not bare TLS authentication.
func (p *Provider) BuildTLSMaterial(ctx context.Context, role ports.TLSRole) (ports.TLSMaterial, error) {
	if err := p.ensureSource(ctx); err != nil {
		return nil, err
	}

	authorizer, err := p.peerAuthorizer()
	if err != nil {
		return nil, err
	}

	var cfg *tls.Config
	switch role {
	case ports.TLSRoleServer:
		cfg = tlsconfig.MTLSServerConfig(p.x509Source, p.x509Source, authorizer)
	case ports.TLSRoleClient:
		cfg = tlsconfig.MTLSClientConfig(p.x509Source, p.x509Source, authorizer)
	default:
		return nil, fmt.Errorf("unknown TLS role %q", role)
	}
	return tlsMaterial{cfg: cfg}, nil
}

func (p *Provider) peerAuthorizer() (tlsconfig.Authorizer, error) {
	switch len(p.allowedTrustDomains) {
	case 0:
		td, err := spiffeid.TrustDomainFromString(p.trustDomain)
		if err != nil {
			return nil, fmt.Errorf("invalid configured trust domain %q: %w", p.trustDomain, err)
		}
		return tlsconfig.AuthorizeMemberOf(td), nil
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

// OnRotation implements ports.IdentityProvider.
func (p *Provider) OnRotation(callback ports.RotationCallback) (unsubscribe func()) {
	p.callbacksMu.Lock()
	id := p.nextID
	p.nextID++
	p.callbacks[id] = callback
	p.callbacksMu.Unlock()

	return func() {
		p.callbacksMu.Lock()
		delete(p.callbacks, id)
		p.callbacksMu.Unlock()
	}
}

// Close implements ports.IdentityProvider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.x509Source != nil {
		return p.x509Source.Close()
	}
	return nil
}
