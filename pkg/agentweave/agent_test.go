package agentweave

import (
	"context"
	"crypto/tls"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
	"github.com/agentweave/agentweave/internal/core/services"
	"github.com/agentweave/agentweave/internal/transport"
)

type fakeTLSMaterial struct {
	cfg any
}

func (m fakeTLSMaterial) Config() any { return m.cfg }

type fakeIdentityProvider struct {
	identifier  domain.WorkloadIdentifier
	materialErr error
	material    ports.TLSMaterial
	closed      bool
}

func (f *fakeIdentityProvider) CurrentIdentifier(ctx context.Context) (domain.WorkloadIdentifier, error) {
	return f.identifier, nil
}
func (f *fakeIdentityProvider) GetServiceIdentity(ctx context.Context) (*domain.ServiceIdentity, error) {
	return nil, nil
}
func (f *fakeIdentityProvider) GetCertificate(ctx context.Context) (*domain.Certificate, error) {
	return nil, nil
}
func (f *fakeIdentityProvider) GetTrustBundle(ctx context.Context) (*domain.TrustBundle, error) {
	return nil, nil
}
func (f *fakeIdentityProvider) BuildTLSMaterial(ctx context.Context, role ports.TLSRole) (ports.TLSMaterial, error) {
	if f.materialErr != nil {
		return nil, f.materialErr
	}
	return f.material, nil
}
func (f *fakeIdentityProvider) OnRotation(callback ports.RotationCallback) func() { return func() {} }
func (f *fakeIdentityProvider) Close() error {
	f.closed = true
	return nil
}

func TestPeerRegistry_SetGet(t *testing.T) {
	reg := newPeerRegistry()
	id, err := domain.ParseWorkloadIdentifier("spiffe://agents.internal/peer")
	require.NoError(t, err)

	assert.True(t, reg.get("https://unknown:1").IsZero())

	reg.set("https://peer:8443", id)
	assert.Equal(t, id, reg.get("https://peer:8443"))
}

func TestNewIdentityProvider_UnknownProvider(t *testing.T) {
	_, err := newIdentityProvider(&ports.AgentConfig{Name: "a", TrustDomain: "example.org"}, &ports.IdentityConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestNewAuthorizer_AllowAll(t *testing.T) {
	authz, err := newAuthorizer(&ports.AuthorizationConfig{Provider: "allow-all", DefaultAction: "deny"})
	require.NoError(t, err)
	require.NotNil(t, authz)
}

func TestNewAuthorizer_DenyAll(t *testing.T) {
	authz, err := newAuthorizer(&ports.AuthorizationConfig{Provider: "deny-all", DefaultAction: "deny"})
	require.NoError(t, err)
	require.NotNil(t, authz)
}

func TestNewAuthorizer_UnknownProvider(t *testing.T) {
	_, err := newAuthorizer(&ports.AuthorizationConfig{Provider: "bogus", DefaultAction: "deny"})
	assert.Error(t, err)
}

func TestNewAuditSink_Disabled(t *testing.T) {
	sink, err := newAuditSink(&ports.AuditConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestNewAuditSink_Stdout(t *testing.T) {
	sink, err := newAuditSink(&ports.AuditConfig{Enabled: true, Destination: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, sink)
}

func TestNewAuditSink_UnknownDestination(t *testing.T) {
	_, err := newAuditSink(&ports.AuditConfig{Enabled: true, Destination: "bogus"})
	assert.Error(t, err)
}

func TestAgent_RegisterCapability(t *testing.T) {
	id, err := domain.ParseWorkloadIdentifier("spiffe://agents.internal/self")
	require.NoError(t, err)
	card := domain.NewAgentCard("self", "", "https://self", "1.0", id)
	registry := services.NewCapabilityRegistry(nil, card)

	a := &Agent{registry: registry}
	err = a.RegisterCapability(domain.Capability{
		Name: "echo",
		Handler: func(ctx context.Context, reqCtx *domain.RequestContext, payload map[string]any) (map[string]any, error) {
			return payload, nil
		},
	})
	require.NoError(t, err)

	_, ok := registry.Lookup("echo")
	assert.True(t, ok)
}

func TestAgent_Close(t *testing.T) {
	identity := &fakeIdentityProvider{}
	pool := transport.NewPool(transport.DefaultPoolConfig(), func(ctx context.Context, target string) (transport.Conn, error) {
		return nil, fmt.Errorf("no dialing in this test")
	})
	pool.Start(context.Background())

	a := &Agent{identity: identity, pool: pool, peers: newPeerRegistry()}
	require.NoError(t, a.Close())
	assert.True(t, identity.closed)
}

func TestAgentDialer_BuildMaterialError(t *testing.T) {
	identity := &fakeIdentityProvider{materialErr: fmt.Errorf("no credential")}
	dial := agentDialer(identity, newPeerRegistry(), time.Second)

	_, err := dial(context.Background(), "https://peer:8443")
	assert.Error(t, err)
}

func TestAgentDialer_UnexpectedMaterialType(t *testing.T) {
	identity := &fakeIdentityProvider{material: fakeTLSMaterial{cfg: "not-a-tls-config"}}
	dial := agentDialer(identity, newPeerRegistry(), time.Second)

	_, err := dial(context.Background(), "https://peer:8443")
	assert.Error(t, err)
}

func TestAgentDialer_BuildsChannel(t *testing.T) {
	identity := &fakeIdentityProvider{material: fakeTLSMaterial{cfg: &tls.Config{}}}
	peers := newPeerRegistry()
	peerID, err := domain.ParseWorkloadIdentifier("spiffe://agents.internal/peer")
	require.NoError(t, err)
	peers.set("https://peer:8443", peerID)

	dial := agentDialer(identity, peers, time.Second)
	conn, err := dial(context.Background(), "https://peer:8443")
	require.NoError(t, err)
	require.NotNil(t, conn)

	_, ok := conn.(*transport.Channel)
	assert.True(t, ok)
}
