// Package agentweave is the public SDK surface for building agents that
// communicate over mutually-authenticated TLS with cryptographic workload
// identity and externally-enforced authorization policy (spec.md §1
// "Overview"). It hides wiring of the identity, authorization, transport and
// request-server layers behind Agent, mirroring the teacher's
// pkg/ephemos public-API package: a small set of exported constructors and
// methods in front of an internal/ hexagon the caller never touches directly.
package agentweave

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/agentweave/agentweave/internal/adapters/secondary/policy"
	"github.com/agentweave/agentweave/internal/adapters/secondary/spiffe"
	"github.com/agentweave/agentweave/internal/adapters/secondary/staticidentity"
	"github.com/agentweave/agentweave/internal/audit"
	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
	"github.com/agentweave/agentweave/internal/core/services"
	"github.com/agentweave/agentweave/internal/server"
	"github.com/agentweave/agentweave/internal/transport"
)

// Agent is a running (or not-yet-started) agentweave SDK instance: one
// workload identity, one capability registry, one request server. Exported
// methods are safe for concurrent use once Serve has been called.
type Agent struct {
	config   *ports.Configuration
	identity ports.IdentityProvider
	card     *domain.AgentCard
	registry *services.CapabilityRegistry
	tasks    *services.TaskManager
	authz    ports.Authorizer
	srv      *server.Server
	pool     *transport.Pool
	peers    *peerRegistry
}

// peerRegistry remembers which workload identifier is expected at each
// target address, so the pool's Dialer -- which only ever sees the target
// string (transport.Dialer has no room for a per-call identity parameter) --
// can still hand NewChannel the expectedID it needs to pin the peer. CallPeer
// records the mapping before acquiring a connection for that target.
type peerRegistry struct {
	mu  sync.Mutex
	ids map[string]domain.WorkloadIdentifier
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{ids: make(map[string]domain.WorkloadIdentifier)}
}

func (p *peerRegistry) set(target string, id domain.WorkloadIdentifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[target] = id
}

func (p *peerRegistry) get(target string) domain.WorkloadIdentifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[target]
}

// New builds an Agent from cfg, constructing its identity provider (spiffe
// or static, per cfg.Identity.Provider), its authorization enforcer (per
// cfg.Authorization.Provider), its task manager and an empty capability
// registry. It does not start listening; call Serve for that.
func New(cfg *ports.Configuration) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	identityProvider, err := newIdentityProvider(&cfg.Agent, &cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("create identity provider: %w", err)
	}

	selfID, err := identityProvider.CurrentIdentifier(context.Background())
	if err != nil {
		return nil, fmt.Errorf("resolve own identity: %w", err)
	}

	card := domain.NewAgentCard(cfg.Agent.Name, cfg.Agent.Description, "https://"+cfg.Agent.Name, "1.0", selfID)

	authorizer, err := newAuthorizer(&cfg.Authorization)
	if err != nil {
		return nil, fmt.Errorf("create authorizer: %w", err)
	}

	registry := services.NewCapabilityRegistry(authorizer, card)
	tasks := services.NewTaskManager(1 * time.Hour)

	peers := newPeerRegistry()
	poolCfg := transport.DefaultPoolConfig()
	dialTimeout := 10 * time.Second
	pool := transport.NewPool(poolCfg, agentDialer(identityProvider, peers, dialTimeout))
	pool.Start(context.Background())

	return &Agent{
		config:   cfg,
		identity: identityProvider,
		card:     card,
		registry: registry,
		tasks:    tasks,
		authz:    authorizer,
		pool:     pool,
		peers:    peers,
	}, nil
}

// NewIdentityProvider builds the identity provider cfg selects (spiffe or
// static), without constructing a full Agent. Exported for CLI tooling
// (ping, agent inspection) that needs a live identity and TLS material but
// has no capabilities to serve and no task manager to run.
func NewIdentityProvider(cfg *ports.Configuration) (ports.IdentityProvider, error) {
	return newIdentityProvider(&cfg.Agent, &cfg.Identity)
}

func newIdentityProvider(agent *ports.AgentConfig, identity *ports.IdentityConfig) (ports.IdentityProvider, error) {
	switch identity.Provider {
	case "static":
		return staticidentity.NewProvider(agent, identity)
	case "spiffe", "":
		return spiffe.NewProvider(agent, identity)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", identity.Provider)
	}
}

func newAuthorizer(cfg *ports.AuthorizationConfig) (ports.Authorizer, error) {
	var engine ports.PolicyEngine
	switch cfg.Provider {
	case "opa":
		engine = policy.NewClient(cfg.Endpoint, 5*time.Second)
	case "allow-all":
		engine = policy.AllowAll{}
	case "deny-all", "":
		engine = policy.DenyAll{}
	default:
		return nil, fmt.Errorf("unknown authorization provider %q", cfg.Provider)
	}

	cacheTTL, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		cacheTTL = 30 * time.Second
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache := policy.NewDecisionCache(cacheSize, cacheTTL)

	auditSink, err := newAuditSink(&cfg.Audit)
	if err != nil {
		return nil, err
	}

	breaker := transport.NewCircuitBreaker(transport.DefaultCircuitBreakerConfig())
	defaultAllow := cfg.DefaultAction == "allow"

	return services.NewAuthorizationService(engine, cache, auditSink, breaker, cfg.PolicyPath, defaultAllow, 5*time.Second, nil), nil
}

func newAuditSink(cfg *ports.AuditConfig) (ports.AuditSink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Destination {
	case "file":
		return audit.NewFileSink(cfg.FilePath, 64)
	case "multi":
		fileSink, err := audit.NewFileSink(cfg.FilePath, 64)
		if err != nil {
			return nil, err
		}
		return audit.NewMultiSink(audit.NewStdoutSink(), fileSink), nil
	case "stdout", "":
		return audit.NewStdoutSink(), nil
	default:
		return nil, fmt.Errorf("unknown audit destination %q", cfg.Destination)
	}
}

// RegisterCapability adds a capability this agent will serve once Serve is
// called, and publishes it on the agent card.
func (a *Agent) RegisterCapability(cap domain.Capability) error {
	return a.registry.Register(cap)
}

// Serve starts the request server and blocks until ctx is cancelled or the
// listener fails. It is the caller's responsibility to call Close afterward.
func (a *Agent) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	srv, err := server.New(server.Config{
		Address:  addr,
		Identity: a.identity,
		Card:     a.card,
		Tasks:    a.tasks,
		Registry: a.registry,
	})
	if err != nil {
		return fmt.Errorf("build request server: %w", err)
	}
	a.srv = srv
	return srv.Serve(ctx)
}

// CallPeer invokes capability on the agent identified by targetID, reachable
// at targetAddr (e.g. "https://host:port", matching the https:// prefix the
// peer's own Serve listens under), submitting a task.send over a pooled mTLS
// channel and polling task.status until the task reaches a terminal state.
// Grounded in original_source/agentweave/agent.py's SecureAgent.call_agent,
// adapted from its placeholder "would send via A2A protocol" comment into
// an actual round trip over the now-built Channel/Server pair.
func (a *Agent) CallPeer(ctx context.Context, targetAddr string, targetID domain.WorkloadIdentifier, capability string, payload map[string]any) (map[string]any, error) {
	a.peers.set(targetAddr, targetID)
	conn, release, err := a.pool.Acquire(ctx, targetAddr)
	if err != nil {
		return nil, fmt.Errorf("acquire channel to %s: %w", targetAddr, err)
	}
	defer release()

	channel, ok := conn.(*transport.Channel)
	if !ok {
		return nil, fmt.Errorf("unexpected connection type %T", conn)
	}

	var sent struct {
		ID string `json:"ID"`
	}
	if err := channel.Call(ctx, "task.send", map[string]any{
		"task_type": capability,
		"payload":   payload,
	}, &sent); err != nil {
		return nil, fmt.Errorf("task.send to %s: %w", targetAddr, err)
	}
	if sent.ID == "" {
		return nil, fmt.Errorf("peer %s returned no task id", targetAddr)
	}

	return a.pollUntilTerminal(ctx, channel, sent.ID)
}

func (a *Agent) pollUntilTerminal(ctx context.Context, channel *transport.Channel, taskID string) (map[string]any, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		var status struct {
			State  string         `json:"State"`
			Result map[string]any `json:"Result"`
			Error  string         `json:"Error"`
		}
		if err := channel.Call(ctx, "task.status", map[string]any{"task_id": taskID}, &status); err != nil {
			return nil, fmt.Errorf("task.status for %s: %w", taskID, err)
		}

		switch domain.TaskState(status.State) {
		case domain.TaskStateCompleted:
			return status.Result, nil
		case domain.TaskStateFailed:
			return nil, fmt.Errorf("task %s failed: %s", taskID, status.Error)
		case domain.TaskStateCancelled:
			return nil, fmt.Errorf("task %s was cancelled", taskID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// agentDialer builds the transport.Dialer the connection pool uses to open
// new channels. Each dial rebuilds TLS material from identity so a freshly
// rotated credential is always picked up, and pins the channel to whichever
// workload identifier peers last registered for that target via CallPeer.
func agentDialer(identity ports.IdentityProvider, peers *peerRegistry, timeout time.Duration) transport.Dialer {
	return func(ctx context.Context, target string) (transport.Conn, error) {
		material, err := identity.BuildTLSMaterial(ctx, ports.TLSRoleClient)
		if err != nil {
			return nil, fmt.Errorf("build client TLS material: %w", err)
		}
		tlsConfig, ok := material.Config().(*tls.Config)
		if !ok {
			return nil, fmt.Errorf("identity provider returned unexpected TLS material type %T", material.Config())
		}
		return transport.NewChannel(target, tlsConfig, peers.get(target), timeout), nil
	}
}

// Close releases the agent's resources: the connection pool, the request
// server (if started) and the identity provider.
func (a *Agent) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(a.pool.Stop())
	if a.srv != nil {
		record(a.srv.Close())
	}
	record(a.identity.Close())
	return firstErr
}
