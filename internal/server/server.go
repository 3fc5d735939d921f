package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/agentweave/agentweave/internal/core/domain"
	"github.com/agentweave/agentweave/internal/core/ports"
	"github.com/agentweave/agentweave/internal/core/services"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for in-flight
// requests before forcing the listener closed.
const DefaultShutdownTimeout = 30 * time.Second

// Server is agentweave's request surface: /.well-known/agent.json, the
// JSON-RPC 2.0 /rpc endpoint, /tasks/{id}/stream (SSE) and /health, served
// over mTLS built from an ports.IdentityProvider.
type Server struct {
	httpServer *http.Server
	identity   ports.IdentityProvider
	card       *domain.AgentCard
	tasks      *services.TaskManager
	registry   *services.CapabilityRegistry
	logger     *slog.Logger
}

// Config collects Server's dependencies.
type Config struct {
	Address    string
	Identity   ports.IdentityProvider
	Card       *domain.AgentCard
	Tasks      *services.TaskManager
	Registry   *services.CapabilityRegistry
}

// New builds a Server bound to addr, with mTLS material sourced from
// identity. The listener is not started until Serve is called.
func New(cfg Config) (*Server, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if cfg.Card == nil {
		return nil, fmt.Errorf("agent card is required")
	}
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("task manager is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("capability registry is required")
	}

	s := &Server{
		identity: cfg.Identity,
		card:     cfg.Card,
		tasks:    cfg.Tasks,
		registry: cfg.Registry,
		logger:   slog.Default(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.HandleFunc("GET /tasks/{id}/stream", s.handleTaskStream)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	return s, nil
}

// Serve starts the HTTPS listener and blocks until ctx is cancelled, an
// OS interrupt/SIGTERM arrives or the listener fails, then drains in-flight requests within
// DefaultShutdownTimeout. Grounded in the teacher's
// signal.NotifyContext+sync.WaitGroup+http.Server.Shutdown idiom.
func (s *Server) Serve(ctx context.Context) error {
	material, err := s.identity.BuildTLSMaterial(ctx, ports.TLSRoleServer)
	if err != nil {
		return fmt.Errorf("build server TLS material: %w", err)
	}
	tlsConfig, ok := material.Config().(*tls.Config)
	if !ok {
		return fmt.Errorf("identity provider returned unexpected TLS material type %T", material.Config())
	}
	s.httpServer.TLSConfig = tlsConfig

	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	var serverErr error
	var mu sync.Mutex
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if serverErr == nil && err != nil {
			serverErr = err
		}
	}

	listenDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(listenDone)
		if err := s.httpServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setErr(fmt.Errorf("HTTPS server error: %w", err))
		}
	}()

	select {
	case <-shutdownCtx.Done():
	case <-listenDone:
	}
	s.logger.Info("shutting down request server")

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer timeoutCancel()
	if err := s.httpServer.Shutdown(timeoutCtx); err != nil {
		setErr(fmt.Errorf("HTTPS server shutdown error: %w", err))
	}

	wg.Wait()
	return serverErr
}

// ServeOnListener serves over a pre-established net.Listener (e.g. one
// already wrapped in TLS by the caller, or used by tests via httptest).
// Unlike Serve it does not install signal handling; callers own ctx.
func (s *Server) ServeOnListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(timeoutCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close immediately closes the listener without draining in-flight requests.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// peerIdentifier extracts the caller's workload identifier from the verified
// client certificate's SPIFFE URI SAN, set during the mTLS handshake.
// Returns the zero WorkloadIdentifier if the request didn't arrive over TLS
// or carries no peer certificate (e.g. local plaintext test servers).
func peerIdentifier(r *http.Request) domain.WorkloadIdentifier {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return domain.WorkloadIdentifier{}
	}
	return identifierFromCertificate(r.TLS.PeerCertificates[0])
}

func identifierFromCertificate(cert *x509.Certificate) domain.WorkloadIdentifier {
	for _, uri := range cert.URIs {
		if id, err := domain.ParseWorkloadIdentifier(uri.String()); err == nil {
			return id
		}
	}
	return domain.WorkloadIdentifier{}
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	snap := s.card.Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"agent":  s.card.Snapshot().Name,
	})
}
