package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolConfig bounds a Pool's size and idle-eviction behavior. Grounded in
// original_source/agentweave/transport/pool.py's PoolConfig dataclass.
type PoolConfig struct {
	MaxPerTarget        int
	MaxTotal            int
	IdleTimeout         time.Duration
	HealthCheckInterval time.Duration
	CleanupInterval     time.Duration
}

// DefaultPoolConfig matches the original implementation's defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPerTarget:        10,
		MaxTotal:            100,
		IdleTimeout:         60 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		CleanupInterval:     10 * time.Second,
	}
}

// Dialer opens a new Conn to target. Supplied by the secure channel so the
// pool stays transport-agnostic.
type Dialer func(ctx context.Context, target string) (Conn, error)

// Conn is a pooled connection to a peer. Implementations are typically a
// *Channel wrapping an mTLS-verified *http.Client bound to one target.
type Conn interface {
	// Healthy reports whether the connection still appears usable.
	Healthy(ctx context.Context) bool
	Close() error
}

// pooledConn wraps a Conn with the bookkeeping the pool needs to decide when
// to evict it. Grounded in the teacher's grpc_transport.go pooledConnection.
type pooledConn struct {
	conn      Conn
	target    string
	createdAt time.Time
	lastUsed  time.Time
	inUse     bool
	useCount  int
}

func (p *pooledConn) isIdle(idleTimeout time.Duration) bool {
	return !p.inUse && time.Since(p.lastUsed) > idleTimeout
}

// ErrPoolExhausted is returned when a target has reached MaxPerTarget connections.
type ErrPoolExhausted struct{ Target string }

func (e ErrPoolExhausted) Error() string {
	return fmt.Sprintf("connection pool exhausted for target %q", e.Target)
}

// Pool manages per-target connections to peer agents, evicting idle
// connections on a background ticker (spec.md §4.4 "Connection Pool").
type Pool struct {
	cfg    PoolConfig
	dial   Dialer

	mu      sync.Mutex
	byTarget map[string][]*pooledConn

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool constructs a Pool. Call Start to begin the background eviction loop.
func NewPool(cfg PoolConfig, dial Dialer) *Pool {
	return &Pool{cfg: cfg, dial: dial, byTarget: make(map[string][]*pooledConn)}
}

// Start launches the idle-eviction loop under an errgroup bound to ctx,
// replacing the teacher's ad-hoc goroutine-per-pool with shared cancellation.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	p.group = group
	group.Go(func() error {
		p.evictLoop(gctx)
		return nil
	})
}

// Stop cancels the eviction loop and closes every pooled connection.
func (p *Pool) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		_ = p.group.Wait()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, conns := range p.byTarget {
		for _, pc := range conns {
			if err := pc.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.byTarget = make(map[string][]*pooledConn)
	return firstErr
}

func (p *Pool) evictLoop(ctx context.Context) {
	interval := p.cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for target, conns := range p.byTarget {
		kept := conns[:0]
		for _, pc := range conns {
			if pc.isIdle(p.cfg.IdleTimeout) {
				_ = pc.conn.Close()
				continue
			}
			kept = append(kept, pc)
		}
		if len(kept) == 0 {
			delete(p.byTarget, target)
		} else {
			p.byTarget[target] = kept
		}
	}
}

// Acquire returns a usable connection to target, reusing an idle one if
// available, dialing a new one otherwise, and returning ErrPoolExhausted if
// the target is already at MaxPerTarget and none are idle.
func (p *Pool) Acquire(ctx context.Context, target string) (Conn, func(), error) {
	p.mu.Lock()
	conns := p.byTarget[target]
	for _, pc := range conns {
		if !pc.inUse {
			pc.inUse = true
			pc.lastUsed = time.Now()
			pc.useCount++
			p.mu.Unlock()
			return pc.conn, p.releaseFunc(target, pc), nil
		}
	}
	if len(conns) >= p.cfg.MaxPerTarget {
		p.mu.Unlock()
		return nil, nil, ErrPoolExhausted{Target: target}
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	pc := &pooledConn{conn: conn, target: target, createdAt: time.Now(), lastUsed: time.Now(), inUse: true, useCount: 1}
	p.mu.Lock()
	p.byTarget[target] = append(p.byTarget[target], pc)
	p.mu.Unlock()

	return conn, p.releaseFunc(target, pc), nil
}

func (p *Pool) releaseFunc(target string, pc *pooledConn) func() {
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		pc.inUse = false
		pc.lastUsed = time.Now()
	}
}

// Size returns the total number of pooled connections across all targets.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, conns := range p.byTarget {
		total += len(conns)
	}
	return total
}
