package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/image-proxy/internal/config"
	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

// ErrNotStarted is returned by Stop and Wait before a successful Start.
var ErrNotStarted = errors.New("server not started")

// Server is one listening proxy instance with an explicit Start/Stop
// lifecycle.
type Server struct {
	cfg        *config.Config
	log        *slog.Logger
	dispatcher *Dispatcher
	pool       BufferPool

	ln     net.Listener
	events chan interface{}
	quit   chan struct{}
	conns  map[uuid.UUID]*conn
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	stats counters
}

// Option customizes a Server.
type Option func(*Server)

// WithBufferPool replaces the pool that supplies response header buffers.
func WithBufferPool(p BufferPool) Option {
	return func(s *Server) { s.pool = p }
}

// New builds a server. Nothing is bound until Start.
func New(cfg *config.Config, dispatcher *Dispatcher, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		log:        logger,
		dispatcher: dispatcher,
		pool:       newSyncPool(),
		events:     make(chan interface{}),
		quit:       make(chan struct{}),
		conns:      make(map[uuid.UUID]*conn),
	}
	if cfg.Workers > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.Workers))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and launches the event loop and acceptor.
//
// It returns as soon as the listener is bound; connections are served in the
// background until Stop is called or ctx is cancelled. Start may succeed at
// most once per Server.
//
// Parameters:
//   - ctx: Lifetime of the server. Cancelling it stops the server the same
//     way Stop does.
//
// Returns:
//   - error: A proxyerr Address error when the listen address cannot be
//     bound, or an error on a second call.
//
// # Goroutines
//
// Start runs the event loop and the acceptor under one errgroup, plus a
// watcher that closes the listener when the group's context ends. Reader,
// dispatch and write goroutines are tracked separately and joined by Wait.
func (s *Server) Start(ctx context.Context) error {
	err := errors.New("server already started")
	s.startOnce.Do(func() {
		var lc net.ListenConfig
		ln, lerr := lc.Listen(ctx, "tcp", s.cfg.Address())
		if lerr != nil {
			err = proxyerr.New(proxyerr.Address, "listen", lerr)
			return
		}
		s.ln = ln
		s.ctx, s.cancel = context.WithCancel(ctx)

		g, gctx := errgroup.WithContext(s.ctx)
		g.Go(func() error { return s.loop(gctx) })
		g.Go(func() error {
			err := s.acceptLoop(gctx)
			if err != nil {
				s.log.Error("accept loop failed", "error", err)
			}
			return err
		})
		// Any return from the group tears the listener down.
		go func() {
			<-gctx.Done()
			s.ln.Close()
		}()

		s.group = g
		s.started.Store(true)
		s.log.Info("listening", "addr", ln.Addr().String(), "workers", s.cfg.Workers)
		err = nil
	})
	return err
}

// Addr is the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Wait blocks until the server stops and returns the acceptor's error, if
// any.
func (s *Server) Wait() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	err := s.group.Wait()
	s.wg.Wait()
	return err
}

// Stop shuts the server down and waits for it to finish.
//
// The listener is closed first, then every open connection is closed
// without a response. Writes already in flight finish or fail on their
// own and release their buffers. Calling Stop again is harmless.
//
// Parameters:
//   - ctx: Bounds the wait. The shutdown itself is not interrupted.
//
// Returns:
//   - error: ErrNotStarted before a successful Start, ctx.Err() if ctx
//     expires first, or the acceptor's error if it failed.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	s.stopOnce.Do(func() {
		s.cancel()
		s.ln.Close()
	})

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		s.log.Info("stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a snapshot of the server's lifetime counters.
type Stats struct {
	Accepted      int64
	Closed        int64
	Failures      int64
	Writes        int64
	WriteFailures int64
	Released      int64
}

type counters struct {
	accepted      atomic.Int64
	closed        atomic.Int64
	failures      atomic.Int64
	writes        atomic.Int64
	writeFailures atomic.Int64
	released      atomic.Int64
}

// Stats returns the current counters. Safe to call from any goroutine.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:      s.stats.accepted.Load(),
		Closed:        s.stats.closed.Load(),
		Failures:      s.stats.failures.Load(),
		Writes:        s.stats.writes.Load(),
		WriteFailures: s.stats.writeFailures.Load(),
		Released:      s.stats.released.Load(),
	}
}
