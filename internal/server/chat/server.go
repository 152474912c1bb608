// Package chat implements the chat server: the TCP accept loop and the
// per-connection session state machine that authenticates users, runs their
// commands against the shared registry and brokers private channels.
package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/protocol"
	"github.com/dmitrijs2005/gophchat/internal/server/credentials"
	"github.com/dmitrijs2005/gophchat/internal/server/metrics"
	"github.com/dmitrijs2005/gophchat/internal/server/registry"
)

const (
	DefaultOutboxSize   = 64
	DefaultWriteTimeout = 10 * time.Second
)

type Options struct {
	// SessionTimeout bounds every read; zero disables it.
	SessionTimeout time.Duration
	// CommandRate is commands per second per session; zero disables limiting.
	CommandRate  float64
	CommandBurst int
	OutboxSize   int
	WriteTimeout time.Duration
}

type Server struct {
	address  string
	registry *registry.Registry
	store    credentials.Store
	metrics  metrics.Recorder
	logger   logging.Logger
	opts     Options

	mu    sync.Mutex
	conns map[*conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(addr string, reg *registry.Registry, store credentials.Store, rec metrics.Recorder, l logging.Logger, opts Options) *Server {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Server{
		address:  addr,
		registry: reg,
		store:    store,
		metrics:  rec,
		logger:   l.With("module", "chat_server"),
		opts:     opts,
		conns:    make(map[*conn]struct{}),
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then tells every
// connected client the server is going away and waits for the sessions to
// finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping chat server...")
		_ = ln.Close()
	}()

	s.logger.Info(ctx, "Starting chat server", "address", ln.Addr().String())

	var err error
	for {
		nc, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = aerr
			}
			break
		}
		s.metrics.ConnectionAccepted()
		s.handle(ctx, nc)
	}

	s.shutdown()
	s.wg.Wait()
	return err
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	c := newConn(nc, s.opts.OutboxSize, s.opts.WriteTimeout)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.forget(c)

		cs := newClientSession(s, c)
		cs.logger.Debug(ctx, "connection accepted")
		cs.run(ctx)
	}()
}

func (s *Server) forget(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.conns {
		c.Send(protocol.Notice(msgShutdown, false))
		c.Close()
	}
}
