package main

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ianzepp/monk-irc-sub000/internal/backend"
	"github.com/ianzepp/monk-irc-sub000/internal/config"
	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
	"github.com/ianzepp/monk-irc-sub000/internal/metrics"
)

// Server is the root orchestrator: the listener, one goroutine per
// accepted connection, the tenant registry, the tenant-aware fan-out
// plane, and the backend client (spec §2 Server root, §3).
//
// Grounded on the teacher's (missing-from-pack but pervasively referenced)
// Catbox struct and on ircd.go's Server (`newServer`, `start`,
// `acceptConnections`); this generalizes the single flat Clients/Channels
// map into the Tenant-scoped graph the spec requires, and replaces the
// teacher's select-loop-over-channels event model with one goroutine per
// connection reading and dispatching serially (spec §5), which is simpler
// and matches what net.go's blocking Read/Write already assumed.
type Server struct {
	Config *config.Config
	Name   string

	log     *slog.Logger
	backend *backend.Client
	metrics *metrics.Metrics

	tenants     *TenantRegistry
	tenantAware *TenantAwareRegistry

	listener net.Listener

	connMu sync.Mutex
	conns  map[string]*Connection

	wg           sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	createdAt string
}

// NewServer builds a Server from a validated Config. It does not start
// listening; call Run for that.
func NewServer(cfg *config.Config, log *slog.Logger) *Server {
	return &Server{
		Config:      cfg,
		Name:        cfg.ServerName,
		log:         log,
		backend:     backend.New(cfg.BackendURL, cfg.BackendTimeout, log),
		metrics:     metrics.New(),
		tenants:     newTenantRegistry(),
		tenantAware: newTenantAwareRegistry(),
		conns:       make(map[string]*Connection),
		shutdownCh:  make(chan struct{}),
		createdAt:   time.Now().UTC().Format(time.RFC1123),
	}
}

// Run binds the listener and accepts connections until the context is
// canceled or Shutdown is called. Matches the teacher's exit-code
// convention (spec §6): a bind failure is returned to main for a non-zero
// exit.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.Config.ListenHost, strconv.Itoa(s.Config.ListenPort)))
	if err != nil {
		return err
	}
	s.listener = ln

	if err := s.metrics.Serve(s.Config.MetricsAddr); err != nil {
		s.log.Warn("metrics server failed to start", "error", err)
	}

	s.log.Info("monk-irc started", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("accept error", "error", err)
				return err
			}
		}

		c := NewConnection(conn, s.log)
		s.connMu.Lock()
		s.conns[c.ID] = c
		s.connMu.Unlock()

		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()

		s.wg.Add(1)
		go s.serveConnection(c)
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connection goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
	_ = s.metrics.Shutdown(ctx)
	s.wg.Wait()
}

// serveConnection is the one-goroutine-per-connection read/dispatch loop
// (spec §5 scheduling model): lines from this connection are handled
// strictly in arrival order; other connections make independent progress.
func (s *Server) serveConnection(c *Connection) {
	defer s.wg.Done()
	defer s.cleanupConnection(c)

	for {
		line, err := c.ReadLine()
		if err != nil {
			return
		}

		msg, err := ircmsg.ParseLine(line)
		if err != nil {
			continue // blank/malformed line: skip per §4.1
		}

		s.dispatch(c, msg)
	}
}

func (s *Server) cleanupConnection(c *Connection) {
	s.quitConnection(c, "Connection closed")

	s.connMu.Lock()
	delete(s.conns, c.ID)
	s.connMu.Unlock()

	s.tenantAware.remove(c)
	_ = c.Close()
	s.metrics.ConnectionsActive.Dec()
}
