// Package bus wires together connection, config, logging, netutil, and
// backoff into the listener and dial-side supervisors a deployed
// busrpcd/busrpc binary runs (SPEC_FULL.md §6 Server/Client contracts),
// generalizing the lifecycle shape of the teacher's
// internal/server.SIPServerImpl (LoadConfig/Start/Stop/
// RunWithSignalHandling, component initialization order, graceful
// shutdown with a background-task timeout) from a SIP server's fixed
// component graph to the bus's single connection-per-accept model.
package bus

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zurustar/busrpc/internal/config"
	"github.com/zurustar/busrpc/internal/connection"
	"github.com/zurustar/busrpc/internal/logging"
	"github.com/zurustar/busrpc/internal/netutil"
)

// backgroundTaskTimeout bounds how long Stop waits for in-flight
// connections to close on their own before giving up, mirroring the
// teacher's 30-second wg.Wait timeout in SIPServerImpl.Stop.
const backgroundTaskTimeout = 30 * time.Second

// Bind is called once per accepted connection, after the listener
// socket has been wrapped in a *connection.Connection, letting the
// caller register bound Objects before the dispatch loop starts.
type Bind func(conn *connection.Connection)

// Server listens on a single Unix domain socket and runs one
// *connection.Connection per accepted peer until Stop is called.
type Server struct {
	cfg    *config.Config
	logger logging.Logger
	bind   Bind

	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewServer builds a Server from a loaded Config, a Logger, and the
// caller's object-binding callback.
func NewServer(cfg *config.Config, logger logging.Logger, bind Bind) *Server {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	return &Server{cfg: cfg, logger: logger, bind: bind}
}

// Start binds the listening socket and begins accepting connections in
// the background. A Server may be Start/Stop'd more than once.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	os.Remove(s.cfg.Endpoint.Path)
	ln, err := net.Listen("unix", s.cfg.Endpoint.Path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Endpoint.Path, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.started = true
	s.logger.Info("bus server started", logging.StringField("endpoint", s.cfg.Endpoint.Path))
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("accept failed", logging.ErrorField(err))
				return
			}
		}

		if cred, err := netutil.PeerCredentials(conn); err == nil {
			s.logger.Debug("accepted connection", logging.IntField("peer_pid", int(cred.PID)))
		} else {
			s.logger.Debug("accepted connection", logging.StringField("peer_credentials", "unavailable"))
		}

		s.wg.Add(1)
		go s.serveOne(conn)
	}
}

func (s *Server) serveOne(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	opts := connection.Options{
		ReferenceTypes: nil,
		Timeout:        time.Duration(s.cfg.Connection.TimeoutMS) * time.Millisecond,
		InitialID:      2,
	}
	c := connection.New(conn, opts, s.logger)
	if s.bind != nil {
		s.bind(c)
	}

	if err := c.Run(s.ctx); err != nil {
		s.logger.Debug("connection closed", logging.ErrorField(err))
	}
}

// Stop stops accepting new connections, waits (with a bound timeout)
// for in-flight ones to finish, and removes the listening socket.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("initiating server shutdown")
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed")
	case <-time.After(backgroundTaskTimeout):
		s.logger.Warn("timeout waiting for connections to close")
	}

	os.Remove(s.cfg.Endpoint.Path)
	s.started = false
	s.logger.Info("server shutdown complete")
	return nil
}

// RunWithSignalHandling starts the server and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) RunWithSignalHandling() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	s.logger.Info("received shutdown signal", logging.StringField("signal", sig.String()))

	return s.Stop()
}
