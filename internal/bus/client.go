package bus

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/zurustar/busrpc/internal/backoff"
	"github.com/zurustar/busrpc/internal/config"
	"github.com/zurustar/busrpc/internal/connection"
	"github.com/zurustar/busrpc/internal/logging"
)

// Client dials a single bus endpoint and, when Reconnect is enabled in
// its Config, automatically redials with randomized exponential backoff
// whenever the connection drops (SPEC_FULL.md §6 Reconnection).
type Client struct {
	cfg    *config.Config
	logger logging.Logger
	bind   Bind
	policy *backoff.Policy

	mu      sync.Mutex
	current *connection.Connection
	cond    *sync.Cond
}

// NewClient builds a Client from a loaded Config.
func NewClient(cfg *config.Config, logger logging.Logger, bind Bind) *Client {
	if logger == nil {
		logger = logging.NewConsoleLogger(logging.ErrorLevel)
	}
	c := &Client{cfg: cfg, logger: logger, bind: bind}
	c.cond = sync.NewCond(&c.mu)
	if cfg.Reconnect.Enabled {
		c.policy = backoff.New(
			time.Duration(cfg.Reconnect.MinDelayMS)*time.Millisecond,
			time.Duration(cfg.Reconnect.MaxDelayMS)*time.Millisecond,
			2.0, 0.2,
		)
	}
	return c
}

// Connection returns the currently active connection, or nil if none is
// established yet.
func (c *Client) Connection() *connection.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Run dials the endpoint and runs the dispatch loop, reconnecting with
// backoff when Reconnect.Enabled, until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, err := c.dialOnce(ctx)
		if err != nil {
			if c.policy == nil {
				return err
			}
			c.logger.Warn("dial failed, retrying",
				logging.ErrorField(err), logging.IntField("attempt", attempt))
			if !c.policy.Wait(attempt, ctx.Done()) {
				return ctx.Err()
			}
			attempt++
			continue
		}
		attempt = 0

		runErr := conn.Run(ctx)

		c.mu.Lock()
		c.current = nil
		c.cond.Broadcast()
		c.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.policy == nil {
			return runErr
		}
		c.logger.Warn("connection lost, reconnecting", logging.ErrorField(runErr))
		if !c.policy.Wait(attempt, ctx.Done()) {
			return ctx.Err()
		}
		attempt++
	}
}

func (c *Client) dialOnce(ctx context.Context) (*connection.Connection, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "unix", c.cfg.Endpoint.Path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Endpoint.Path, err)
	}

	opts := connection.Options{
		ReferenceTypes: nil,
		Timeout:        time.Duration(c.cfg.Connection.TimeoutMS) * time.Millisecond,
		InitialID:      1,
	}
	conn := connection.New(raw, opts, c.logger)
	if c.bind != nil {
		c.bind(conn)
	}

	c.mu.Lock()
	c.current = conn
	c.cond.Broadcast()
	c.mu.Unlock()

	return conn, nil
}

// WaitForConnection blocks until a connection is established or ctx is
// cancelled, returning it.
func (c *Client) WaitForConnection(ctx context.Context) (*connection.Connection, error) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
		close(done)
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.current == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.cond.Wait()
	}
	return c.current, nil
}
