package saori

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pior/saori/wire"
	"go.uber.org/zap"
)

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	// MaxSize is the maximum number of connections per server.
	// Defaults to 4.
	MaxSize int32

	// Network is passed to the dialer: "tcp" (default) or "unix".
	Network string

	// Dialer is used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Codec encodes requests and decodes responses.
	// If nil, ShiftJIS is used.
	Codec Codec

	// SelectServer picks the server for a request, keyed by its Sender.
	// If nil, uses DefaultServerSelector.
	SelectServer ServerSelector

	// NewCircuitBreaker creates a circuit breaker for a server.
	// Called once per server address when the client is created.
	// 500 responses and transport errors count as failures.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// Logger receives connection errors. If nil, logging is disabled.
	Logger *zap.Logger

	// for testing purposes only
	constructor func(ctx context.Context, addr string) (*Connection, error)
}

// serverPool wraps a pool with its server address.
type serverPool struct {
	addr           string
	pool           *connPool
	circuitBreaker CircuitBreaker // nil if not configured
}

// Client sends SAORI requests to modules served over a socket (see the
// server package). It is the host side of the protocol.
//
// A Client is safe for concurrent use.
type Client struct {
	servers      []*serverPool
	selectServer ServerSelector
	logger       *zap.Logger
	stats        *clientStatsCollector
}

// errInternalServerError marks a 500 answer as a failure for the breaker.
var errInternalServerError = errors.New("saori: internal server error")

// NewClient creates a client for the given module addresses.
func NewClient(addrs []string, config ClientConfig) (*Client, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("saori: no servers provided")
	}

	selectServer := config.SelectServer
	if selectServer == nil {
		selectServer = DefaultServerSelector
	}

	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = 4
	}

	network := config.Network
	if network == "" {
		network = "tcp"
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &Client{
		selectServer: selectServer,
		logger:       logger,
		stats:        newClientStatsCollector(),
	}

	for _, addr := range addrs {
		constructor := func(ctx context.Context) (*Connection, error) {
			if config.constructor != nil {
				return config.constructor(ctx, addr)
			}
			netConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, &wire.ConnectionError{Op: "dial", Err: err}
			}
			return NewConnection(netConn, config.Codec), nil
		}

		pool, err := newConnPool(constructor, maxSize)
		if err != nil {
			client.Close()
			return nil, err
		}

		sp := &serverPool{addr: addr, pool: pool}
		if config.NewCircuitBreaker != nil {
			sp.circuitBreaker = config.NewCircuitBreaker(addr)
		}
		client.servers = append(client.servers, sp)
	}

	return client, nil
}

// Close closes the client and destroys all connections in all pools.
func (c *Client) Close() {
	for _, sp := range c.servers {
		sp.pool.close()
	}
}

// Do sends req to the server selected for req.Sender and returns its response.
//
// 400 and 500 answers are returned as responses, not errors. Errors are
// transport or protocol failures, or gobreaker.ErrOpenState when the
// server's breaker is open.
func (c *Client) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	// Rejected before the breaker: a bad request says nothing about the server
	if err := wire.ValidateRequest(req); err != nil {
		return nil, err
	}
	sp := c.servers[c.selectServer(req.Sender, len(c.servers))]
	return c.send(ctx, sp, req)
}

// Execute sends an Execute request with the given arguments.
func (c *Client) Execute(ctx context.Context, sender string, args ...string) (*wire.Response, error) {
	req := wire.NewExecuteRequest(args...)
	req.Sender = sender
	return c.Do(ctx, req)
}

// Ping sends a version probe to every server and returns the joined errors.
func (c *Client) Ping(ctx context.Context) error {
	var errs []error
	for _, sp := range c.servers {
		resp, err := c.send(ctx, sp, wire.NewVersionRequest())
		if err == nil && !resp.IsSuccess() {
			err = &StatusError{Kind: resp.Kind}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sp.addr, err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// PoolStats returns connection pool statistics keyed by server address.
func (c *Client) PoolStats() map[string]PoolStats {
	stats := make(map[string]PoolStats, len(c.servers))
	for _, sp := range c.servers {
		stats[sp.addr] = sp.pool.stats()
	}
	return stats
}

func (c *Client) send(ctx context.Context, sp *serverPool, req *wire.Request) (*wire.Response, error) {
	exchange := func() (*wire.Response, error) {
		var resp *wire.Response
		err := sp.pool.with(ctx, func(conn *Connection) error {
			var err error
			resp, err = conn.Send(ctx, req)
			return err
		})
		if err != nil {
			return nil, err
		}
		if resp.Kind == wire.KindInternalServerError {
			return resp, errInternalServerError
		}
		return resp, nil
	}

	var resp *wire.Response
	var err error
	if sp.circuitBreaker != nil {
		resp, err = sp.circuitBreaker.Execute(exchange)
	} else {
		resp, err = exchange()
	}

	if errors.Is(err, errInternalServerError) {
		err = nil
	}
	if err != nil {
		c.stats.recordError()
		c.logger.Debug("request failed", zap.String("server", sp.addr), zap.Error(err))
		return nil, err
	}

	c.stats.recordResponse(resp.Kind)
	return resp, nil
}
