package saori

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pior/saori/internal/coarsetime"
	"github.com/pior/saori/wire"
)

var (
	ErrConnectionClosed = errors.New("saori: connection closed")
)

// Connection is a single connection to a served module.
// Requests on one connection are serialized: one request, one response.
type Connection struct {
	conn     net.Conn
	reader   *bufio.Reader
	codec    Codec
	maxBytes int

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// NewConnection wraps conn. Messages are encoded with codec (ShiftJIS if nil).
func NewConnection(conn net.Conn, codec Codec) *Connection {
	if codec == nil {
		codec = ShiftJIS
	}
	return &Connection{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		codec:    codec,
		maxBytes: defaultMaxResponseBytes,
		lastUsed: coarsetime.Now(),
	}
}

// defaultMaxResponseBytes bounds a single response read by a Connection.
const defaultMaxResponseBytes = 1 << 20

// Send writes req and reads its response.
//
// The context deadline, if any, applies to the whole exchange. A request
// failing wire.ValidateRequest is rejected before anything is written and
// the connection stays open. Any other error leaves the connection closed:
// the stream position is unknown.
func (c *Connection) Send(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := wire.ValidateRequest(req); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}

	// Set deadline based on context
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	encoded, err := c.codec.Encode(string(wire.AppendRequest(nil, req)))
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(encoded); err != nil {
		c.markClosed()
		return nil, &wire.ConnectionError{Op: "write", Err: err}
	}

	raw, err := wire.ReadFrame(c.reader, c.maxBytes)
	if err != nil {
		c.markClosed()
		if !isParseError(err) {
			return nil, &wire.ConnectionError{Op: "read", Err: err}
		}
		return nil, err
	}

	text, err := c.codec.Decode(raw)
	if err != nil {
		c.markClosed()
		return nil, err
	}

	resp, err := wire.ParseResponse(text)
	if err != nil {
		c.markClosed()
		return nil, err
	}

	c.lastUsed = coarsetime.Now()
	return resp, nil
}

func isParseError(err error) bool {
	var perr *wire.ParseError
	return errors.As(err, &perr)
}

// LastUsed returns when the connection last completed a request
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// IsClosed returns whether the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	return c.markClosed()
}

// markClosed marks the connection as closed and releases the socket
// (must be called with lock held)
func (c *Connection) markClosed() error {
	c.closed = true
	return c.conn.Close()
}

// Ping sends a version probe to check the module is alive.
func (c *Connection) Ping(ctx context.Context) error {
	resp, err := c.Send(ctx, wire.NewVersionRequest())
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &StatusError{Kind: resp.Kind}
	}
	return nil
}

// StatusError reports a non-200 answer where success was required.
type StatusError struct {
	Kind wire.ResponseKind
}

func (e *StatusError) Error() string {
	return "saori: unexpected status " + e.Kind.String()
}
