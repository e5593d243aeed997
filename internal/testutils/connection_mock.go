package testutils

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
// Reads are served from the scripted response data; writes are recorded.
type ConnectionMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool

	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	readBuf := bytes.NewBufferString(strings.Join(responseData, ""))
	return &ConnectionMock{
		readBuf:  readBuf,
		writeBuf: &bytes.Buffer{},
	}
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	if m.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9801}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}
