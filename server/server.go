// Package server exposes a saori.Module over a stream socket.
//
// Each connection carries a sequence of requests. A request is framed by its
// terminating blank line and answered with the encoded response, without the
// trailing NUL byte of the in-process host boundary.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pior/saori"
	"github.com/pior/saori/wire"
	"go.uber.org/zap"
)

// ErrServerClosed is returned by Serve after Close or Shutdown.
var ErrServerClosed = errors.New("saori: server closed")

// DefaultMaxRequestBytes bounds a single framed request.
const DefaultMaxRequestBytes = 1 << 20

// ConnObserver is notified when connections open and close.
type ConnObserver interface {
	ConnOpened()
	ConnClosed()
}

// Config holds configuration for a Server.
type Config struct {
	// ReadTimeout bounds reading one request once its first byte arrived.
	// Zero means no limit.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one response. Zero means no limit.
	WriteTimeout time.Duration

	// IdleTimeout closes connections that wait this long for a request.
	// Zero means no limit.
	IdleTimeout time.Duration

	// MaxRequestBytes closes the connection after a 400 answer when a request
	// is larger. Defaults to DefaultMaxRequestBytes.
	MaxRequestBytes int

	// ConnObserver is notified of connection lifecycle. Optional.
	ConnObserver ConnObserver

	// Logger receives connection logs. If nil, logging is disabled.
	Logger *zap.Logger
}

// Server serves a Module on one or more listeners.
type Server struct {
	module *saori.Module
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	closing   atomic.Bool
}

// New creates a Server for module.
func New(module *saori.Module, config Config) *Server {
	if config.MaxRequestBytes <= 0 {
		config.MaxRequestBytes = DefaultMaxRequestBytes
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		module:    module,
		config:    config,
		logger:    logger,
		listeners: map[net.Listener]struct{}{},
		conns:     map[net.Conn]struct{}{},
	}
}

// Serve accepts connections on ln until ctx is canceled or the server is
// closed, serving each one in its own goroutine. It always returns a non-nil
// error: ErrServerClosed after a shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.trackListener(ln) {
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	stop := context.AfterFunc(ctx, func() {
		s.closing.Store(true)
		ln.Close()
	})
	defer stop()

	s.logger.Info("serving", zap.Stringer("addr", ln.Addr()))

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		go s.ServeConn(ctx, conn)
	}
}

// ServeConn serves requests on conn until the peer closes it, an I/O error
// occurs, or the server shuts down. conn is closed on return.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	if !s.trackConn(conn) {
		conn.Close()
		return
	}
	defer s.untrackConn(conn)

	if s.config.ConnObserver != nil {
		s.config.ConnObserver.ConnOpened()
		defer s.config.ConnObserver.ConnClosed()
	}

	logger := s.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.Stringer("remote", conn.RemoteAddr()),
	)
	logger.Debug("connection opened")
	defer logger.Debug("connection closed")

	reader := bufio.NewReader(conn)

	for !s.closing.Load() {
		if err := s.waitForRequest(conn, reader); err != nil {
			logReadError(logger, err)
			return
		}

		if s.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		raw, err := wire.ReadFrame(reader, s.config.MaxRequestBytes)
		if errors.Is(err, wire.ErrFrameTooLarge) {
			logger.Warn("request too large", zap.Int("max_bytes", s.config.MaxRequestBytes))
			s.write(conn, []byte(wire.MalformedResponse))
			return
		}
		if err != nil {
			logReadError(logger, err)
			return
		}

		if err := s.write(conn, s.module.HandleBytes(ctx, raw)); err != nil {
			logger.Debug("write failed", zap.Error(err))
			return
		}
	}
}

// waitForRequest blocks until the first byte of the next request is
// buffered, under the idle timeout.
func (s *Server) waitForRequest(conn net.Conn, reader *bufio.Reader) error {
	if s.config.IdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
	} else {
		conn.SetReadDeadline(time.Time{})
	}
	if s.closing.Load() {
		return net.ErrClosed
	}
	_, err := reader.Peek(1)
	return err
}

func (s *Server) write(conn net.Conn, b []byte) error {
	if s.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	_, err := conn.Write(b)
	return err
}

func logReadError(logger *zap.Logger, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return
	case errors.As(err, &ne) && ne.Timeout():
		logger.Debug("connection timed out", zap.Error(err))
	default:
		logger.Debug("read failed", zap.Error(err))
	}
}

// Shutdown stops accepting connections and lets every connection finish the
// request it is handling. Connections waiting for a request are closed at
// once. If ctx expires first, the remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.Lock()
	for ln := range s.listeners {
		ln.Close()
	}
	// Wake up connections blocked in a read; their loop sees closing
	for conn := range s.conns {
		conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.closeConns()
		<-done
		return ctx.Err()
	}
}

// Close immediately closes all listeners and connections and waits for every
// ServeConn call to return.
func (s *Server) Close() error {
	s.closing.Store(true)

	s.mu.Lock()
	for ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()

	s.closeConns()
	s.wg.Wait()
	return nil
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	conn.Close()
	s.wg.Done()
}
