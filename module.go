package saori

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pior/saori/wire"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// Request kinds as reported to an Observer.
const (
	ObservedVersion   = "version"
	ObservedExecute   = "execute"
	ObservedMalformed = "malformed"
)

// Observer receives one callback per handled request.
// It is called concurrently and must synchronize its own state.
type Observer interface {
	ObserveRequest(kind string, code int, elapsed time.Duration)
}

// Config holds configuration for a Module.
type Config struct {
	// Handler runs Execute requests.
	// If nil, EchoHandler is used.
	Handler Handler

	// Codec converts host bytes to text and back in Request and HandleBytes.
	// If nil, ShiftJIS is used.
	Codec Codec

	// Strict rejects unrecognized header lines and invalid Argument lines
	// with a 400 instead of ignoring them.
	Strict bool

	// NewCircuitBreaker creates the breaker guarding the handler.
	// Called once with the name "handler". If nil, no circuit breaker is used.
	NewCircuitBreaker func(name string) CircuitBreaker

	// Observer is notified of every handled request. Optional.
	Observer Observer

	// Logger receives lifecycle and per-request debug logs.
	// If nil, logging is disabled.
	Logger *zap.Logger
}

// Module is one SAORI module: the parse, dispatch, serialize pipeline plus
// the load/unload/request entry points a host calls.
//
// A Module is safe for concurrent use. The pipeline itself shares no state
// between requests; only the statistics counters are shared.
type Module struct {
	handler  Handler
	parser   wire.Parser
	codec    Codec
	observer Observer
	logger   *zap.Logger
	stats    *moduleStatsCollector

	mu     sync.Mutex
	dir    string
	loaded bool
}

// NewModule creates a Module from cfg.
func NewModule(cfg Config) *Module {
	handler := cfg.Handler
	if handler == nil {
		handler = EchoHandler
	}
	if cfg.NewCircuitBreaker != nil {
		handler = WithCircuitBreaker(handler, cfg.NewCircuitBreaker("handler"))
	}

	codec := cfg.Codec
	if codec == nil {
		codec = ShiftJIS
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Module{
		handler:  handler,
		parser:   wire.Parser{Strict: cfg.Strict},
		codec:    codec,
		observer: cfg.Observer,
		logger:   logger,
		stats:    newModuleStatsCollector(),
	}
}

// Load is the host's load notification. dir is the directory the module was
// loaded from. The pipeline holds no state, so this only records dir.
func (m *Module) Load(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dir = dir
	m.loaded = true
	m.logger.Info("module loaded", zap.String("dir", dir))
	return nil
}

// Unload is the host's unload notification.
func (m *Module) Unload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		m.logger.Info("module unloaded", zap.String("dir", m.dir))
	}
	m.loaded = false
	return nil
}

// Dir returns the directory given to Load, or "" if not loaded.
func (m *Module) Dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Stats returns a snapshot of the module counters.
func (m *Module) Stats() ModuleStats {
	return m.stats.snapshot()
}

// Handle runs one decoded request through the pipeline and returns the
// decoded response text. It never fails: malformed input, handler errors and
// panics all produce a well-formed response.
func (m *Module) Handle(ctx context.Context, raw string) string {
	start := time.Now()

	req, err := m.parser.Parse(raw)
	if err != nil {
		m.stats.recordMalformed()
		m.observe(ObservedMalformed, wire.StatusBadRequest, start)
		m.logger.Debug("malformed request",
			zap.Uint64("fingerprint", xxh3.HashString(raw)),
			zap.Error(err),
		)
		if errors.Is(err, wire.ErrMalformedFirstLine) {
			return wire.MalformedResponse
		}
		// Strict-mode header errors: the request line was fine
		return wire.FormatResponse(wire.NewBadRequestResponse())
	}

	resp, err := dispatch(ctx, req, m.handler)

	if req.Kind == wire.KindVersionQuery {
		m.stats.recordVersion()
		m.observe(ObservedVersion, wire.StatusOK, start)
		return wire.VersionResponse
	}

	m.stats.recordExecute(resp.Kind, err != nil)
	m.observe(ObservedExecute, resp.Kind.Code(), start)

	if err != nil {
		m.logger.Warn("handler failed",
			zap.Uint64("fingerprint", xxh3.HashString(raw)),
			zap.String("sender", req.Sender),
			zap.Error(err),
		)
	} else if ce := m.logger.Check(zap.DebugLevel, "request handled"); ce != nil {
		ce.Write(
			zap.Uint64("fingerprint", xxh3.HashString(raw)),
			zap.String("sender", req.Sender),
			zap.Int("arguments", len(req.Arguments)),
			zap.Stringer("status", resp.Kind),
		)
	}

	return wire.FormatResponse(resp)
}

// HandleBytes decodes buf with the module codec, runs Handle and returns the
// encoded response.
func (m *Module) HandleBytes(ctx context.Context, buf []byte) []byte {
	start := time.Now()
	var out string

	raw, err := m.codec.Decode(buf)
	if err != nil {
		m.logger.Warn("request decode failed", zap.String("charset", m.codec.Name()), zap.Error(err))
		m.stats.recordMalformed()
		m.observe(ObservedMalformed, wire.StatusBadRequest, start)
		out = wire.MalformedResponse
	} else {
		out = m.Handle(ctx, raw)
	}

	encoded, err := m.codec.Encode(out)
	if err != nil {
		// The canned answers are ASCII and encode in any supported charset
		m.logger.Error("response encode failed", zap.String("charset", m.codec.Name()), zap.Error(err))
		return []byte(wire.FormatResponse(wire.NewInternalServerErrorResponse()))
	}
	return encoded
}

// Request is the host's request entry point: buf holds the encoded request,
// the result holds the encoded response followed by a NUL byte. The length
// the host expects back is len(result), NUL included.
func (m *Module) Request(ctx context.Context, buf []byte) []byte {
	out := m.HandleBytes(ctx, buf)
	return append(out, 0)
}

func (m *Module) observe(kind string, code int, start time.Time) {
	if m.observer != nil {
		m.observer.ObserveRequest(kind, code, time.Since(start))
	}
}
