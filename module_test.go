package saori

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pior/saori/wire"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestModule_Handle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "version probe",
			input:    "GET Version SAORI/1.0\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\n\r\n",
		},
		{
			name:     "version probe with headers",
			input:    "GET Version SAORI/1.0\r\nCharset: Shift_JIS\r\nSender: Test\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\n\r\n",
		},
		{
			name:     "malformed",
			input:    "FOO BAR\r\n\r\n",
			expected: "SAORI/1.0 400 Bad Request\r\nCharset: Shift_JIS\r\n\r\n",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "SAORI/1.0 400 Bad Request\r\nCharset: Shift_JIS\r\n\r\n",
		},
		{
			name:     "execute without arguments",
			input:    "EXECUTE SAORI/1.0\r\n\r\n",
			expected: "SAORI/1.0 400 Bad Request\r\nCharset: Shift_JIS\r\nResult: \r\n\r\n",
		},
		{
			name:     "execute with headers only",
			input:    "EXECUTE SAORI/1.0\r\nCharset: Shift_JIS\r\nSender: Test\r\n\r\n",
			expected: "SAORI/1.0 400 Bad Request\r\nCharset: Shift_JIS\r\nResult: \r\n\r\n",
		},
		{
			name:     "execute echo",
			input:    "EXECUTE SAORI/1.0\r\nArgument0: hello\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: hello\r\nValue0: test1\r\nValue1: test2\r\n\r\n",
		},
		{
			name:     "execute sparse",
			input:    "EXECUTE SAORI/1.0\r\nArgument2: x\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: \r\nValue0: test1\r\nValue1: test2\r\n\r\n",
		},
		{
			name:     "execute last write wins",
			input:    "EXECUTE SAORI/1.0\r\nArgument0: a\r\nArgument0: b\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: b\r\nValue0: test1\r\nValue1: test2\r\n\r\n",
		},
		{
			name:     "unknown lines ignored",
			input:    "EXECUTE SAORI/1.0\r\nArgumentX: a\r\nFoo: bar\r\nArgument0: ok\r\n\r\n",
			expected: "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: ok\r\nValue0: test1\r\nValue1: test2\r\n\r\n",
		},
	}

	m := NewModule(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Handle(context.Background(), tt.input)
			assert.Equal(t, tt.expected, got)

			// Deterministic: same input, same output
			assert.Equal(t, got, m.Handle(context.Background(), tt.input))
		})
	}
}

func TestModule_Strict(t *testing.T) {
	m := NewModule(Config{Strict: true})

	got := m.Handle(context.Background(), "EXECUTE SAORI/1.0\r\nArgumentX: a\r\nArgument0: ok\r\n\r\n")
	assert.Equal(t, "SAORI/1.0 400 Bad Request\r\nCharset: Shift_JIS\r\nResult: \r\n\r\n", got)

	got = m.Handle(context.Background(), "FOO\r\n\r\n")
	assert.Equal(t, wire.MalformedResponse, got)

	assert.Equal(t, uint64(2), m.Stats().Malformed)
}

func TestModule_HandlerError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewModule(Config{
		Handler: HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
			return nil, errors.New("backend down")
		}),
		Logger: zap.New(core),
	})

	got := m.Handle(context.Background(), "EXECUTE SAORI/1.0\r\nSender: host\r\nArgument0: a\r\n\r\n")
	assert.Equal(t, "SAORI/1.0 500 Internal Server Error\r\nCharset: Shift_JIS\r\nResult: \r\n\r\n", got)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "handler failed", entry.Message)
	assert.Equal(t, "host", entry.ContextMap()["sender"])
	assert.Equal(t, "backend down", entry.ContextMap()["error"])

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.HandlerErrors)
	assert.Equal(t, uint64(1), stats.InternalErrors)
}

func TestModule_CustomHandler(t *testing.T) {
	m := NewModule(Config{
		Handler: HandlerFunc(func(_ context.Context, req *wire.Request) (*wire.Response, error) {
			return wire.NewOKResponse(req.Sender+"/"+req.SecurityLevel+"/"+req.Charset, req.Arguments...), nil
		}),
	})

	got := m.Handle(context.Background(), "EXECUTE SAORI/1.0\r\nCharset: UTF-8\r\nSender: s\r\nSecurityLevel: Local\r\nArgument1: b\r\n\r\n")
	assert.Equal(t, "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: s/Local/UTF-8\r\nValue0: \r\nValue1: b\r\n\r\n", got)
}

func TestModule_Stats(t *testing.T) {
	m := NewModule(Config{})
	ctx := context.Background()

	m.Handle(ctx, "GET Version SAORI/1.0\r\n\r\n")
	m.Handle(ctx, "EXECUTE SAORI/1.0\r\nArgument0: a\r\n\r\n")
	m.Handle(ctx, "EXECUTE SAORI/1.0\r\n\r\n")
	m.Handle(ctx, "NOPE\r\n\r\n")

	assert.Equal(t, ModuleStats{
		Requests:      4,
		VersionProbes: 1,
		Executes:      2,
		Malformed:     1,
		OK:            2,
		BadRequests:   2,
	}, m.Stats())
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (o *recordingObserver) ObserveRequest(kind string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, kind)
	o.codes = append(o.codes, code)
}

func TestModule_Observer(t *testing.T) {
	obs := &recordingObserver{}
	m := NewModule(Config{Observer: obs})
	ctx := context.Background()

	m.Handle(ctx, "GET Version SAORI/1.0\r\n\r\n")
	m.Handle(ctx, "EXECUTE SAORI/1.0\r\nArgument0: a\r\n\r\n")
	m.Handle(ctx, "???")

	assert.Equal(t, []string{ObservedVersion, ObservedExecute, ObservedMalformed}, obs.calls)
	assert.Equal(t, []int{200, 200, 400}, obs.codes)
}

// rejectingCodec fails every decode.
type rejectingCodec struct{}

func (rejectingCodec) Name() string { return "rejecting" }

func (rejectingCodec) Decode([]byte) (string, error) { return "", errors.New("invalid byte sequence") }

func (rejectingCodec) Encode(s string) ([]byte, error) { return []byte(s), nil }

func TestModule_HandleBytesDecodeFailure(t *testing.T) {
	obs := &recordingObserver{}
	m := NewModule(Config{Codec: rejectingCodec{}, Observer: obs})

	out := m.HandleBytes(context.Background(), []byte("EXECUTE SAORI/1.0\r\n\r\n"))
	assert.Equal(t, wire.MalformedResponse, string(out))

	assert.Equal(t, []string{ObservedMalformed}, obs.calls)
	assert.Equal(t, []int{400}, obs.codes)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Requests)
	assert.Equal(t, uint64(1), stats.Malformed)
}

func TestModule_HandlerValuesWrittenVerbatim(t *testing.T) {
	// Keeping values on one line is the handler's job; the module adds nothing
	m := NewModule(Config{Handler: HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
		return wire.NewOKResponse("a\r\nValue9: b", "c"), nil
	})})

	out := m.Handle(context.Background(), "EXECUTE SAORI/1.0\r\n\r\n")
	assert.Equal(t, "SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: a\r\nValue9: b\r\nValue0: c\r\n\r\n", out)
}

func TestModule_CircuitBreaker(t *testing.T) {
	calls := 0
	m := NewModule(Config{
		Handler: HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
			calls++
			return nil, errors.New("failure")
		}),
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})

	req := "EXECUTE SAORI/1.0\r\nArgument0: a\r\n\r\n"
	for range 5 {
		got := m.Handle(context.Background(), req)
		assert.Contains(t, got, "SAORI/1.0 500 Internal Server Error\r\n")
	}

	// Breaker opens after 3 failures, the rest never reach the handler
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(5), m.Stats().HandlerErrors)
}

func TestModule_CircuitBreakerOpenError(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("test")
	h := WithCircuitBreaker(HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
		return nil, errors.New("failure")
	}), cb)

	for range 3 {
		_, err := h.Execute(context.Background(), wire.NewExecuteRequest("a"))
		require.Error(t, err)
	}

	_, err := h.Execute(context.Background(), wire.NewExecuteRequest("a"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestModule_LoadUnload(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewModule(Config{Logger: zap.New(core)})

	require.NoError(t, m.Load("/opt/ghost/saori"))
	assert.Equal(t, "/opt/ghost/saori", m.Dir())

	require.NoError(t, m.Unload())
	require.NoError(t, m.Unload())

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "module loaded", logs.All()[0].Message)
	assert.Equal(t, "module unloaded", logs.All()[1].Message)
}

func TestModule_RequestShiftJIS(t *testing.T) {
	m := NewModule(Config{})

	// "あいう" in Shift_JIS
	arg := []byte{0x82, 0xa0, 0x82, 0xa2, 0x82, 0xa4}
	in := append([]byte("EXECUTE SAORI/1.0\r\nArgument0: "), arg...)
	in = append(in, "\r\n\r\n"...)

	out := m.Request(context.Background(), in)

	want := append([]byte("SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: "), arg...)
	want = append(want, "\r\nValue0: test1\r\nValue1: test2\r\n\r\n"...)
	want = append(want, 0)
	assert.Equal(t, want, out)
}

func TestModule_RequestVersionLength(t *testing.T) {
	m := NewModule(Config{})

	out := m.Request(context.Background(), []byte("GET Version SAORI/1.0\r\n\r\n"))

	assert.Len(t, out, len(wire.VersionResponse)+1)
	assert.Equal(t, byte(0), out[len(out)-1])
	assert.Equal(t, wire.VersionResponse, string(out[:len(out)-1]))
}

func TestModule_HandleBytesUnencodable(t *testing.T) {
	m := NewModule(Config{})

	out := m.HandleBytes(context.Background(), []byte("EXECUTE SAORI/1.0\r\nArgument0: x\r\n\r\n"))
	assert.Contains(t, string(out), "Result: x\r\n")

	m = NewModule(Config{Handler: HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
		return wire.NewOKResponse("\U0001F600"), nil
	})})
	out = m.HandleBytes(context.Background(), []byte("EXECUTE SAORI/1.0\r\nArgument0: x\r\n\r\n"))
	assert.Contains(t, string(out), "Result: &#128512;\r\n")
}

func TestModule_HandleBytesUTF8(t *testing.T) {
	m := NewModule(Config{Codec: UTF8})

	out := m.HandleBytes(context.Background(), []byte("EXECUTE SAORI/1.0\r\nArgument0: héllo\r\n\r\n"))
	assert.Contains(t, string(out), "Result: héllo\r\n")
}

func TestModule_Concurrent(t *testing.T) {
	m := NewModule(Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.Equal(t, wire.VersionResponse, m.Handle(ctx, "GET Version SAORI/1.0\r\n\r\n"))
				return
			}
			assert.Contains(t, m.Handle(ctx, "EXECUTE SAORI/1.0\r\nArgument0: c\r\n\r\n"), "Result: c\r\n")
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), m.Stats().Requests)
}
