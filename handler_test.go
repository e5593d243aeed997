package saori

import (
	"context"
	"errors"
	"testing"

	"github.com/pior/saori/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoHandler(t *testing.T) {
	ctx := context.Background()

	resp, err := EchoHandler.Execute(ctx, wire.NewExecuteRequest("hello", "ignored"))
	require.NoError(t, err)
	assert.Equal(t, wire.KindOK, resp.Kind)
	assert.Equal(t, "hello", resp.Result)
	assert.Equal(t, []string{"test1", "test2"}, resp.Values)

	resp, err = EchoHandler.Execute(ctx, wire.NewExecuteRequest())
	require.NoError(t, err)
	assert.Equal(t, wire.KindBadRequest, resp.Kind)
	assert.Empty(t, resp.Result)
	assert.Empty(t, resp.Values)
}

func TestEchoHandler_EmptyFirstArgument(t *testing.T) {
	// Sparse arguments: slot 0 exists but is empty
	resp, err := EchoHandler.Execute(context.Background(), &wire.Request{Kind: wire.KindExecute, Arguments: []string{"", "", "x"}})
	require.NoError(t, err)
	assert.Equal(t, wire.KindOK, resp.Kind)
	assert.Empty(t, resp.Result)
}

func TestDispatch_VersionSkipsHandler(t *testing.T) {
	called := false
	h := HandlerFunc(func(context.Context, *wire.Request) (*wire.Response, error) {
		called = true
		return wire.NewOKResponse("x"), nil
	})

	resp := Dispatch(context.Background(), wire.NewVersionRequest(), h)

	assert.False(t, called)
	assert.Equal(t, &wire.Response{Kind: wire.KindOK}, resp)
}

func TestDispatch_PassesHandlerResponse(t *testing.T) {
	want := &wire.Response{Kind: wire.KindBadRequest, Result: "why", Values: []string{"a"}}
	h := HandlerFunc(func(_ context.Context, req *wire.Request) (*wire.Response, error) {
		assert.Equal(t, "sender", req.Sender)
		return want, nil
	})

	req := wire.NewExecuteRequest("a")
	req.Sender = "sender"

	assert.Same(t, want, Dispatch(context.Background(), req, h))
}

func TestDispatch_HandlerFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "error",
			handler: func(context.Context, *wire.Request) (*wire.Response, error) {
				return wire.NewOKResponse("partial"), errors.New("boom")
			},
			check: func(t *testing.T, err error) { assert.EqualError(t, err, "boom") },
		},
		{
			name: "nil response",
			handler: func(context.Context, *wire.Request) (*wire.Response, error) {
				return nil, nil
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNilResponse) },
		},
		{
			name: "panic",
			handler: func(context.Context, *wire.Request) (*wire.Response, error) {
				panic("kaboom")
			},
			check: func(t *testing.T, err error) {
				var perr *HandlerPanicError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "kaboom", perr.Value)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := dispatch(context.Background(), wire.NewExecuteRequest("a"), tt.handler)
			tt.check(t, err)
			assert.Equal(t, wire.NewInternalServerErrorResponse(), resp)

			assert.Equal(t, wire.NewInternalServerErrorResponse(), Dispatch(context.Background(), wire.NewExecuteRequest("a"), tt.handler))
		})
	}
}
