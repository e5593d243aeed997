package saori

import (
	"context"
	"errors"
	"fmt"

	"github.com/pior/saori/wire"
)

var (
	// ErrNilResponse is reported when a handler returns neither a response nor an error.
	ErrNilResponse = errors.New("saori: handler returned nil response")
)

// Handler runs the domain computation behind an Execute request.
//
// Execute may return any response kind. A non-nil error is answered with an
// empty 500 response; the error itself never reaches the wire.
//
// Result and Values are written verbatim, one header line each, so they must
// not contain CR or LF. A line break would end the header early and the host
// would read the rest as headers of its own.
type Handler interface {
	Execute(ctx context.Context, req *wire.Request) (*wire.Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *wire.Request) (*wire.Response, error)

// Execute calls f(ctx, req).
func (f HandlerFunc) Execute(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	return f(ctx, req)
}

// HandlerPanicError carries the value recovered from a panicking handler.
type HandlerPanicError struct {
	Value any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("saori: handler panic: %v", e.Value)
}

// EchoHandler answers with its first argument as the result and two fixed
// diagnostic values. A request without arguments gets an empty 400.
//
// It stands in for real domain logic and is the default handler of a Module.
var EchoHandler = HandlerFunc(func(_ context.Context, req *wire.Request) (*wire.Response, error) {
	if len(req.Arguments) == 0 {
		return wire.NewBadRequestResponse(), nil
	}
	return wire.NewOKResponse(req.Arguments[0], "test1", "test2"), nil
})

// Dispatch routes req by kind and returns the response to serialize.
//
// Version probes are answered with an empty 200 without calling h. Execute
// requests are passed to h; a handler error, panic or nil response becomes an
// empty 500. Dispatch itself never fails.
func Dispatch(ctx context.Context, req *wire.Request, h Handler) *wire.Response {
	resp, _ := dispatch(ctx, req, h)
	return resp
}

// dispatch is Dispatch that also reports the handler failure for logging.
func dispatch(ctx context.Context, req *wire.Request, h Handler) (resp *wire.Response, err error) {
	if req.Kind == wire.KindVersionQuery {
		return &wire.Response{Kind: wire.KindOK}, nil
	}

	defer func() {
		if v := recover(); v != nil {
			resp, err = wire.NewInternalServerErrorResponse(), &HandlerPanicError{Value: v}
		}
	}()

	resp, err = h.Execute(ctx, req)
	if err == nil && resp == nil {
		err = ErrNilResponse
	}
	if err != nil {
		return wire.NewInternalServerErrorResponse(), err
	}
	return resp, nil
}
