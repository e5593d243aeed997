// Package saori implements the module side of the SAORI/1.0 protocol, the
// text request/response protocol a host application uses to call an external
// computation module, plus a host-side Client for modules served over a
// socket.
//
// A Module runs every request through one pipeline:
//
//	raw text -> wire.ParseRequest -> Dispatch -> wire.FormatResponse -> raw text
//
// Version probes are answered directly; Execute requests go to the Handler
// supplied in Config (EchoHandler by default). Malformed input and handler
// failures are converted to valid 400/500 responses, so the pipeline never
// fails.
//
// Hosts that hand over encoded bytes use Module.Request, which decodes and
// encodes with the configured Codec (Shift_JIS by default) and appends the
// NUL terminator the host expects:
//
//	m := saori.NewModule(saori.Config{
//	    Handler: saori.HandlerFunc(func(ctx context.Context, req *wire.Request) (*wire.Response, error) {
//	        return wire.NewOKResponse(strings.ToUpper(req.Argument(0))), nil
//	    }),
//	})
//	m.Load(dir)
//	defer m.Unload()
//	out := m.Request(ctx, buf)
package saori
