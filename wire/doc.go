// Package wire provides a low-level implementation of the SAORI/1.0 text
// protocol: the request/response format a host application uses to invoke an
// external computation module.
//
// The package is pure serialization and parsing. It performs no I/O of its
// own beyond the io.Writer/bufio.Reader it is handed, keeps no state between
// calls, and does not deal with character encodings: every function works on
// text that has already been decoded (see the root saori package for the
// Shift_JIS codec).
//
// # Core Types
//
//   - Request: one decoded invocation (Execute or version probe)
//   - Response: the outcome of dispatching a request
//
// # Module side
//
// ParseRequest turns request text into a Request:
//
//	req, err := wire.ParseRequest("EXECUTE SAORI/1.0\r\nArgument0: hello\r\n\r\n")
//	if errors.Is(err, wire.ErrMalformedFirstLine) {
//	    return wire.MalformedResponse
//	}
//
// FormatResponse turns a Response back into wire text:
//
//	wire.FormatResponse(wire.NewOKResponse("hello", "test1", "test2"))
//	// SAORI/1.0 200 OK\r\nCharset: Shift_JIS\r\nResult: hello\r\nValue0: test1\r\nValue1: test2\r\n\r\n
//
// Parsing is lenient by default: header lines that match none of Argument<N>,
// Charset, Sender or SecurityLevel are ignored. Parser{Strict: true} reports
// them as *ParseError instead.
//
// # Host side
//
// WriteRequest and ReadResponse are the mirror image, used by clients:
//
//	wire.WriteRequest(conn, wire.NewExecuteRequest("hello"))
//	resp, err := wire.ReadResponse(bufio.NewReader(conn))
//
// ReadFrame cuts one raw message from a stream (everything up to the blank
// line) so that servers and clients can decode it before parsing.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Request and Response values are
// not; they are meant to be built and consumed within a single call.
package wire
