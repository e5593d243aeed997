package wire

import (
	"errors"
	"fmt"
)

// ErrMalformedFirstLine is returned by the parser when the first request line
// is neither a version probe nor an execute command, or the input is empty.
//
// The request is answered with MalformedResponse; no handler runs.
var ErrMalformedFirstLine = &ParseError{Message: "malformed first line"}

// ErrInvalidHeaderValue is returned when a request field to be written
// contains CR or LF. Such a value would end the header line early and let the
// remainder be read as further headers or as a second message.
//
// Nothing is written, so the connection stays usable.
var ErrInvalidHeaderValue = errors.New("saori: header value contains CR or LF")

// ParseError represents a failure to parse a request or a response.
//
// Common causes:
//   - Unknown or missing request line (ErrMalformedFirstLine)
//   - Invalid Argument<N> index in strict mode
//   - Unrecognized header line in strict mode
//   - Malformed status line or unknown status code in a response
//
// Connection handling: CLOSE, the stream position is uncertain
type ParseError struct {
	Message string
	Line    int   // 1-based line number, 0 when not tied to a line
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	msg := "saori: parse error: " + e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors leave the stream in an unknown state
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps I/O errors from connection operations.
// Used to distinguish network issues from protocol errors.
//
// Connection handling: connection is already broken, CLOSE it
type ConnectionError struct {
	Op  string // Operation that failed (read, write, dial)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("saori: connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection they happened on can be reused.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
//
// Returns false for nil. Unknown error types are treated conservatively and
// return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
