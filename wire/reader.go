package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ErrFrameTooLarge is returned by ReadFrame when a message exceeds the
// configured byte limit before its terminating blank line.
var ErrFrameTooLarge = &ParseError{Message: "message exceeds size limit"}

// Parser converts raw request text into a Request.
//
// The zero value is the lenient parser: lines inside an Execute request that
// match no header (including Argument lines with a bad index) are ignored.
type Parser struct {
	// Strict reports unrecognized lines and invalid Argument indices as
	// *ParseError instead of ignoring them.
	Strict bool
}

// ParseRequest parses raw with the lenient parser.
//
// Request format: <command line>\r\n[<header>\r\n]*\r\n
//
// Returns ErrMalformedFirstLine when the first line is neither a version
// probe nor an execute command. No other error is possible in lenient mode.
func ParseRequest(raw string) (*Request, error) {
	return Parser{}.Parse(raw)
}

// Parse parses one already-decoded request. CRLF is the only structural
// delimiter; no charset processing happens here.
func (p Parser) Parse(raw string) (*Request, error) {
	lines := strings.Split(raw, CRLF)

	first := lines[0]
	if strings.HasPrefix(first, PrefixGetVersion) {
		// Version probes never look past the first line
		return &Request{Kind: KindVersionQuery}, nil
	}
	if !strings.HasPrefix(first, PrefixExecute) {
		return nil, ErrMalformedFirstLine
	}

	req := &Request{Kind: KindExecute}
	for i, line := range lines[1:] {
		if err := p.parseHeader(req, line); err != nil {
			err.Line = i + 2
			return nil, err
		}
	}
	return req, nil
}

// parseHeader applies one header line to req. Patterns are tried in order:
// Argument<N>, Charset, Sender, SecurityLevel.
func (p Parser) parseHeader(req *Request, line string) *ParseError {
	index, body, err := matchArgument(line)
	if err == nil {
		req.setArgument(index, body)
		return nil
	}
	if p.Strict && err != errNoMatch {
		return &ParseError{Message: "invalid argument line", Err: err}
	}

	if v, ok := matchHeader(line, HeaderCharset); ok {
		req.Charset = v
		return nil
	}
	if v, ok := matchHeader(line, HeaderSender); ok {
		req.Sender = v
		return nil
	}
	if v, ok := matchHeader(line, HeaderSecurityLevel); ok {
		req.SecurityLevel = v
		return nil
	}

	if p.Strict && line != "" {
		return &ParseError{Message: "unrecognized header line"}
	}
	return nil
}

var (
	errNoMatch      = errors.New("no match")
	errIndexRange   = errors.New("argument index out of range")
	errMissingIndex = errors.New("missing argument index")
	errMissingValue = errors.New("missing argument value")
	errMissingColon = errors.New("missing header separator")
)

// matchArgument matches "Argument<digits>: <body>".
//
// errNoMatch means the line is not an Argument line at all; any other error
// means it starts like one but cannot be accepted.
func matchArgument(line string) (int, string, error) {
	rest, ok := strings.CutPrefix(line, HeaderArgument)
	if !ok {
		return 0, "", errNoMatch
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, "", errMissingIndex
	}

	body, ok := matchValue(rest[digits:])
	if !ok {
		if strings.HasPrefix(rest[digits:], HeaderSeparator) {
			return 0, "", errMissingValue
		}
		return 0, "", errMissingColon
	}

	index, err := strconv.Atoi(rest[:digits])
	if err != nil {
		return 0, "", err
	}
	if index > MaxArgumentIndex {
		return 0, "", errIndexRange
	}
	return index, body, nil
}

// matchHeader matches "<name>: <value>".
func matchHeader(line, name string) (string, bool) {
	rest, ok := strings.CutPrefix(line, name)
	if !ok {
		return "", false
	}
	return matchValue(rest)
}

// matchValue extracts the value after ": ". The value is kept verbatim,
// embedded colons included, but ends at a bare LF and must not be empty.
func matchValue(s string) (string, bool) {
	v, ok := strings.CutPrefix(s, HeaderSeparator)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(v, '\n'); i >= 0 {
		v = v[:i]
	}
	return v, v != ""
}

// ReadFrame reads one framed message (request or response) from r: every
// line up to and including the empty line that terminates the headers. The
// raw bytes are returned undecoded, terminator included, so the caller can
// run them through a charset decoder first. Shift_JIS never uses CR or LF as
// a trail byte, so framing on raw bytes is safe.
//
// Blank lines before the first line of a message are skipped.
// maxBytes <= 0 disables the size limit.
//
// Returns io.EOF if the stream ends before any byte was read and
// io.ErrUnexpectedEOF if it ends inside a message.
func ReadFrame(r *bufio.Reader, maxBytes int) ([]byte, error) {
	var buf []byte
	lineStart := 0
	for {
		// ReadSlice yields at most one buffer's worth, so the limit holds
		// inside a line that never ends.
		chunk, err := r.ReadSlice('\n')
		if maxBytes > 0 && len(buf)+len(chunk) > maxBytes {
			return nil, ErrFrameTooLarge
		}
		buf = append(buf, chunk...)

		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if isBlankLine(buf[lineStart:]) {
			if lineStart == 0 {
				// Stray blank line between messages
				buf = buf[:0]
				continue
			}
			return buf, nil
		}
		lineStart = len(buf)
	}
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isBlankLine(line []byte) bool {
	return bytes.Equal(line, crlfBytes) || bytes.Equal(line, lfBytes)
}

// Pre-allocated byte slices for comparisons
var (
	crlfBytes    = []byte(CRLF)
	lfBytes      = []byte("\n")
	versionBytes = []byte(Version + Space)
)

// ReadResponse reads and parses a single response from r (host side).
// Response format: SAORI/1.0 <code> <text>\r\n[<header>\r\n]*\r\n
//
// Charset, Result and Value<N> headers are decoded; other headers are skipped,
// including Value-prefixed names such as ValueType that carry no index.
// A malformed status line or an unknown status code returns *ParseError.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	status, ok := bytes.CutPrefix(line, versionBytes)
	if !ok {
		return nil, &ParseError{Message: "invalid status line: " + string(line), Line: 1}
	}
	codeBytes, _, _ := bytes.Cut(status, []byte(Space))
	code, err := strconv.Atoi(string(codeBytes))
	if err != nil {
		return nil, &ParseError{Message: "invalid status code", Line: 1, Err: err}
	}
	kind, ok := kindFromCode(code)
	if !ok {
		return nil, &ParseError{Message: "unknown status code " + strconv.Itoa(code), Line: 1}
	}

	resp := &Response{Kind: kind}
	for n := 2; ; n++ {
		line, err = readLine(r)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if len(line) == 0 {
			return resp, nil
		}

		name, value, ok := strings.Cut(string(line), ":")
		if !ok {
			return nil, &ParseError{Message: "invalid header line", Line: n}
		}
		value = strings.TrimPrefix(value, Space)

		switch {
		case name == HeaderCharset:
			resp.Charset = value
		case name == HeaderResult:
			resp.Result = value
			resp.HasResult = true
		case strings.HasPrefix(name, HeaderValue) && isDigits(name[len(HeaderValue):]):
			index, err := strconv.Atoi(name[len(HeaderValue):])
			if err != nil || index > MaxArgumentIndex {
				return nil, &ParseError{Message: "invalid value index", Line: n, Err: err}
			}
			resp.setValue(index, value)
		}
	}
}

// ParseResponse parses a complete, already-decoded response.
func ParseResponse(raw string) (*Response, error) {
	return ReadResponse(bufio.NewReader(strings.NewReader(raw)))
}

// readLine reads one line and strips its CRLF (or bare LF).
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := readRawLine(r)
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSuffix(line, lfBytes)
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

// readRawLine reads one line including its terminator. The fast path returns
// a slice into r's buffer, valid until the next read; lines longer than the
// buffer fall back to an allocating read.
func readRawLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != bufio.ErrBufferFull {
		return line, err
	}

	// Copy before reading on: the next read reuses the buffer
	head := append([]byte(nil), line...)
	more, err := r.ReadBytes('\n')
	return append(head, more...), err
}
