package wire

// Protocol delimiters
const (
	// CRLF is the line terminator for the SAORI protocol
	CRLF = "\r\n"

	// Space separates tokens on the status line
	Space = " "

	// HeaderSeparator separates a header name from its value
	HeaderSeparator = ": "
)

// Protocol version tokens
const (
	// Version is the protocol version written on every request and status line.
	Version = "SAORI/1.0"

	// CharsetShiftJIS is the only charset this implementation writes.
	// Responses always declare it, independent of the request's Charset header.
	CharsetShiftJIS = "Shift_JIS"
)

// Request line prefixes.
//
// Only the prefix is significant when parsing: "GET Version SAORI/1.0" and
// "GET Version SAORI/2.0" are both version probes.
const (
	// PrefixGetVersion starts a version probe request.
	//
	// Wire format: GET Version SAORI/1.0\r\n[<headers>\r\n]*\r\n
	PrefixGetVersion = "GET Version SAORI"

	// PrefixExecute starts an execution request.
	//
	// Wire format: EXECUTE SAORI/1.0\r\n[<headers>\r\n]*\r\n
	PrefixExecute = "EXECUTE SAORI"

	// RequestLineGetVersion and RequestLineExecute are written by WriteRequest.
	RequestLineGetVersion = PrefixGetVersion + "/1.0"
	RequestLineExecute    = PrefixExecute + "/1.0"
)

// Header names. Matching is case-sensitive and prefix-exact.
const (
	HeaderArgument      = "Argument"
	HeaderCharset       = "Charset"
	HeaderSender        = "Sender"
	HeaderSecurityLevel = "SecurityLevel"
	HeaderResult        = "Result"
	HeaderValue         = "Value"
)

// Status codes
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusInternalServerError = 500
)

// Status texts
const (
	StatusTextOK                  = "OK"
	StatusTextBadRequest          = "Bad Request"
	StatusTextInternalServerError = "Internal Server Error"
)

// Limits
const (
	// MaxArgumentIndex is the largest Argument<N> index accepted by the parser.
	// Lines with a larger index are treated like an index that failed to parse.
	MaxArgumentIndex = 65535
)

// Canned responses that bypass the serializer.
const (
	// VersionResponse answers every version probe.
	VersionResponse = Version + " 200 " + StatusTextOK + CRLF +
		HeaderCharset + HeaderSeparator + CharsetShiftJIS + CRLF +
		CRLF

	// MalformedResponse answers a request whose first line is not a known command.
	// Unlike a serialized BadRequest it carries no Result line.
	MalformedResponse = Version + " 400 " + StatusTextBadRequest + CRLF +
		HeaderCharset + HeaderSeparator + CharsetShiftJIS + CRLF +
		CRLF
)
