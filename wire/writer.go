package wire

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pior/saori/internal"
)

// Buffer pool for building responses and requests.
// Typical message is well under 256 bytes.
var bufferPool = internal.NewByteBufferPool(256, 64*1024)

// AppendResponse appends the wire form of resp to dst and returns the
// extended slice.
//
// Format:
//
//	SAORI/1.0 <code> <text>\r\n
//	Charset: Shift_JIS\r\n
//	Result: <result>\r\n
//	Value<i>: <value>\r\n   (for each value, in order)
//	\r\n
//
// The Result line is written for every kind, 400 included. Only the canned
// VersionResponse and MalformedResponse omit it.
//
// Result and Values are copied verbatim; the Handler keeps them free of CR and LF.
func AppendResponse(dst []byte, resp *Response) []byte {
	dst = append(dst, Version...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(resp.Kind.Code()), 10)
	dst = append(dst, ' ')
	dst = append(dst, resp.Kind.Text()...)
	dst = append(dst, CRLF...)

	dst = appendHeader(dst, HeaderCharset, CharsetShiftJIS)
	dst = appendHeader(dst, HeaderResult, resp.Result)

	for i, v := range resp.Values {
		dst = appendIndexedHeader(dst, HeaderValue, i, v)
	}

	return append(dst, CRLF...)
}

// FormatResponse returns the wire form of resp. It never fails and holds no
// state: formatting the same Response twice yields the same string.
func FormatResponse(resp *Response) string {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	buf.Write(AppendResponse(buf.AvailableBuffer(), resp))
	return buf.String()
}

// WriteResponse serializes resp and writes it to w in a single write.
func WriteResponse(w io.Writer, resp *Response) error {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	buf.Write(AppendResponse(buf.AvailableBuffer(), resp))
	_, err := w.Write(buf.Bytes())
	return err
}

// AppendRequest appends the wire form of req to dst (host side).
// Fields are copied verbatim; callers check them with ValidateRequest first.
//
// Format:
//
//	EXECUTE SAORI/1.0\r\n      (or GET Version SAORI/1.0\r\n)
//	Charset: <charset>\r\n     (Shift_JIS when empty)
//	Sender: <sender>\r\n       (omitted when empty)
//	SecurityLevel: <level>\r\n (omitted when empty)
//	Argument<i>: <arg>\r\n     (Execute only, for each argument)
//	\r\n
func AppendRequest(dst []byte, req *Request) []byte {
	if req.Kind == KindVersionQuery {
		dst = append(dst, RequestLineGetVersion...)
	} else {
		dst = append(dst, RequestLineExecute...)
	}
	dst = append(dst, CRLF...)

	charset := req.Charset
	if charset == "" {
		charset = CharsetShiftJIS
	}
	dst = appendHeader(dst, HeaderCharset, charset)

	if req.Sender != "" {
		dst = appendHeader(dst, HeaderSender, req.Sender)
	}
	if req.SecurityLevel != "" {
		dst = appendHeader(dst, HeaderSecurityLevel, req.SecurityLevel)
	}

	if req.Kind == KindExecute {
		for i, arg := range req.Arguments {
			dst = appendIndexedHeader(dst, HeaderArgument, i, arg)
		}
	}

	return append(dst, CRLF...)
}

// ValidateRequest reports whether every field of req fits on a header line.
// The returned error wraps ErrInvalidHeaderValue and names the field.
func ValidateRequest(req *Request) error {
	if err := checkHeaderValue(HeaderCharset, req.Charset); err != nil {
		return err
	}
	if err := checkHeaderValue(HeaderSender, req.Sender); err != nil {
		return err
	}
	if err := checkHeaderValue(HeaderSecurityLevel, req.SecurityLevel); err != nil {
		return err
	}
	if req.Kind == KindVersionQuery {
		return nil
	}
	for i, arg := range req.Arguments {
		if err := checkHeaderValue(HeaderArgument+strconv.Itoa(i), arg); err != nil {
			return err
		}
	}
	return nil
}

func checkHeaderValue(name, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %s", ErrInvalidHeaderValue, name)
	}
	return nil
}

// WriteRequest serializes req and writes it to w in a single write.
// A request failing ValidateRequest is rejected before anything is written.
func WriteRequest(w io.Writer, req *Request) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	buf.Write(AppendRequest(buf.AvailableBuffer(), req))
	_, err := w.Write(buf.Bytes())
	return err
}

func appendHeader(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, HeaderSeparator...)
	dst = append(dst, value...)
	return append(dst, CRLF...)
}

func appendIndexedHeader(dst []byte, name string, index int, value string) []byte {
	dst = append(dst, name...)
	dst = strconv.AppendInt(dst, int64(index), 10)
	dst = append(dst, HeaderSeparator...)
	dst = append(dst, value...)
	return append(dst, CRLF...)
}
