package wire

import "strconv"

// ResponseKind maps 1:1 to a protocol status line.
type ResponseKind int

const (
	KindOK ResponseKind = iota
	KindBadRequest
	KindInternalServerError
)

// Code returns the numeric status code written on the status line.
func (k ResponseKind) Code() int {
	switch k {
	case KindOK:
		return StatusOK
	case KindBadRequest:
		return StatusBadRequest
	default:
		return StatusInternalServerError
	}
}

// Text returns the reason phrase written on the status line.
func (k ResponseKind) Text() string {
	switch k {
	case KindOK:
		return StatusTextOK
	case KindBadRequest:
		return StatusTextBadRequest
	default:
		return StatusTextInternalServerError
	}
}

// String returns "<code> <text>", e.g. "200 OK".
func (k ResponseKind) String() string {
	return strconv.Itoa(k.Code()) + Space + k.Text()
}

// kindFromCode is the inverse of Code.
func kindFromCode(code int) (ResponseKind, bool) {
	switch code {
	case StatusOK:
		return KindOK, true
	case StatusBadRequest:
		return KindBadRequest, true
	case StatusInternalServerError:
		return KindInternalServerError, true
	default:
		return 0, false
	}
}

// Response represents the outcome of dispatching a request.
type Response struct {
	// Kind selects the status line.
	Kind ResponseKind

	// Result is the primary textual result. May be empty.
	Result string

	// Values are the auxiliary outputs, written as Value0, Value1, ...
	Values []string

	// Charset is the Charset header read by ReadResponse.
	// WriteResponse ignores it and always declares Shift_JIS.
	Charset string

	// HasResult reports whether ReadResponse saw a Result line.
	// Version probe and malformed-request answers carry none.
	HasResult bool
}

// NewOKResponse creates a 200 response.
func NewOKResponse(result string, values ...string) *Response {
	return &Response{
		Kind:   KindOK,
		Result: result,
		Values: values,
	}
}

// NewBadRequestResponse creates a 400 response with an empty payload.
func NewBadRequestResponse() *Response {
	return &Response{Kind: KindBadRequest}
}

// NewInternalServerErrorResponse creates a 500 response with an empty payload.
func NewInternalServerErrorResponse() *Response {
	return &Response{Kind: KindInternalServerError}
}

// IsSuccess returns true for a 200 response.
func (r *Response) IsSuccess() bool {
	return r.Kind == KindOK
}

// Value returns the auxiliary value at index i, or "" when out of range.
func (r *Response) Value(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

// setValue stores v at index, growing Values with empty slots.
func (r *Response) setValue(index int, v string) {
	if index >= len(r.Values) {
		grown := make([]string, index+1)
		copy(grown, r.Values)
		r.Values = grown
	}
	r.Values[index] = v
}
