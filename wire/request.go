package wire

// RequestKind selects the dispatch path of a request.
type RequestKind int

const (
	// KindExecute asks the module to run its computation on the arguments.
	KindExecute RequestKind = iota

	// KindVersionQuery is a liveness/version probe answered without running
	// any domain logic.
	KindVersionQuery
)

func (k RequestKind) String() string {
	switch k {
	case KindExecute:
		return "execute"
	case KindVersionQuery:
		return "version"
	default:
		return "unknown"
	}
}

// Request represents one decoded SAORI invocation.
// This is a plain data container; parsing lives in ParseRequest and
// serialization (host side) in WriteRequest.
type Request struct {
	// Kind is set from the first request line.
	Kind RequestKind

	// Arguments holds the Argument<N> headers indexed by N.
	// Indices that never appeared are empty strings, so len(Arguments) is
	// always the highest index seen plus one (or zero).
	Arguments []string

	// SecurityLevel is the SecurityLevel header, empty if absent.
	SecurityLevel string

	// Sender is the Sender header, empty if absent.
	Sender string

	// Charset is the Charset header as declared by the caller, empty if absent.
	// It is informational: the core always answers in Shift_JIS.
	Charset string
}

// NewExecuteRequest creates an Execute request with the given arguments.
//
// Usage:
//
//	req := wire.NewExecuteRequest("hello", "world")
//	req.Sender = "host"
func NewExecuteRequest(args ...string) *Request {
	return &Request{
		Kind:      KindExecute,
		Arguments: args,
	}
}

// NewVersionRequest creates a version probe.
func NewVersionRequest() *Request {
	return &Request{Kind: KindVersionQuery}
}

// Argument returns the argument at index i, or "" when i is out of range.
func (r *Request) Argument(i int) string {
	if i < 0 || i >= len(r.Arguments) {
		return ""
	}
	return r.Arguments[i]
}

// setArgument stores body at index, growing Arguments with empty slots.
func (r *Request) setArgument(index int, body string) {
	if index >= len(r.Arguments) {
		grown := make([]string, index+1)
		copy(grown, r.Arguments)
		r.Arguments = grown
	}
	r.Arguments[index] = body
}
