package saori

import (
	"context"
	"time"

	"github.com/pior/saori/wire"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards a handler or a remote module.
type CircuitBreaker = *gobreaker.CircuitBreaker[*wire.Response]

// NewCircuitBreakerConfig returns a function that creates circuit breakers by name.
// The Module uses it once for its handler ("handler"); the Client once per server address.
//
// The breaker trips when at least 3 requests were seen in the interval and 60%
// of them failed.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(name string) CircuitBreaker {
	return func(name string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*wire.Response](settings)
	}
}

// WithCircuitBreaker wraps h so that every call goes through cb.
//
// Handler errors count as failures. While the breaker is open, calls fail
// with gobreaker.ErrOpenState without reaching h, which the dispatcher answers
// with an empty 500.
func WithCircuitBreaker(h Handler, cb CircuitBreaker) Handler {
	return HandlerFunc(func(ctx context.Context, req *wire.Request) (*wire.Response, error) {
		return cb.Execute(func() (*wire.Response, error) {
			return h.Execute(ctx, req)
		})
	})
}
