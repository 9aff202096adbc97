package completion

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crosssell/internal/resilience"
)

// Breaker stops calling a provider after repeated failures. Rejected calls
// fail fast with resilience.ErrCircuitOpen; nothing is retried.
type Breaker struct {
	next Completer
	cb   *resilience.CircuitBreaker
}

// NewBreaker wraps next with cb.
func NewBreaker(next Completer, cb *resilience.CircuitBreaker) *Breaker {
	return &Breaker{next: next, cb: cb}
}

// Complete implements Completer.
func (b *Breaker) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := resilience.Call(ctx, b.cb, func(ctx context.Context) (*Response, error) {
		return b.next.Complete(ctx, req)
	})
	if eris.Is(err, resilience.ErrCircuitOpen) {
		return nil, eris.Wrap(err, "completion: provider unavailable")
	}
	return resp, err
}
