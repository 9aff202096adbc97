package completion

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limited paces calls to a provider. Callers block until a token is free or
// their context ends.
type Limited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewLimited wraps next with a limiter allowing perSecond calls on average
// and bursts of up to burst calls.
func NewLimited(next Completer, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Complete implements Completer.
func (l *Limited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "completion: rate limit wait")
	}
	return l.next.Complete(ctx, req)
}
