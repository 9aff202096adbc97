package completion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/cost"
	"github.com/sells-group/crosssell/internal/monitoring"
	"github.com/sells-group/crosssell/internal/resilience"
)

// Metered logs each call with token usage and estimated cost and records
// it in the Prometheus metrics.
type Metered struct {
	next     Completer
	provider string
	calc     *cost.Calculator
	metrics  *monitoring.Metrics
}

// NewMetered wraps next. calc and metrics may be nil.
func NewMetered(next Completer, provider string, calc *cost.Calculator, metrics *monitoring.Metrics) *Metered {
	return &Metered{next: next, provider: provider, calc: calc, metrics: metrics}
}

// Complete implements Completer.
func (m *Metered) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := m.next.Complete(ctx, req)
	elapsed := time.Since(start)

	log := zap.L().With(
		zap.String("provider", m.provider),
		zap.String("stage", req.Stage),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	if err != nil {
		log.Warn("completion: call failed",
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		m.metrics.ObserveCompletion(m.provider, false, 0, 0, 0)
		return nil, err
	}

	var usd float64
	if m.calc != nil {
		usd = m.calc.Completion(resp.Provider, resp.Model, resp.InputTokens, resp.OutputTokens)
	}
	log.Info("cost attribution",
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.InputTokens),
		zap.Int64("output_tokens", resp.OutputTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	m.metrics.ObserveCompletion(m.provider, true, resp.InputTokens, resp.OutputTokens, usd)
	return resp, nil
}
