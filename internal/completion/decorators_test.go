package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crosssell/internal/cost"
	"github.com/sells-group/crosssell/internal/monitoring"
	"github.com/sells-group/crosssell/internal/resilience"
)

func TestOffline_Complete(t *testing.T) {
	o := NewOffline()
	for _, stage := range []string{StagePatternAnalysis, StageAffinityGeneration, StageOpportunityScoring, StageReportSynthesis} {
		resp, err := o.Complete(context.Background(), Request{Stage: stage, User: "prompt"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Text, stage)
		assert.Equal(t, "offline", resp.Provider)
	}

	resp, err := o.Complete(context.Background(), Request{Stage: "unknown"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "offline")
}

func TestOffline_Complete_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOffline().Complete(ctx, Request{Stage: StagePatternAnalysis})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBreaker_OpensAndFailsFast(t *testing.T) {
	next := &mockCompleter{}
	next.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("upstream down")).Twice()

	b := NewBreaker(next, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), Request{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream down")
	}

	_, err := b.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
	next.AssertExpectations(t)
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	next := &mockCompleter{}
	next.On("Complete", mock.Anything, mock.Anything).Return(&Response{Text: "ok"}, nil)

	b := NewBreaker(next, resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()))
	resp, err := b.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestLimited_WaitRespectsContext(t *testing.T) {
	next := &mockCompleter{}
	next.On("Complete", mock.Anything, mock.Anything).Return(&Response{Text: "ok"}, nil).Once()

	l := NewLimited(next, 0.001, 1)

	_, err := l.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Complete(ctx, Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	next.AssertExpectations(t)
}

func TestMetered_RecordsUsageAndCost(t *testing.T) {
	next := &mockCompleter{}
	next.On("Complete", mock.Anything, mock.Anything).Return(&Response{
		Text: "ok", Provider: "openai", Model: "gpt-3.5-turbo",
		InputTokens: 1000000, OutputTokens: 0,
	}, nil).Once()
	next.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	m := NewMetered(next, "openai", cost.NewCalculator(cost.DefaultRates()), metrics)

	_, err := m.Complete(context.Background(), Request{Stage: StagePatternAnalysis})
	require.NoError(t, err)
	_, err = m.Complete(context.Background(), Request{Stage: StagePatternAnalysis})
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CompletionCalls.WithLabelValues("openai", "success")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CompletionCalls.WithLabelValues("openai", "failure")), 1e-9)
	assert.InDelta(t, 0.50, testutil.ToFloat64(metrics.CompletionCostUSD.WithLabelValues("openai")), 1e-9)
}

func TestMetered_NilDependencies(t *testing.T) {
	next := &mockCompleter{}
	next.On("Complete", mock.Anything, mock.Anything).Return(&Response{Text: "ok"}, nil)

	resp, err := NewMetered(next, "offline", nil, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}
