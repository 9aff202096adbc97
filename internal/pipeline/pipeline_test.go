package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/monitoring"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, Option) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, WithTracer(tp.Tracer("test"))
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestPipeline_Run_Success(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C001").Return(acmeRecord(), nil)
	llm := happyCompleter()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	sr, withTracer := newRecorder(t)

	p := NewDefault(lookup, "CSV", llm, WithMetrics(metrics), withTracer)
	resp := p.Run(context.Background(), "C001")

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "C001", resp.CustomerID)
	assert.Equal(t, reportText, resp.ResearchReport)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Recommendations, 3)
	assert.Equal(t, "Analytics Pro", resp.Recommendations[0].ProductName)
	assert.InDelta(t, 0.9, resp.Recommendations[0].ConfidenceScore, 1e-9)
	assert.Equal(t, int64(45000), resp.Recommendations[0].EstimatedValue)

	llm.AssertNumberOfCalls(t, "Complete", 4)
	lookup.AssertExpectations(t)

	assert.ElementsMatch(t, []string{
		"pipeline.Run",
		"pipeline.context_extraction",
		"pipeline.pattern_analysis",
		"pipeline.affinity_generation",
		"pipeline.opportunity_scoring",
		"pipeline.report_synthesis",
	}, spanNames(sr.Ended()))
	for _, s := range sr.Ended() {
		assert.Equal(t, codes.Ok, s.Status().Code, s.Name())
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 5, testutil.CollectAndCount(metrics.StageDuration))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.StageFailures))
}

func TestPipeline_Run_CustomerNotFound(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C404").Return(nil, nil)
	llm := &mockCompleter{}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	sr, withTracer := newRecorder(t)

	resp := NewDefault(lookup, "CSV", llm, WithMetrics(metrics), withTracer).Run(context.Background(), "C404")

	assert.False(t, resp.Success)
	assert.Equal(t, "C404", resp.CustomerID)
	assert.Equal(t, "Customer C404 not found", resp.Error)
	assert.Empty(t, resp.ResearchReport)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
	llm.AssertNotCalled(t, "Complete")

	assert.ElementsMatch(t, []string{"pipeline.Run", "pipeline.context_extraction"}, spanNames(sr.Ended()))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StageFailures.WithLabelValues(StageContextExtraction)))
}

func TestPipeline_Run_StopsCallingAfterFailure(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C001").Return(acmeRecord(), nil)
	llm := &mockCompleter{}
	llm.answer(StagePatternAnalysis, patternText)
	llm.fail(StageAffinityGeneration, errors.New("503 service unavailable"))

	resp := NewDefault(lookup, "CSV", llm).Run(context.Background(), "C001")

	assert.False(t, resp.Success)
	assert.Equal(t, "Error in product affinity analysis: 503 service unavailable", resp.Error)
	assert.Empty(t, resp.Recommendations)
	llm.AssertNumberOfCalls(t, "Complete", 2)
	llm.AssertNotCalled(t, "Complete", mock.Anything, forStage(StageOpportunityScoring))
	llm.AssertNotCalled(t, "Complete", mock.Anything, forStage(StageReportSynthesis))
}

func TestPipeline_Run_EmptyScoringStillSucceeds(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C001").Return(acmeRecord(), nil)
	llm := &mockCompleter{}
	llm.answer(StagePatternAnalysis, patternText)
	llm.answer(StageAffinityGeneration, affinityText)
	llm.answer(StageOpportunityScoring, "No opportunities found.")
	llm.On("Complete", mock.Anything, matchUser(func(user string) bool {
		return strings.Contains(user, noRecommendations)
	})).Return(okResponse(reportText), nil)

	resp := NewDefault(lookup, "CSV", llm).Run(context.Background(), "C001")

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, reportText, resp.ResearchReport)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
}

func TestPipeline_Run_RecommendationsCappedAndOrdered(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&b, "Product: P%d\nType: cross-sell\nScore: %d\nRationale: r\nValue: $%d,000\n---\n", i, 20+i*9, i+1)
	}

	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C001").Return(acmeRecord(), nil)
	llm := &mockCompleter{}
	llm.answer(StagePatternAnalysis, patternText)
	llm.answer(StageAffinityGeneration, affinityText)
	llm.answer(StageOpportunityScoring, b.String())
	llm.answer(StageReportSynthesis, reportText)

	resp := NewDefault(lookup, "CSV", llm).Run(context.Background(), "C001")

	require.True(t, resp.Success, resp.Error)
	require.Len(t, resp.Recommendations, MaxRecommendations)
	assert.Equal(t, "P8", resp.Recommendations[0].ProductName)
	for i := 1; i < len(resp.Recommendations); i++ {
		assert.GreaterOrEqual(t, resp.Recommendations[i-1].ConfidenceScore, resp.Recommendations[i].ConfidenceScore)
	}
}

func TestPipeline_Run_RecoversPanic(t *testing.T) {
	llm := &mockCompleter{}
	sr, withTracer := newRecorder(t)

	p := New([]Stage{panicStage{}, NewReportSynthesis(llm)}, withTracer)
	resp := p.Run(context.Background(), "C001")

	assert.False(t, resp.Success)
	assert.Equal(t, "Workflow execution error: boom", resp.Error)
	assert.Empty(t, resp.Recommendations)
	llm.AssertNotCalled(t, "Complete")

	var stageSpan sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == "pipeline.explode" {
			stageSpan = s
		}
	}
	require.NotNil(t, stageSpan)
	assert.Equal(t, codes.Error, stageSpan.Status().Code)
}

func TestPipeline_Run_Offline(t *testing.T) {
	lookup := &mockLookup{}
	lookup.On("GetCustomerByID", mock.Anything, "C001").Return(acmeRecord(), nil)

	resp := NewDefault(lookup, "CSV", completion.NewOffline()).Run(context.Background(), "C001")

	require.True(t, resp.Success, resp.Error)
	assert.NotEmpty(t, resp.ResearchReport)
	require.Len(t, resp.Recommendations, 3)
	assert.Equal(t, "Analytics Pro", resp.Recommendations[0].ProductName)
	assert.Equal(t, "upsell", resp.Recommendations[1].RecommendationType)
}

func TestPipeline_Stage(t *testing.T) {
	p := NewDefault(&mockLookup{}, "CSV", &mockCompleter{})

	require.Len(t, p.Stages(), 5)
	for i, name := range []string{
		StageContextExtraction,
		StagePatternAnalysis,
		StageAffinityGeneration,
		StageOpportunityScoring,
		StageReportSynthesis,
	} {
		assert.Equal(t, name, p.Stages()[i].Name())
		s, ok := p.Stage(name)
		require.True(t, ok)
		assert.Equal(t, name, s.Name())
	}

	_, ok := p.Stage("unknown")
	assert.False(t, ok)
}
