package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/customer"
	"github.com/sells-group/crosssell/internal/model"
	"github.com/sells-group/crosssell/internal/monitoring"
)

const tracerName = "crosssell.pipeline"

// Pipeline runs its stages in a fixed order against one State per request.
type Pipeline struct {
	stages  []Stage
	metrics *monitoring.Metrics
	tracer  trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run and stage metrics on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer replaces the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New creates a pipeline over the given stages.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{stages: stages}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// NewDefault wires the five recommendation stages. sourceName labels
// customer lookup metrics.
func NewDefault(lookup customer.Lookup, sourceName string, llm completion.Completer, opts ...Option) *Pipeline {
	p := New(nil, opts...)
	p.stages = []Stage{
		NewContextExtraction(lookup, sourceName, p.metrics),
		NewPatternAnalysis(llm),
		NewAffinityGeneration(llm),
		NewOpportunityScoring(llm, p.metrics),
		NewReportSynthesis(llm),
	}
	return p
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Stage returns the stage with the given name.
func (p *Pipeline) Stage(name string) (Stage, bool) {
	for _, s := range p.stages {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Run processes one customer through every stage and builds the response.
// Every stage is visited; after the first failure the rest pass through.
func (p *Pipeline) Run(ctx context.Context, customerID string) model.RecommendationResponse {
	start := time.Now()
	log := zap.L().With(zap.String("customer_id", customerID))
	log.Info("pipeline: starting run")

	ctx, span := p.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("customer_id", customerID)),
	)
	defer span.End()

	st := NewState(customerID)
	for _, s := range p.stages {
		st = p.Step(ctx, s, st)
	}

	resp := st.Response()
	elapsed := time.Since(start)
	p.metrics.ObserveRun(resp.Success, elapsed)

	if resp.Success {
		span.SetStatus(codes.Ok, "")
		log.Info("pipeline: run complete",
			zap.Int("recommendations", len(resp.Recommendations)),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	} else {
		span.SetStatus(codes.Error, resp.Error)
		log.Warn("pipeline: run failed",
			zap.String("error", resp.Error),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	}
	return resp
}

// Step executes one stage with logging, metrics, and a span. A state that
// already failed passes through untouched. A panic inside the stage is
// recovered and recorded as the state's error.
func (p *Pipeline) Step(ctx context.Context, s Stage, st *State) (out *State) {
	log := zap.L().With(zap.String("stage", s.Name()), zap.String("customer_id", st.CustomerID))
	if st.Failed() {
		log.Debug("pipeline: stage skipped", zap.String("error", st.Error))
		return st
	}

	ctx, span := p.tracer.Start(ctx, "pipeline."+s.Name())
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: stage panicked", zap.Any("panic", r))
			st.fail(fmt.Sprintf("Workflow execution error: %v", r))
			out = st
		}

		elapsed := time.Since(start)
		failed := out.Failed()
		p.metrics.ObserveStage(s.Name(), elapsed, failed)
		if failed {
			span.SetStatus(codes.Error, out.Error)
			log.Warn("pipeline: stage failed",
				zap.String("error", out.Error),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
			)
			return
		}
		span.SetStatus(codes.Ok, "")
		log.Info("pipeline: stage complete", zap.Int64("duration_ms", elapsed.Milliseconds()))
	}()

	log.Debug("pipeline: stage starting")
	out = s.Execute(ctx, st)
	if out == nil {
		out = st
	}
	return out
}
