package workflow

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/crosssell/internal/pipeline"
)

// Activities executes pipeline stages on behalf of RecommendationWorkflow.
type Activities struct {
	pipeline *pipeline.Pipeline
}

// NewActivities creates activities backed by p.
func NewActivities(p *pipeline.Pipeline) *Activities {
	return &Activities{pipeline: p}
}

// RunStage decodes the state, runs one stage, and returns the new state.
// Decode failures become a failed state rather than an activity error.
func (a *Activities) RunStage(ctx context.Context, in StageInput) (map[string]any, error) {
	s, ok := a.pipeline.Stage(in.Stage)
	if !ok {
		return nil, temporal.NewNonRetryableApplicationError("unknown stage "+in.Stage, "UnknownStage", nil)
	}
	st := pipeline.StateFromMap(in.State)
	return a.pipeline.Step(ctx, s, st).ToMap(), nil
}
