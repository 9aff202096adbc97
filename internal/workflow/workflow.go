// Package workflow runs the recommendation pipeline on Temporal. Each stage
// is one activity; the pipeline state travels between activities as the
// plain map produced by pipeline.State.ToMap.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/crosssell/internal/model"
	"github.com/sells-group/crosssell/internal/pipeline"
)

// Names registered with the Temporal worker.
const (
	DefaultTaskQueue = "crosssell-recommendations"
	WorkflowName     = "RecommendationWorkflow"
	RunStageActivity = "RunStage"
)

// DefaultStageTimeout bounds one stage activity. Temporal requires a
// start-to-close timeout on every activity.
const DefaultStageTimeout = 10 * time.Minute

// Params are the workflow inputs.
type Params struct {
	CustomerID   string        `json:"customer_id"`
	StageTimeout time.Duration `json:"stage_timeout,omitempty"`
}

// StageInput is the argument of the RunStage activity.
type StageInput struct {
	Stage string         `json:"stage"`
	State map[string]any `json:"state"`
}

// RecommendationWorkflow visits every pipeline stage in order, one activity
// per stage, and returns the final response. Activities are attempted once.
func RecommendationWorkflow(ctx workflow.Context, params Params) (model.RecommendationResponse, error) {
	timeout := params.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	log := workflow.GetLogger(ctx)

	state := pipeline.NewState(params.CustomerID).ToMap()
	for _, stage := range pipeline.StageOrder {
		var out map[string]any
		err := workflow.ExecuteActivity(ctx, RunStageActivity, StageInput{Stage: stage, State: state}).Get(ctx, &out)
		if err != nil {
			log.Error("workflow: stage activity failed", "stage", stage, "error", err)
			return model.FailedResponse(params.CustomerID, "Workflow execution error: "+err.Error()), nil
		}
		state = out
	}

	return pipeline.StateFromMap(state).Response(), nil
}
