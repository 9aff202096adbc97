package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/model"
)

// Runner starts RecommendationWorkflow executions and waits for them.
type Runner struct {
	client       client.Client
	taskQueue    string
	stageTimeout time.Duration
}

// NewRunner creates a runner on the given task queue. A zero stageTimeout
// uses DefaultStageTimeout.
func NewRunner(c client.Client, taskQueue string, stageTimeout time.Duration) *Runner {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Runner{client: c, taskQueue: taskQueue, stageTimeout: stageTimeout}
}

// Run executes the workflow for one customer. Engine failures are reported
// as a failed response.
func (r *Runner) Run(ctx context.Context, customerID string) model.RecommendationResponse {
	opts := client.StartWorkflowOptions{
		ID:        "recommendation-" + customerID + "-" + uuid.NewString(),
		TaskQueue: r.taskQueue,
	}
	log := zap.L().With(zap.String("customer_id", customerID), zap.String("workflow_id", opts.ID))

	run, err := r.client.ExecuteWorkflow(ctx, opts, WorkflowName, Params{
		CustomerID:   customerID,
		StageTimeout: r.stageTimeout,
	})
	if err != nil {
		log.Error("workflow: start failed", zap.Error(err))
		return model.FailedResponse(customerID, "Workflow execution error: "+err.Error())
	}

	var resp model.RecommendationResponse
	if err := run.Get(ctx, &resp); err != nil {
		log.Error("workflow: execution failed", zap.Error(err))
		return model.FailedResponse(customerID, "Workflow execution error: "+err.Error())
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []model.ProductRecommendation{}
	}
	log.Info("workflow: execution complete", zap.Bool("success", resp.Success))
	return resp
}

// Register adds the workflow and its activities to w.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflowWithOptions(RecommendationWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(acts.RunStage, activity.RegisterOptions{Name: RunStageActivity})
}

// NewWorker creates a worker on taskQueue with the workflow registered.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, acts)
	return w
}
