package pipeline

import (
	"context"

	"github.com/sells-group/crosssell/internal/completion"
)

// Stage is one step of the pipeline. Execute reads and enriches the state
// and returns it. A stage entered with Failed() state returns it untouched;
// a stage that cannot do its work records a message with fail and makes no
// other change.
type Stage interface {
	Name() string
	Execute(ctx context.Context, st *State) *State
}

// Stage names, in execution order.
const (
	StageContextExtraction  = "context_extraction"
	StagePatternAnalysis    = completion.StagePatternAnalysis
	StageAffinityGeneration = completion.StageAffinityGeneration
	StageOpportunityScoring = completion.StageOpportunityScoring
	StageReportSynthesis    = completion.StageReportSynthesis
)

// StageOrder lists the default stage names in execution order.
var StageOrder = []string{
	StageContextExtraction,
	StagePatternAnalysis,
	StageAffinityGeneration,
	StageOpportunityScoring,
	StageReportSynthesis,
}
