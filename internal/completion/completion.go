// Package completion defines the text-completion contract used by pipeline
// stages and its provider implementations: OpenAI, Anthropic, and an offline
// provider with canned answers. Decorators add a circuit breaker, a client
// side rate limit, and usage accounting.
package completion

import "context"

// Request is a single system+user prompt exchange.
type Request struct {
	System      string
	User        string
	Temperature float64
	// Stage names the pipeline stage issuing the call. Providers use it
	// only for logging; the offline provider uses it to pick an answer.
	Stage string
}

// Response is the provider's answer.
type Response struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer turns a prompt into free text.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Stage names carried in Request.Stage. The pipeline declares its stage
// names from these, and the offline provider keys its answers on them.
const (
	StagePatternAnalysis    = "pattern_analysis"
	StageAffinityGeneration = "affinity_generation"
	StageOpportunityScoring = "opportunity_scoring"
	StageReportSynthesis    = "report_synthesis"
)
