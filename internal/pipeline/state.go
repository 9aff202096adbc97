// Package pipeline runs the five-stage cross-sell/upsell recommendation
// pipeline for one customer and turns free-text completions into typed
// recommendations.
package pipeline

import (
	"github.com/sells-group/crosssell/internal/model"
)

// PurchasePatterns is the output of PatternAnalysis.
type PurchasePatterns struct {
	CurrentProducts []string `json:"current_products"`
	UsagePercentage float64  `json:"usage_percentage"`
	SynergyProducts []string `json:"synergy_products"`
	Analysis        string   `json:"analysis"`
	Underutilized   bool     `json:"underutilized"`
}

// State is the per-request record threaded through the stages. Optional
// fields use pointers and nil slices so "not produced yet" differs from
// "produced but empty"; an empty, non-nil ScoredOpportunities is a valid
// scoring outcome.
type State struct {
	CustomerID          string
	CustomerProfile     *model.CustomerProfile
	PurchasePatterns    *PurchasePatterns
	ProductAffinities   []string
	ScoredOpportunities []model.ProductRecommendation
	ResearchReport      *string
	Recommendations     []model.ProductRecommendation
	// Error is sticky: once set, no stage clears it or writes any other
	// field.
	Error string
}

// NewState returns the initial state for a run.
func NewState(customerID string) *State {
	return &State{CustomerID: customerID}
}

// Failed reports whether an earlier stage set the error.
func (s *State) Failed() bool {
	return s.Error != ""
}

// fail records msg unless an error is already set.
func (s *State) fail(msg string) *State {
	if s.Error == "" {
		s.Error = msg
	}
	return s
}

// Response converts a finished state into the API response.
func (s *State) Response() model.RecommendationResponse {
	if s.Failed() {
		return model.FailedResponse(s.CustomerID, s.Error)
	}
	resp := model.RecommendationResponse{
		CustomerID:      s.CustomerID,
		Recommendations: s.Recommendations,
		Success:         true,
	}
	if s.ResearchReport != nil {
		resp.ResearchReport = *s.ResearchReport
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []model.ProductRecommendation{}
	}
	return resp
}
