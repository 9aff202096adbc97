package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/model"
)

// MaxRecommendations caps the recommendations returned to callers.
const MaxRecommendations = 5

const (
	reportSystemPrompt = "You are a senior business analyst creating executive-level research reports."
	noRecommendations  = "- No high-confidence recommendations identified at this time"
)

// ReportSynthesis selects the top recommendations and asks for the
// executive research report.
type ReportSynthesis struct {
	llm completion.Completer
}

// NewReportSynthesis creates the stage.
func NewReportSynthesis(llm completion.Completer) *ReportSynthesis {
	return &ReportSynthesis{llm: llm}
}

// Name implements Stage.
func (s *ReportSynthesis) Name() string { return StageReportSynthesis }

// Execute implements Stage. An empty scored list is valid here.
func (s *ReportSynthesis) Execute(ctx context.Context, st *State) *State {
	if st.Failed() {
		return st
	}
	if st.CustomerProfile == nil {
		return st.fail("Missing customer profile for report generation")
	}

	top := topRecommendations(st.ScoredOpportunities, MaxRecommendations)

	resp, err := s.llm.Complete(ctx, completion.Request{
		System:      reportSystemPrompt,
		User:        reportPrompt(st.CustomerProfile, RecommendationSummary(top)),
		Temperature: 0.4,
		Stage:       StageReportSynthesis,
	})
	if err != nil {
		return st.fail(fmt.Sprintf("Error generating research report: %v", err))
	}

	report := resp.Text
	st.ResearchReport = &report
	st.Recommendations = top
	return st
}

func topRecommendations(scored []model.ProductRecommendation, n int) []model.ProductRecommendation {
	if len(scored) < n {
		n = len(scored)
	}
	out := make([]model.ProductRecommendation, n)
	copy(out, scored[:n])
	return out
}

// RecommendationSummary renders one line per recommendation, or the
// fallback line when there are none.
func RecommendationSummary(recs []model.ProductRecommendation) string {
	if len(recs) == 0 {
		return noRecommendations
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s%% confidence, $%s estimated value",
			r.ProductName,
			r.RecommendationType,
			wholePercent(r.ConfidenceScore),
			thousands(r.EstimatedValue),
		))
	}
	return strings.Join(lines, "\n")
}

// wholePercent renders a 0-1 fraction as a rounded percentage: 0.85 -> "85".
func wholePercent(f float64) string {
	return fmt.Sprintf("%.0f", math.Round(f*100))
}

func reportPrompt(p *model.CustomerProfile, summary string) string {
	return fmt.Sprintf(`Generate a comprehensive research report for cross-sell and upsell opportunities:

Customer Profile:
- Name: %s
- Industry: %s
- Annual Revenue: $%s
- Employees: %s
- Location: %s
- Current Products: %s
- Product Usage: %s%%
- Priority Rating: %s
- Account Type: %s
- Opportunity Stage: %s

Top Recommendations:
%s

Create a professional research report with these sections:
1. Executive Summary
2. Customer Overview
3. Current State Analysis
4. Market Context & Industry Insights
5. Opportunity Analysis
6. Recommendations (prioritized)
7. Implementation Strategy
8. Conclusion

Make it comprehensive but concise, actionable, and business-focused.`,
		p.CustomerName,
		p.Industry,
		thousands(p.AnnualRevenue),
		thousands(int64(p.NumberOfEmployees)),
		p.Location,
		joinNames(p.CurrentProducts),
		percent(p.ProductUsage),
		p.CustomerPriorityRating,
		p.AccountType,
		p.OpportunityStage,
		summary,
	)
}
