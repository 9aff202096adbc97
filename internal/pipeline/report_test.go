package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crosssell/internal/model"
)

func TestRecommendationSummary(t *testing.T) {
	recs := []model.ProductRecommendation{
		{ProductName: "Analytics Pro", RecommendationType: "cross-sell", ConfidenceScore: 0.9, EstimatedValue: 45000},
		{ProductName: "Support Plus", RecommendationType: "upsell", ConfidenceScore: 0.556, EstimatedValue: 1250000},
	}

	got := RecommendationSummary(recs)
	assert.Equal(t,
		"- Analytics Pro (cross-sell): 90% confidence, $45,000 estimated value\n"+
			"- Support Plus (upsell): 56% confidence, $1,250,000 estimated value",
		got)
}

func TestRecommendationSummary_Fallback(t *testing.T) {
	assert.Equal(t, "- No high-confidence recommendations identified at this time", RecommendationSummary(nil))
	assert.Equal(t, "- No high-confidence recommendations identified at this time",
		RecommendationSummary([]model.ProductRecommendation{}))
}

func TestReportSynthesis_TopFive(t *testing.T) {
	llm := &mockCompleter{}
	llm.answer(StageReportSynthesis, reportText)

	scored := make([]model.ProductRecommendation, 0, 8)
	for i := 0; i < 8; i++ {
		scored = append(scored, model.ProductRecommendation{
			ProductName:        string(rune('A' + i)),
			RecommendationType: "cross-sell",
			ConfidenceScore:    1 - float64(i)/10,
		})
	}

	st := NewState("C001")
	st.CustomerProfile = acmeProfile()
	st.ScoredOpportunities = scored

	st = NewReportSynthesis(llm).Execute(context.Background(), st)

	require.False(t, st.Failed())
	require.Len(t, st.Recommendations, MaxRecommendations)
	assert.Equal(t, scored[:MaxRecommendations], st.Recommendations)
	for i := 1; i < len(st.Recommendations); i++ {
		assert.GreaterOrEqual(t, st.Recommendations[i-1].ConfidenceScore, st.Recommendations[i].ConfidenceScore)
	}
	require.NotNil(t, st.ResearchReport)
	assert.Equal(t, reportText, *st.ResearchReport)
	assert.Len(t, st.ScoredOpportunities, 8)
}

func TestReportSynthesis_NoScoredOpportunities(t *testing.T) {
	for _, scored := range [][]model.ProductRecommendation{nil, {}} {
		llm := &mockCompleter{}
		llm.On("Complete", mock.Anything, matchUser(func(user string) bool {
			return strings.Contains(user, "Top Recommendations:\n"+noRecommendations)
		})).Return(okResponse(reportText), nil)

		st := NewState("C001")
		st.CustomerProfile = acmeProfile()
		st.ScoredOpportunities = scored

		st = NewReportSynthesis(llm).Execute(context.Background(), st)

		assert.False(t, st.Failed())
		assert.NotNil(t, st.Recommendations)
		assert.Empty(t, st.Recommendations)
		llm.AssertExpectations(t)
	}
}

func TestReportPrompt_Sections(t *testing.T) {
	prompt := reportPrompt(acmeProfile(), "- summary")
	for _, section := range []string{
		"1. Executive Summary",
		"2. Customer Overview",
		"3. Current State Analysis",
		"4. Market Context & Industry Insights",
		"5. Opportunity Analysis",
		"6. Recommendations (prioritized)",
		"7. Implementation Strategy",
		"8. Conclusion",
	} {
		assert.Contains(t, prompt, section)
	}
	assert.Contains(t, prompt, "- Employees: 240")
	assert.Contains(t, prompt, "- Annual Revenue: $12,500,000")
	assert.Contains(t, prompt, "- Product Usage: 62.5%")
}

func TestReportSynthesis_MissingProfile(t *testing.T) {
	llm := &mockCompleter{}
	st := NewReportSynthesis(llm).Execute(context.Background(), NewState("C001"))

	assert.Equal(t, "Missing customer profile for report generation", st.Error)
	assert.Nil(t, st.Recommendations)
	assert.Nil(t, st.ResearchReport)
	llm.AssertNotCalled(t, "Complete")
}

func TestReportSynthesis_CompletionError(t *testing.T) {
	llm := &mockCompleter{}
	llm.fail(StageReportSynthesis, errors.New("context length exceeded"))

	st := NewState("C001")
	st.CustomerProfile = acmeProfile()

	st = NewReportSynthesis(llm).Execute(context.Background(), st)
	assert.Equal(t, "Error generating research report: context length exceeded", st.Error)
	assert.Nil(t, st.Recommendations)
	assert.Nil(t, st.ResearchReport)
}
