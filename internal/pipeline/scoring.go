package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/model"
	"github.com/sells-group/crosssell/internal/monitoring"
)

// Defaults substituted when a field of a scored entry cannot be parsed.
const (
	DefaultScore = 50.0
	DefaultValue = int64(10000)
)

const scoringSystemPrompt = "You are an expert in sales opportunity scoring and revenue optimization."

// OpportunityScoring asks the completion service to score each suggested
// product and parses the delimited records it returns.
type OpportunityScoring struct {
	llm     completion.Completer
	metrics *monitoring.Metrics
}

// NewOpportunityScoring creates the stage.
func NewOpportunityScoring(llm completion.Completer, metrics *monitoring.Metrics) *OpportunityScoring {
	return &OpportunityScoring{llm: llm, metrics: metrics}
}

// Name implements Stage.
func (s *OpportunityScoring) Name() string { return StageOpportunityScoring }

// Execute implements Stage.
func (s *OpportunityScoring) Execute(ctx context.Context, st *State) *State {
	if st.Failed() {
		return st
	}
	if st.CustomerProfile == nil || st.PurchasePatterns == nil || len(st.ProductAffinities) == 0 {
		return st.fail("Missing required data for opportunity scoring")
	}

	resp, err := s.llm.Complete(ctx, completion.Request{
		System:      scoringSystemPrompt,
		User:        scoringPrompt(st.CustomerProfile, st.ProductAffinities),
		Temperature: 0.2,
		Stage:       StageOpportunityScoring,
	})
	if err != nil {
		return st.fail(fmt.Sprintf("Error in opportunity scoring: %v", err))
	}

	recs, report := ParseScoredOpportunities(resp.Text)
	s.metrics.ObserveParse(report.Dropped, report.DegradedFields)
	st.ScoredOpportunities = recs
	return st
}

func scoringPrompt(p *model.CustomerProfile, affinities []string) string {
	return fmt.Sprintf(`Score and prioritize cross-sell/upsell opportunities for this customer:

Customer: %s
Industry: %s
Annual Revenue: $%s
Current Products: %s
Current Usage: %s%%
Account Priority: %s
Opportunity Stage: %s

Suggested Products: %s

For each suggested product, provide:
1. Product name
2. Type (cross-sell or upsell)
3. Confidence score (0-100)
4. Brief rationale
5. Estimated value ($)

Format as JSON-like structure:
Product: [name]
Type: [cross-sell/upsell]
Score: [0-100]
Rationale: [explanation]
Value: [dollar amount]
---`,
		p.CustomerName,
		p.Industry,
		thousands(p.AnnualRevenue),
		joinNames(p.CurrentProducts),
		percent(p.ProductUsage),
		p.CustomerPriorityRating,
		p.OpportunityStage,
		joinNames(affinities),
	)
}

// ParseReport describes how a scoring completion was parsed.
type ParseReport struct {
	Kept    int
	Dropped int
	// Degraded counts fields replaced by a default value. DegradedFields
	// names each one ("score" or "value") in encounter order.
	Degraded       int
	DegradedFields []string
}

func (r *ParseReport) degrade(field string) {
	r.Degraded++
	r.DegradedFields = append(r.DegradedFields, field)
}

const recordDelimiter = "---"

// ParseScoredOpportunities turns a "---"-delimited completion into
// recommendations sorted by confidence, highest first. Each record holds
// Product:, Type:, Score:, Rationale: and Value: lines; unknown lines are
// ignored. Records missing a product name or type are dropped. The result
// is never nil.
func ParseScoredOpportunities(text string) ([]model.ProductRecommendation, ParseReport) {
	var report ParseReport
	recs := []model.ProductRecommendation{}

	for _, segment := range strings.Split(text, recordDelimiter) {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		var rec model.ProductRecommendation
		var score float64
		for _, line := range strings.Split(segment, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			switch {
			case strings.HasPrefix(line, "Product:"):
				rec.ProductName = field(line, "Product:")
			case strings.HasPrefix(line, "Type:"):
				rec.RecommendationType = field(line, "Type:")
			case strings.HasPrefix(line, "Score:"):
				v, degraded := parseScore(field(line, "Score:"))
				if degraded {
					report.degrade("score")
				}
				score = v
			case strings.HasPrefix(line, "Rationale:"):
				rec.Rationale = field(line, "Rationale:")
			case strings.HasPrefix(line, "Value:"):
				v, degraded := parseValue(field(line, "Value:"))
				if degraded {
					report.degrade("value")
				}
				rec.EstimatedValue = v
			}
		}

		if rec.ProductName == "" || rec.RecommendationType == "" {
			report.Dropped++
			continue
		}
		rec.ConfidenceScore = score / 100
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ConfidenceScore > recs[j].ConfidenceScore
	})
	report.Kept = len(recs)
	return recs, report
}

func field(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

// parseScore reads a 0-100 score as a bare number. Unparseable input,
// including a trailing "%", yields DefaultScore; out-of-range input is
// clamped. Either case reports degraded.
func parseScore(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return DefaultScore, true
	}
	switch {
	case f < 0:
		return 0, true
	case f > 100:
		return 100, true
	}
	return f, false
}

// parseValue reads a currency amount such as "$12,000" or "12000.75",
// truncating to whole units. Unparseable input yields DefaultValue.
func parseValue(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), "$", ""), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultValue, true
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return DefaultValue, true
	}
	return int64(f), false
}
