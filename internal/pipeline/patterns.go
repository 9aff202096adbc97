package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/model"
)

const patternSystemPrompt = "You are an expert in customer purchase pattern analysis."

// PatternAnalysis asks the completion service for a purchase-pattern
// analysis and records it alongside the customer's usage facts.
type PatternAnalysis struct {
	llm completion.Completer
}

// NewPatternAnalysis creates the stage.
func NewPatternAnalysis(llm completion.Completer) *PatternAnalysis {
	return &PatternAnalysis{llm: llm}
}

// Name implements Stage.
func (s *PatternAnalysis) Name() string { return StagePatternAnalysis }

// Execute implements Stage.
func (s *PatternAnalysis) Execute(ctx context.Context, st *State) *State {
	if st.Failed() {
		return st
	}
	p := st.CustomerProfile
	if p == nil {
		return st.fail("No customer profile available")
	}

	resp, err := s.llm.Complete(ctx, completion.Request{
		System:      patternSystemPrompt,
		User:        patternPrompt(p),
		Temperature: 0.3,
		Stage:       StagePatternAnalysis,
	})
	if err != nil {
		return st.fail(fmt.Sprintf("Error in purchase pattern analysis: %v", err))
	}

	st.PurchasePatterns = &PurchasePatterns{
		CurrentProducts: cloneStrings(p.CurrentProducts),
		UsagePercentage: p.ProductUsage,
		SynergyProducts: cloneStrings(p.CrossSellSynergy),
		Analysis:        resp.Text,
		Underutilized:   p.Underutilized(),
	}
	return st
}

func patternPrompt(p *model.CustomerProfile) string {
	return fmt.Sprintf(`Analyze the purchase patterns for this customer:

Customer: %s
Industry: %s
Current Products: %s
Product Usage: %s%%
Cross-sell Synergy Products: %s
Annual Revenue: $%s

Identify:
1. Frequent product categories they use
2. Missing product opportunities based on their industry and current usage
3. Underutilized products (usage < %s%%)

Return a structured analysis of their purchase patterns and gaps.`,
		p.CustomerName,
		p.Industry,
		joinNames(p.CurrentProducts),
		percent(p.ProductUsage),
		joinNames(p.CrossSellSynergy),
		thousands(p.AnnualRevenue),
		percent(model.UnderutilizedThreshold),
	)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
