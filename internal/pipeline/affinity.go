package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/model"
)

// MaxAffinities caps the number of suggested products kept.
const MaxAffinities = 7

const affinitySystemPrompt = "You are an expert in product affinity and cross-selling recommendations."

// AffinityGeneration asks for complementary products and parses them into
// a short list of names.
type AffinityGeneration struct {
	llm completion.Completer
}

// NewAffinityGeneration creates the stage.
func NewAffinityGeneration(llm completion.Completer) *AffinityGeneration {
	return &AffinityGeneration{llm: llm}
}

// Name implements Stage.
func (s *AffinityGeneration) Name() string { return StageAffinityGeneration }

// Execute implements Stage.
func (s *AffinityGeneration) Execute(ctx context.Context, st *State) *State {
	if st.Failed() {
		return st
	}
	if st.CustomerProfile == nil || st.PurchasePatterns == nil {
		return st.fail("Missing customer profile or purchase patterns")
	}

	resp, err := s.llm.Complete(ctx, completion.Request{
		System:      affinitySystemPrompt,
		User:        affinityPrompt(st.CustomerProfile, st.PurchasePatterns),
		Temperature: 0.3,
		Stage:       StageAffinityGeneration,
	})
	if err != nil {
		return st.fail(fmt.Sprintf("Error in product affinity analysis: %v", err))
	}

	st.ProductAffinities = ParseAffinities(resp.Text)
	return st
}

func affinityPrompt(p *model.CustomerProfile, pp *PurchasePatterns) string {
	return fmt.Sprintf(`Based on the customer profile and purchase patterns, suggest related products:

Customer: %s
Industry: %s
Current Products: %s
Identified Synergy Products: %s

Purchase Pattern Analysis: %s

Suggest 5-7 complementary products that are commonly purchased together with their current products
or are essential for their industry. Focus on products that would enhance their current setup.

Format as a simple list of product names.`,
		p.CustomerName,
		p.Industry,
		joinNames(p.CurrentProducts),
		joinNames(p.CrossSellSynergy),
		pp.Analysis,
	)
}

// bulletChars are stripped from the start of each suggestion line.
const bulletChars = "•-*0123456789. "

// ParseAffinities extracts product names from a free-text list. Blank lines
// and preamble lines starting with "Based on" or "Here are" are skipped;
// leading bullets, digits, dots, and spaces are stripped. At most
// MaxAffinities names are returned, in input order. The result is never nil.
func ParseAffinities(text string) []string {
	out := []string{}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Based on") || strings.HasPrefix(line, "Here are") {
			continue
		}
		name := strings.TrimSpace(strings.TrimLeft(line, bulletChars))
		if name == "" {
			continue
		}
		out = append(out, name)
		if len(out) == MaxAffinities {
			break
		}
	}
	return out
}
