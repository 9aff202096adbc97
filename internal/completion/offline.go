package completion

import (
	"context"
	"strings"
)

// OfflineFallback is the offline answer for a request with an unknown stage.
const OfflineFallback = "No analysis available in offline mode."

// Offline answers every prompt with a fixed, well-formed response for its
// stage. It makes no network calls and is meant for local runs and demos
// without provider credentials.
type Offline struct{}

// NewOffline returns the offline provider.
func NewOffline() *Offline { return &Offline{} }

// Complete implements Completer.
func (Offline) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := offlineAnswers[req.Stage]
	if !ok {
		text = OfflineFallback
	}
	return &Response{
		Text:         text,
		Provider:     "offline",
		Model:        "offline",
		InputTokens:  int64(len(strings.Fields(req.System + " " + req.User))),
		OutputTokens: int64(len(strings.Fields(text))),
	}, nil
}

var offlineAnswers = map[string]string{
	StagePatternAnalysis: `The customer relies on a small core of products and uses them below their licensed capacity.
Usage is concentrated in day-to-day operations, with little adoption of reporting or automation features.
The listed synergy products line up with gaps in their current stack, and revenue scale supports a broader suite.
Primary opportunities: drive adoption of existing products, then extend into analytics and workflow tooling.`,

	StageAffinityGeneration: `Here are the recommended complementary products:
1. Analytics Pro
2. Workflow Automation Suite
3. Data Integration Hub
4. Customer Success Portal
5. Advanced Security Add-on`,

	StageOpportunityScoring: `Product: Analytics Pro
Type: cross-sell
Score: 82
Rationale: Reporting gaps in the current stack and a listed synergy with the core suite.
Value: $45,000
---
Product: Premium Support Tier
Type: upsell
Score: 74
Rationale: Below-target usage suggests onboarding help would unlock existing licenses.
Value: $18,000
---
Product: Workflow Automation Suite
Type: cross-sell
Score: 61
Rationale: Manual processes visible in activity history.
Value: $30,000`,

	StageReportSynthesis: `# Cross-Sell and Upsell Research Report

## 1. Executive Summary
The account shows room to grow both through deeper adoption of owned products and through adjacent analytics and automation tools.

## 2. Customer Profile Analysis
Established account with a stable core product footprint.

## 3. Current State Assessment
Usage sits below the healthy adoption threshold.

## 4. Strategic Recommendations
Lead with analytics, follow with a support upgrade, then automation.

## 5. Revenue Impact Analysis
Combined opportunity value is material relative to current spend.

## 6. Implementation Roadmap
Quarter 1: analytics pilot. Quarter 2: support tier. Quarter 3: automation rollout.

## 7. Risk Assessment
Competitive pressure and change-management capacity.

## 8. Success Metrics
Usage above 70%, pilot conversion, expansion revenue booked.`,
}
