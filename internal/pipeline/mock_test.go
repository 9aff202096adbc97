package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/customer"
	"github.com/sells-group/crosssell/internal/model"
)

// --- Completer Mock ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.Response), args.Error(1)
}

func forStage(stage string) any {
	return mock.MatchedBy(func(req completion.Request) bool { return req.Stage == stage })
}

func (m *mockCompleter) answer(stage, text string) *mock.Call {
	return m.On("Complete", mock.Anything, forStage(stage)).
		Return(&completion.Response{Text: text, Provider: "mock", Model: "mock"}, nil)
}

func (m *mockCompleter) fail(stage string, err error) *mock.Call {
	return m.On("Complete", mock.Anything, forStage(stage)).Return(nil, err)
}

// --- Lookup Mock ---

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) GetCustomerByID(ctx context.Context, customerID string) (customer.Record, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(customer.Record), args.Error(1)
}

// --- Panicking stage ---

type panicStage struct{}

func (panicStage) Name() string { return "explode" }

func (panicStage) Execute(context.Context, *State) *State { panic("boom") }

// --- Fixtures ---

func acmeRecord() customer.Record {
	return customer.Record{
		"customer_id":              "C001",
		"customer_name":            "Acme Manufacturing",
		"industry":                 "Manufacturing",
		"annual_revenue":           "12500000",
		"number_of_employees":      "240",
		"customer_priority_rating": "High",
		"account_type":             "Enterprise",
		"location":                 "Denver, CO",
		"current_products":         "ERP Suite, CRM Basic",
		"product_usage":            "62.5",
		"cross_sell_synergy":       "Analytics Pro, Inventory Cloud",
		"last_activity_date":       "2024-03-14",
		"opportunity_stage":        "Negotiation",
		"opportunity_amount":       "85000",
		"opportunity_type":         "Upsell",
		"competitors":              "Globex, Initech",
		"activity_status":          "Open",
		"activity_priority":        "High",
		"activity_type":            "Call",
		"product_sku":              "ERP-200",
	}
}

func acmeProfile() *model.CustomerProfile {
	p := customer.ParseProfile(acmeRecord())
	return &p
}

const (
	patternText  = "Heavy ERP usage, no analytics."
	affinityText = "Here are some products:\n1. Analytics Pro\n2. Inventory Cloud\n- Support Plus"
	scoringText  = `Product: Inventory Cloud
Type: cross-sell
Score: 70
Rationale: warehouse gaps
Value: $20,000
---
Product: Analytics Pro
Type: cross-sell
Score: 90
Rationale: reporting gaps
Value: $45,000
---
Product: Support Plus
Type: upsell
Score: 55
Rationale: low adoption
Value: 8000
---`
	reportText = "# Report\nAll eight sections."
)

// happyCompleter answers every stage with well-formed text.
func happyCompleter() *mockCompleter {
	m := &mockCompleter{}
	m.answer(StagePatternAnalysis, patternText)
	m.answer(StageAffinityGeneration, affinityText)
	m.answer(StageOpportunityScoring, scoringText)
	m.answer(StageReportSynthesis, reportText)
	return m
}

// fullState is a State with every field populated.
func fullState() *State {
	report := reportText
	recs, _ := ParseScoredOpportunities(scoringText)
	return &State{
		CustomerID:      "C001",
		CustomerProfile: acmeProfile(),
		PurchasePatterns: &PurchasePatterns{
			CurrentProducts: []string{"ERP Suite", "CRM Basic"},
			UsagePercentage: 62.5,
			SynergyProducts: []string{"Analytics Pro", "Inventory Cloud"},
			Analysis:        patternText,
			Underutilized:   true,
		},
		ProductAffinities:   []string{"Analytics Pro", "Inventory Cloud", "Support Plus"},
		ScoredOpportunities: recs,
		ResearchReport:      &report,
		Recommendations:     recs[:2],
	}
}

func matchUser(fn func(user string) bool) any {
	return mock.MatchedBy(func(req completion.Request) bool { return fn(req.User) })
}

func okResponse(text string) *completion.Response {
	return &completion.Response{Text: text, Provider: "mock", Model: "mock"}
}
