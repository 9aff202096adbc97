package model

// CustomerProfile holds the identity, firmographic, and usage facts for one
// customer. It is built once per request and never modified afterwards.
type CustomerProfile struct {
	CustomerID             string   `json:"customer_id"`
	CustomerName           string   `json:"customer_name"`
	Industry               string   `json:"industry"`
	AnnualRevenue          int64    `json:"annual_revenue"`
	NumberOfEmployees      int      `json:"number_of_employees"`
	CustomerPriorityRating string   `json:"customer_priority_rating"`
	AccountType            string   `json:"account_type"`
	Location               string   `json:"location"`
	CurrentProducts        []string `json:"current_products"`
	ProductUsage           float64  `json:"product_usage"` // percent, 0-100
	CrossSellSynergy       []string `json:"cross_sell_synergy"`
	LastActivityDate       string   `json:"last_activity_date"`
	OpportunityStage       string   `json:"opportunity_stage"`
	OpportunityAmount      int64    `json:"opportunity_amount"`
	OpportunityType        string   `json:"opportunity_type"`
	Competitors            []string `json:"competitors"`
	ActivityStatus         string   `json:"activity_status"`
	ActivityPriority       string   `json:"activity_priority"`
	ActivityType           string   `json:"activity_type"`
	ProductSKU             string   `json:"product_sku"`
}

// UnderutilizedThreshold is the usage percentage below which a customer's
// current products count as underutilized.
const UnderutilizedThreshold = 70.0

// Underutilized reports whether product usage is below UnderutilizedThreshold.
func (p CustomerProfile) Underutilized() bool {
	return p.ProductUsage < UnderutilizedThreshold
}

// ToMap exports the profile as a plain map keyed by the JSON field names.
// List fields are copied so the map does not alias the profile.
func (p CustomerProfile) ToMap() map[string]any {
	return map[string]any{
		"customer_id":              p.CustomerID,
		"customer_name":            p.CustomerName,
		"industry":                 p.Industry,
		"annual_revenue":           p.AnnualRevenue,
		"number_of_employees":      p.NumberOfEmployees,
		"customer_priority_rating": p.CustomerPriorityRating,
		"account_type":             p.AccountType,
		"location":                 p.Location,
		"current_products":         cloneStrings(p.CurrentProducts),
		"product_usage":            p.ProductUsage,
		"cross_sell_synergy":       cloneStrings(p.CrossSellSynergy),
		"last_activity_date":       p.LastActivityDate,
		"opportunity_stage":        p.OpportunityStage,
		"opportunity_amount":       p.OpportunityAmount,
		"opportunity_type":         p.OpportunityType,
		"competitors":              cloneStrings(p.Competitors),
		"activity_status":          p.ActivityStatus,
		"activity_priority":        p.ActivityPriority,
		"activity_type":            p.ActivityType,
		"product_sku":              p.ProductSKU,
	}
}

// CustomerProfileFromMap rebuilds a profile from the output of ToMap, or from
// the same map after a JSON round trip (numbers as float64, lists as []any).
func CustomerProfileFromMap(m map[string]any) (CustomerProfile, error) {
	r := NewMapReader(m)
	p := CustomerProfile{
		CustomerID:             r.Str("customer_id"),
		CustomerName:           r.Str("customer_name"),
		Industry:               r.Str("industry"),
		AnnualRevenue:          r.Int("annual_revenue"),
		NumberOfEmployees:      int(r.Int("number_of_employees")),
		CustomerPriorityRating: r.Str("customer_priority_rating"),
		AccountType:            r.Str("account_type"),
		Location:               r.Str("location"),
		CurrentProducts:        r.List("current_products"),
		ProductUsage:           r.Float("product_usage"),
		CrossSellSynergy:       r.List("cross_sell_synergy"),
		LastActivityDate:       r.Str("last_activity_date"),
		OpportunityStage:       r.Str("opportunity_stage"),
		OpportunityAmount:      r.Int("opportunity_amount"),
		OpportunityType:        r.Str("opportunity_type"),
		Competitors:            r.List("competitors"),
		ActivityStatus:         r.Str("activity_status"),
		ActivityPriority:       r.Str("activity_priority"),
		ActivityType:           r.Str("activity_type"),
		ProductSKU:             r.Str("product_sku"),
	}
	if err := r.Err(); err != nil {
		return CustomerProfile{}, err
	}
	return p, nil
}

// CustomerSummary is the short listing form of a customer.
type CustomerSummary struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Industry     string `json:"industry"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
