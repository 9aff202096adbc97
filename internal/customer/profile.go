package customer

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/crosssell/internal/model"
)

// ParseProfile normalizes a raw record from any source into a
// CustomerProfile. Each field is looked up by its relational column name and
// then by its CSV header. Comma-separated lists are split and trimmed with
// order preserved and empty items dropped. Missing or unparseable numbers
// read as zero.
func ParseProfile(rec Record) model.CustomerProfile {
	get := func(name string) string { return rec.field(name) }

	return model.CustomerProfile{
		CustomerID:             get("customer_id"),
		CustomerName:           get("customer_name"),
		Industry:               get("industry"),
		AnnualRevenue:          parseInt(get("annual_revenue")),
		NumberOfEmployees:      int(parseInt(get("number_of_employees"))),
		CustomerPriorityRating: get("customer_priority_rating"),
		AccountType:            get("account_type"),
		Location:               get("location"),
		CurrentProducts:        splitList(get("current_products")),
		ProductUsage:           parseFloat(get("product_usage")),
		CrossSellSynergy:       splitList(get("cross_sell_synergy")),
		LastActivityDate:       get("last_activity_date"),
		OpportunityStage:       get("opportunity_stage"),
		OpportunityAmount:      parseInt(get("opportunity_amount")),
		OpportunityType:        get("opportunity_type"),
		Competitors:            splitList(get("competitors")),
		ActivityStatus:         get("activity_status"),
		ActivityPriority:       get("activity_priority"),
		ActivityType:           get("activity_type"),
		ProductSKU:             get("product_sku"),
	}
}

var headerByName = func() map[string]string {
	m := make(map[string]string, len(columns))
	for _, c := range columns {
		m[c.name] = c.header
	}
	return m
}()

func (r Record) field(name string) string {
	if v, ok := r[name]; ok {
		return strings.TrimSpace(v)
	}
	if h, ok := headerByName[name]; ok {
		if v, ok := r[h]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var numberCleaner = strings.NewReplacer("$", "", ",", "", "%", "", " ", "")

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(numberCleaner.Replace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	clean := numberCleaner.Replace(s)
	if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return n
	}
	f := parseFloat(clean)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}
