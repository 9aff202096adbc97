package customer

import (
	"strings"
	"time"

	"github.com/sells-group/crosssell/internal/model"
)

// Table is the relational table holding customer rows.
const Table = "customer_data"

type column struct {
	name   string // relational column
	header string // CSV header
}

// columns lists the customer_data columns in table order.
var columns = []column{
	{"customer_id", "Customer ID"},
	{"customer_name", "Customer Name"},
	{"industry", "Industry"},
	{"annual_revenue", "Annual Revenue (USD)"},
	{"number_of_employees", "Number of Employees"},
	{"customer_priority_rating", "Customer Priority Rating"},
	{"account_type", "Account Type"},
	{"location", "Location"},
	{"current_products", "Current Products"},
	{"product_usage", "Product Usage (%)"},
	{"cross_sell_synergy", "Cross-Sell Synergy"},
	{"last_activity_date", "Last Activity Date"},
	{"opportunity_stage", "Opportunity Stage"},
	{"opportunity_amount", "Opportunity Amount (USD)"},
	{"opportunity_type", "Opportunity Type"},
	{"competitors", "Competitors"},
	{"activity_status", "Activity Status"},
	{"activity_priority", "Activity Priority"},
	{"activity_type", "Activity Type"},
	{"product_sku", "Product SKU"},
}

// ColumnNames returns the relational column names in table order.
func ColumnNames() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

// Headers returns the CSV headers in table order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customer_data (
	customer_id VARCHAR(10) PRIMARY KEY,
	customer_name VARCHAR(255),
	industry VARCHAR(100),
	annual_revenue BIGINT,
	number_of_employees INTEGER,
	customer_priority_rating VARCHAR(50),
	account_type VARCHAR(100),
	location VARCHAR(255),
	current_products TEXT,
	product_usage FLOAT,
	cross_sell_synergy TEXT,
	last_activity_date DATE,
	opportunity_stage VARCHAR(100),
	opportunity_amount INTEGER,
	opportunity_type VARCHAR(100),
	competitors TEXT,
	activity_status VARCHAR(50),
	activity_priority VARCHAR(50),
	activity_type VARCHAR(50),
	product_sku VARCHAR(50)
);
`

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS customer_data (
	customer_id              TEXT PRIMARY KEY,
	customer_name            TEXT,
	industry                 TEXT,
	annual_revenue           INTEGER,
	number_of_employees      INTEGER,
	customer_priority_rating TEXT,
	account_type             TEXT,
	location                 TEXT,
	current_products         TEXT,
	product_usage            REAL,
	cross_sell_synergy       TEXT,
	last_activity_date       TEXT,
	opportunity_stage        TEXT,
	opportunity_amount       INTEGER,
	opportunity_type         TEXT,
	competitors              TEXT,
	activity_status          TEXT,
	activity_priority        TEXT,
	activity_type            TEXT,
	product_sku              TEXT
);

CREATE INDEX IF NOT EXISTS idx_customer_data_name ON customer_data(customer_name);
`

// textSelectList renders every column as text so both relational sources can
// scan rows into a Record without per-column types. cast wraps a column name.
func textSelectList(cast func(string) string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "COALESCE(" + cast(c.name) + ", '') AS " + c.name
	}
	return strings.Join(parts, ", ")
}

// profileValues flattens a profile into column-ordered values for insertion.
// The date is parsed so Postgres can bind it to a DATE column; an empty or
// malformed date is stored as NULL.
func profileValues(p model.CustomerProfile, parseDate bool) []any {
	var date any
	if p.LastActivityDate != "" {
		date = p.LastActivityDate
		if parseDate {
			date = nil
			if t, err := time.Parse(time.DateOnly, p.LastActivityDate); err == nil {
				date = t
			}
		}
	}
	return []any{
		p.CustomerID,
		p.CustomerName,
		p.Industry,
		p.AnnualRevenue,
		int32(p.NumberOfEmployees),
		p.CustomerPriorityRating,
		p.AccountType,
		p.Location,
		joinList(p.CurrentProducts),
		p.ProductUsage,
		joinList(p.CrossSellSynergy),
		date,
		p.OpportunityStage,
		int32(p.OpportunityAmount),
		p.OpportunityType,
		joinList(p.Competitors),
		p.ActivityStatus,
		p.ActivityPriority,
		p.ActivityType,
		p.ProductSKU,
	}
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
