// Package customer provides the customer data sources the pipeline reads
// from: a flat CSV export, Postgres, embedded SQLite, and a Redis read-through
// cache that can front any of them.
package customer

import (
	"context"

	"github.com/sells-group/crosssell/internal/model"
)

// Record is one raw customer row keyed by the source's own column names. The
// CSV source uses display headers ("Customer ID"); the relational sources use
// snake_case columns ("customer_id"). ParseProfile accepts both.
type Record map[string]string

// Lookup fetches a single customer. A nil Record with a nil error means the
// customer does not exist.
type Lookup interface {
	GetCustomerByID(ctx context.Context, customerID string) (Record, error)
}

// Lister enumerates every customer in the source.
type Lister interface {
	ListCustomers(ctx context.Context) ([]model.CustomerSummary, error)
}

// Source is a complete customer data source.
type Source interface {
	Lookup
	Lister
	// Name identifies the backend in introspection endpoints.
	Name() string
	Close() error
}

// Seeder is implemented by sources that can be created and loaded from a
// list of profiles.
type Seeder interface {
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, profiles []model.CustomerProfile) (int64, error)
}
