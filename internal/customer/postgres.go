package customer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crosssell/internal/db"
	"github.com/sells-group/crosssell/internal/model"
)

// PostgresSource reads customer_data through a pgx connection pool.
type PostgresSource struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresSource with a connection pool. Connections
// are opened lazily, so an unreachable database surfaces on first lookup.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresSource, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(0)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresSource{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

var (
	pgSelectCustomer = `SELECT ` + textSelectList(func(c string) string { return c + "::text" }) +
		` FROM customer_data WHERE customer_id = $1`
	pgListCustomers = `SELECT customer_id, COALESCE(customer_name, ''), COALESCE(industry, '') FROM customer_data ORDER BY customer_id`
)

// GetCustomerByID implements Lookup.
func (s *PostgresSource) GetCustomerByID(ctx context.Context, customerID string) (Record, error) {
	vals := make([]string, len(columns))
	dest := make([]any, len(columns))
	for i := range vals {
		dest[i] = &vals[i]
	}

	err := s.pool.QueryRow(ctx, pgSelectCustomer, customerID).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get customer %s", customerID)
	}

	rec := make(Record, len(columns))
	for i, c := range columns {
		rec[c.name] = vals[i]
	}
	return rec, nil
}

// ListCustomers implements Lister ordered by customer id.
func (s *PostgresSource) ListCustomers(ctx context.Context) ([]model.CustomerSummary, error) {
	rows, err := s.pool.Query(ctx, pgListCustomers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customers")
	}
	defer rows.Close()

	var out []model.CustomerSummary
	for rows.Next() {
		var c model.CustomerSummary
		if err := rows.Scan(&c.CustomerID, &c.CustomerName, &c.Industry); err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate customers")
	}
	return out, nil
}

// Migrate creates the customer_data table if it does not exist.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Seed inserts profiles, leaving existing customer ids untouched.
func (s *PostgresSource) Seed(ctx context.Context, profiles []model.CustomerProfile) (int64, error) {
	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, profileValues(p, true))
	}
	n, err := db.InsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:        Table,
		Columns:      ColumnNames(),
		ConflictKeys: []string{"customer_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed customers")
	}
	return n, nil
}

// Ping checks connectivity.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Name implements Source.
func (s *PostgresSource) Name() string { return "PostgreSQL" }

// Close releases the pool if this source created it.
func (s *PostgresSource) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
