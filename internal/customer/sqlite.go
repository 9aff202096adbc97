package customer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crosssell/internal/model"
)

// SQLiteSource reads customer_data from an embedded SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: db}, nil
}

var (
	sqliteSelectCustomer = `SELECT ` + textSelectList(func(c string) string { return "CAST(" + c + " AS TEXT)" }) +
		` FROM customer_data WHERE customer_id = ?`
	sqliteListCustomers = `SELECT customer_id, COALESCE(customer_name, ''), COALESCE(industry, '') FROM customer_data ORDER BY customer_id`
	sqliteInsert        = `INSERT INTO customer_data (` + joinList(ColumnNames()) + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(customer_id) DO NOTHING`
)

// GetCustomerByID implements Lookup.
func (s *SQLiteSource) GetCustomerByID(ctx context.Context, customerID string) (Record, error) {
	vals := make([]string, len(columns))
	dest := make([]any, len(columns))
	for i := range vals {
		dest[i] = &vals[i]
	}

	err := s.db.QueryRowContext(ctx, sqliteSelectCustomer, customerID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get customer %s", customerID)
	}

	rec := make(Record, len(columns))
	for i, c := range columns {
		rec[c.name] = vals[i]
	}
	return rec, nil
}

// ListCustomers implements Lister ordered by customer id.
func (s *SQLiteSource) ListCustomers(ctx context.Context) ([]model.CustomerSummary, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListCustomers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CustomerSummary
	for rows.Next() {
		var c model.CustomerSummary
		if err := rows.Scan(&c.CustomerID, &c.CustomerName, &c.Industry); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate customers")
}

// Migrate creates the customer_data table if it does not exist.
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Seed inserts profiles in one transaction, leaving existing ids untouched.
func (s *SQLiteSource) Seed(ctx context.Context, profiles []model.CustomerProfile) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin seed")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare seed")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for _, p := range profiles {
		res, err := stmt.ExecContext(ctx, profileValues(p, false)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert customer %s", p.CustomerID)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit seed")
	}
	return inserted, nil
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "SQLite" }

// Close implements Source.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
