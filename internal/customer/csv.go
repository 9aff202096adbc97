package customer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crosssell/internal/model"
)

// CSVSource serves customers from a CSV export loaded into memory once.
// Lookups match the "Customer ID" column exactly; the first matching row wins.
type CSVSource struct {
	path   string
	header []string
	rows   [][]string
	idCol  int
}

// NewCSVSource reads the CSV file at path.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "customer: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	src, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "customer: load csv %s", path)
	}
	src.path = path
	return src, nil
}

// ReadCSV parses a customer CSV from r. The first row must be a header that
// includes a "Customer ID" column.
func ReadCSV(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "customer: parse csv")
	}
	if len(records) == 0 {
		return nil, eris.New("customer: csv has no header row")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	idCol := -1
	for i, h := range header {
		if h == headerByName["customer_id"] || h == "customer_id" {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, eris.New("customer: csv missing Customer ID column")
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rows = append(rows, rec)
	}

	return &CSVSource{header: header, rows: rows, idCol: idCol}, nil
}

// GetCustomerByID implements Lookup.
func (s *CSVSource) GetCustomerByID(_ context.Context, customerID string) (Record, error) {
	for _, row := range s.rows {
		if cell(row, s.idCol) == customerID {
			return s.record(row), nil
		}
	}
	return nil, nil
}

// ListCustomers implements Lister in file order.
func (s *CSVSource) ListCustomers(_ context.Context) ([]model.CustomerSummary, error) {
	out := make([]model.CustomerSummary, 0, len(s.rows))
	for _, row := range s.rows {
		rec := s.record(row)
		out = append(out, model.CustomerSummary{
			CustomerID:   rec.field("customer_id"),
			CustomerName: rec.field("customer_name"),
			Industry:     rec.field("industry"),
		})
	}
	return out, nil
}

// Profiles parses every row into a profile, for seeding relational sources.
func (s *CSVSource) Profiles() []model.CustomerProfile {
	out := make([]model.CustomerProfile, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, ParseProfile(s.record(row)))
	}
	return out
}

// Len returns the number of data rows.
func (s *CSVSource) Len() int { return len(s.rows) }

// Path returns the file the source was loaded from, if any.
func (s *CSVSource) Path() string { return s.path }

// Name implements Source.
func (s *CSVSource) Name() string { return "CSV" }

// Close implements Source.
func (s *CSVSource) Close() error { return nil }

func (s *CSVSource) record(row []string) Record {
	rec := make(Record, len(s.header))
	for i, h := range s.header {
		rec[h] = cell(row, i)
	}
	return rec
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
