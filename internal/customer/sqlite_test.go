package customer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteSource(t *testing.T) *SQLiteSource {
	t.Helper()
	src, err := NewSQLite(filepath.Join(t.TempDir(), "customers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() }) //nolint:errcheck
	require.NoError(t, src.Migrate(context.Background()))
	return src
}

func TestSQLite_SeedFromCSVAndLookup(t *testing.T) {
	src := newTestSQLiteSource(t)
	ctx := context.Background()

	csvSrc := newTestCSVSource(t)
	n, err := src.Seed(ctx, csvSrc.Profiles())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rec, err := src.GetCustomerByID(ctx, "C001")
	require.NoError(t, err)
	require.NotNil(t, rec)

	got := ParseProfile(rec)
	want := csvSrc.Profiles()[0]
	assert.Equal(t, want, got)
}

func TestSQLite_SeedIsIdempotent(t *testing.T) {
	src := newTestSQLiteSource(t)
	ctx := context.Background()

	profiles := newTestCSVSource(t).Profiles()
	_, err := src.Seed(ctx, profiles)
	require.NoError(t, err)

	n, err := src.Seed(ctx, profiles)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	list, err := src.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSQLite_GetCustomerByID_NotFound(t *testing.T) {
	src := newTestSQLiteSource(t)

	rec, err := src.GetCustomerByID(context.Background(), "C404")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_ListCustomers_Ordered(t *testing.T) {
	src := newTestSQLiteSource(t)
	ctx := context.Background()

	profiles := newTestCSVSource(t).Profiles()
	profiles[0], profiles[2] = profiles[2], profiles[0]
	_, err := src.Seed(ctx, profiles)
	require.NoError(t, err)

	list, err := src.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "C001", list[0].CustomerID)
	assert.Equal(t, "Acme Manufacturing", list[0].CustomerName)
	assert.Equal(t, "C003", list[2].CustomerID)
}

func TestSQLite_Name(t *testing.T) {
	assert.Equal(t, "SQLite", newTestSQLiteSource(t).Name())
}
