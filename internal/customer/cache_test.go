package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crosssell/internal/model"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetCustomerByID(ctx context.Context, id string) (Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(Record)
	return rec, args.Error(1)
}

func (m *mockSource) ListCustomers(ctx context.Context) ([]model.CustomerSummary, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.CustomerSummary)
	return list, args.Error(1)
}

func (m *mockSource) Name() string { return "mock" }
func (m *mockSource) Close() error { return nil }

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck
	return mr, rdb
}

func TestCachedSource_ReadThrough(t *testing.T) {
	mr, rdb := setupRedis(t)
	inner := &mockSource{}
	inner.On("GetCustomerByID", mock.Anything, "C001").Return(Record{"customer_id": "C001"}, nil).Once()

	c := NewCachedSource(inner, rdb, time.Minute)
	ctx := context.Background()

	rec, err := c.GetCustomerByID(ctx, "C001")
	require.NoError(t, err)
	assert.Equal(t, "C001", rec["customer_id"])
	assert.True(t, mr.Exists(cacheKeyPrefix+"C001"))
	assert.Equal(t, time.Minute, mr.TTL(cacheKeyPrefix+"C001"))

	rec, err = c.GetCustomerByID(ctx, "C001")
	require.NoError(t, err)
	assert.Equal(t, "C001", rec["customer_id"])
	inner.AssertExpectations(t)
}

func TestCachedSource_AbsentNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	inner := &mockSource{}
	inner.On("GetCustomerByID", mock.Anything, "C404").Return(nil, nil).Twice()

	c := NewCachedSource(inner, rdb, 0)

	for i := 0; i < 2; i++ {
		rec, err := c.GetCustomerByID(context.Background(), "C404")
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	assert.False(t, mr.Exists(cacheKeyPrefix+"C404"))
	inner.AssertExpectations(t)
}

func TestCachedSource_SourceError(t *testing.T) {
	_, rdb := setupRedis(t)
	inner := &mockSource{}
	inner.On("GetCustomerByID", mock.Anything, "C001").Return(nil, errors.New("db down"))

	c := NewCachedSource(inner, rdb, time.Minute)
	_, err := c.GetCustomerByID(context.Background(), "C001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestCachedSource_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := setupRedis(t)
	mr.Close()

	inner := &mockSource{}
	inner.On("GetCustomerByID", mock.Anything, "C001").Return(Record{"customer_id": "C001"}, nil)

	c := NewCachedSource(inner, rdb, time.Minute)
	rec, err := c.GetCustomerByID(context.Background(), "C001")
	require.NoError(t, err)
	assert.Equal(t, "C001", rec["customer_id"])
}

func TestCachedSource_CorruptEntryRefetched(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set(cacheKeyPrefix+"C001", "not json"))

	inner := &mockSource{}
	inner.On("GetCustomerByID", mock.Anything, "C001").Return(Record{"customer_id": "C001"}, nil).Once()

	c := NewCachedSource(inner, rdb, time.Minute)
	rec, err := c.GetCustomerByID(context.Background(), "C001")
	require.NoError(t, err)
	assert.Equal(t, "C001", rec["customer_id"])
	inner.AssertExpectations(t)
}

func TestCachedSource_InvalidateAndDelegation(t *testing.T) {
	mr, rdb := setupRedis(t)
	inner := &mockSource{}
	inner.On("ListCustomers", mock.Anything).Return([]model.CustomerSummary{{CustomerID: "C001"}}, nil)

	c := NewCachedSource(inner, rdb, time.Minute)
	require.NoError(t, mr.Set(cacheKeyPrefix+"C001", "{}"))
	require.NoError(t, c.Invalidate(context.Background(), "C001"))
	assert.False(t, mr.Exists(cacheKeyPrefix+"C001"))

	list, err := c.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "mock+redis", c.Name())
}
