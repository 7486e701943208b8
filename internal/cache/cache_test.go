package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Gross int64 `json:"gross"`
}

func TestMemoryReportCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryReportCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "fin:1", report{Gross: 4200}, time.Minute))

	var got report
	ok, err := c.Get(ctx, "fin:1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4200), got.Gross)

	now = now.Add(time.Minute)
	ok, err = c.Get(ctx, "fin:1", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopReportCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), "k", report{Gross: 1}, time.Minute))

	var got report
	ok, err := c.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReportCacheMissWithoutServer(t *testing.T) {
	c := NewRedisReportCache("127.0.0.1:1", "", 0)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var got report
	ok, err := c.Get(ctx, "k", &got)
	assert.False(t, ok)
	assert.Error(t, err)
}
