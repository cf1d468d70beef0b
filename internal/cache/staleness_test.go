// internal/cache/staleness_test.go
package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStalenessPolicy_IsStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := NewStalenessPolicy(0, 0)

	ts := func(tm time.Time) *time.Time { return &tm }

	t.Run("never fetched is always stale", func(t *testing.T) {
		assert.True(t, policy.IsStale(nil, nil, now))

		historical := now.Add(-48 * time.Hour)
		assert.True(t, policy.IsStale(nil, &historical, now))
	})

	t.Run("historical upper bound is never stale", func(t *testing.T) {
		lastFetched := now.Add(-30 * 24 * time.Hour)
		until := now.Add(-25 * time.Hour)
		assert.False(t, policy.IsStale(ts(lastFetched), &until, now))
	})

	t.Run("upper bound exactly at the cutoff uses the freshness rule", func(t *testing.T) {
		lastFetched := now.Add(-time.Hour)
		until := now.Add(-24 * time.Hour)
		assert.True(t, policy.IsStale(ts(lastFetched), &until, now))
	})

	t.Run("recent upper bound follows the TTL", func(t *testing.T) {
		until := now.Add(-time.Hour)
		fresh := now.Add(-time.Minute)
		old := now.Add(-10 * time.Minute)
		assert.False(t, policy.IsStale(ts(fresh), &until, now))
		assert.True(t, policy.IsStale(ts(old), &until, now))
	})

	t.Run("exactly TTL elapsed counts as stale", func(t *testing.T) {
		lastFetched := now.Add(-5 * time.Minute)
		assert.True(t, policy.IsStale(ts(lastFetched), nil, now))
	})

	t.Run("one second under TTL is fresh", func(t *testing.T) {
		lastFetched := now.Add(-5*time.Minute + time.Second)
		assert.False(t, policy.IsStale(ts(lastFetched), nil, now))
	})

	t.Run("no upper bound follows the TTL", func(t *testing.T) {
		lastFetched := now.Add(-6 * time.Minute)
		assert.True(t, policy.IsStale(ts(lastFetched), nil, now))
	})
}

func TestNewStalenessPolicy_Defaults(t *testing.T) {
	policy := NewStalenessPolicy(0, 0)
	assert.Equal(t, DefaultTTL, policy.TTL)
	assert.Equal(t, DefaultHistoryCutoff, policy.HistoryCutoff)

	custom := NewStalenessPolicy(time.Minute, time.Hour)
	assert.Equal(t, time.Minute, custom.TTL)
	assert.Equal(t, time.Hour, custom.HistoryCutoff)
}
