// internal/cache/staleness.go
package cache

import "time"

const (
	// DefaultTTL is how long a completed refresh keeps cached data servable
	// for queries that touch the recent window.
	DefaultTTL = 5 * time.Minute

	// DefaultHistoryCutoff is the age beyond which a query's upper bound is
	// considered fully historical. A closed historical window cannot gain
	// commits, so it is cached permanently.
	DefaultHistoryCutoff = 24 * time.Hour
)

// StalenessPolicy decides whether cached commit data may be served without
// revalidating against the upstream API.
type StalenessPolicy struct {
	TTL           time.Duration
	HistoryCutoff time.Duration
}

// NewStalenessPolicy returns a policy with the given windows, falling back to
// the defaults for non-positive values.
func NewStalenessPolicy(ttl, historyCutoff time.Duration) StalenessPolicy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if historyCutoff <= 0 {
		historyCutoff = DefaultHistoryCutoff
	}
	return StalenessPolicy{TTL: ttl, HistoryCutoff: historyCutoff}
}

// IsStale reports whether a repository's cache must be refreshed before
// answering a query bounded above by until. A never-fetched repository is
// always stale. A query whose upper bound is older than the history cutoff is
// never stale, regardless of when the last fetch happened. Otherwise the
// cache is stale once TTL or more has elapsed since the last fetch; exactly
// TTL counts as stale.
func (p StalenessPolicy) IsStale(lastFetchedAt, until *time.Time, now time.Time) bool {
	if lastFetchedAt == nil {
		return true
	}
	if until != nil && now.Sub(*until) > p.HistoryCutoff {
		return false
	}
	return now.Sub(*lastFetchedAt) >= p.TTL
}
