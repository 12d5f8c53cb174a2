package metrics

import "sync/atomic"

// CacheStats is a point-in-time copy of CacheCounters.
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
}

// CacheCounters tracks snapshot cache effectiveness. The zero value is ready to use.
type CacheCounters struct {
	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

func (c *CacheCounters) Hit()     { c.hits.Add(1) }
func (c *CacheCounters) Miss()    { c.misses.Add(1) }
func (c *CacheCounters) Fetch()   { c.fetches.Add(1) }
func (c *CacheCounters) Failure() { c.failures.Add(1) }

// Snapshot copies the current counter values.
func (c *CacheCounters) Snapshot() CacheStats {
	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
}
