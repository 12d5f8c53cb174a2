package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheCountersSnapshot(t *testing.T) {
	var counters CacheCounters
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counters.Hit()
			counters.Miss()
		}()
	}
	wg.Wait()
	counters.Fetch()
	counters.Failure()

	require.Equal(t, CacheStats{Hits: 10, Misses: 10, Fetches: 1, Failures: 1}, counters.Snapshot())
}
