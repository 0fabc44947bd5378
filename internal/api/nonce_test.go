package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonceSource_FollowsClock(t *testing.T) {
	now := time.UnixMilli(1000)
	n := &nonceSource{now: func() time.Time { return now }}

	assert.Equal(t, int64(1000), n.Next())
	now = time.UnixMilli(5000)
	assert.Equal(t, int64(5000), n.Next())
}

func TestNonceSource_ClockStepsBack(t *testing.T) {
	now := time.UnixMilli(5000)
	n := &nonceSource{now: func() time.Time { return now }}

	assert.Equal(t, int64(5000), n.Next())
	now = time.UnixMilli(4000)
	assert.Equal(t, int64(5001), n.Next())
}

func TestNonceSource_ConcurrentCallsAreUnique(t *testing.T) {
	n := &nonceSource{now: func() time.Time { return time.UnixMilli(1) }}

	const workers, perWorker = 8, 100
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := n.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
