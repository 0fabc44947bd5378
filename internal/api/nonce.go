package api

import (
	"sync/atomic"
	"time"
)

// nonceSource hands out cache-busting values derived from the wall clock in
// milliseconds. Values never repeat or go backwards, even when two calls land
// in the same millisecond or the clock steps back.
type nonceSource struct {
	last atomic.Int64
	now  func() time.Time
}

func (n *nonceSource) Next() int64 {
	for {
		prev := n.last.Load()
		next := n.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if n.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
