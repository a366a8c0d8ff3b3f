package publish

import "sync/atomic"

// Quota bounds promotions. Acquire and Release are safe for concurrent use.
type Quota struct {
	max  int64
	used atomic.Int64
}

func NewQuota(max int) *Quota {
	if max < 0 {
		max = 0
	}
	return &Quota{max: int64(max)}
}

// Acquire reserves one promotion slot.
func (q *Quota) Acquire() bool {
	for {
		n := q.used.Load()
		if n >= q.max {
			return false
		}
		if q.used.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns a slot reserved by Acquire that was not used.
func (q *Quota) Release() { q.used.Add(-1) }

// Used is the number of slots consumed.
func (q *Quota) Used() int { return int(q.used.Load()) }

// Remaining is the number of free slots.
func (q *Quota) Remaining() int { return int(q.max - q.used.Load()) }

func (q *Quota) Max() int { return int(q.max) }
