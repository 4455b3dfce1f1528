package engine

import (
	"context"
	"sync"
)

// RecentDecisions keeps the last size decisions in memory.
type RecentDecisions struct {
	mu     sync.Mutex
	values []Decision
	size   int
	index  int
	filled bool
}

func NewRecentDecisions(size int) *RecentDecisions {
	if size <= 0 {
		size = 1
	}
	return &RecentDecisions{
		values: make([]Decision, size),
		size:   size,
	}
}

func (r *RecentDecisions) Append(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[r.index] = d
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

func (r *RecentDecisions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *RecentDecisions) lenLocked() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Recent returns up to limit decisions, newest first. A non-positive limit
// returns everything held.
func (r *RecentDecisions) Recent(_ context.Context, limit int) ([]Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Decision, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, r.values[(r.index-i+r.size)%r.size])
	}
	return out, nil
}
