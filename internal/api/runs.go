package api

import (
	"sync"

	"github.com/arencloud/courtside/internal/loader"
)

// runStore keeps the most recent load reports in a ring buffer.
type runStore struct {
	mu   sync.RWMutex
	buf  []*loader.Report
	next int
	size int

	total, failed, degraded uint64
}

func newRunStore(size int) *runStore {
	return &runStore{buf: make([]*loader.Report, size), size: size}
}

func (s *runStore) add(r loader.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = &r
	s.next = (s.next + 1) % s.size
	s.total++
	if r.Outcome == loader.OutcomeFailed {
		s.failed++
	}
	if r.Degraded() {
		s.degraded++
	}
}

// all returns up to limit reports, newest first.
func (s *runStore) all(limit int) []loader.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]loader.Report, 0, limit)
	idx := (s.next - 1 + s.size) % s.size
	for i := 0; i < s.size && len(out) < limit; i++ {
		if s.buf[idx] != nil {
			out = append(out, *s.buf[idx])
		}
		idx = (idx - 1 + s.size) % s.size
	}
	return out
}

func (s *runStore) last() (loader.Report, bool) {
	runs := s.all(1)
	if len(runs) == 0 {
		return loader.Report{}, false
	}
	return runs[0], true
}

func (s *runStore) counts() (total, failed, degraded uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, s.failed, s.degraded
}
