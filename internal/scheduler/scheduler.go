// Package scheduler implements the master's time-ordered command queue: a
// min-heap of entries keyed by due-time, grounded on the teacher's
// container/heap poller (services/hal/internal/core/poller.go) but
// generalized from a fixed-interval re-arming poll heap to a one-shot
// due-time heap with per-pin bulk removal.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/PineWarbler/iosim-go/internal/entry"
)

type item struct {
	e     entry.Entry
	index int
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].e.Time < h[j].e.Time }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *itemHeap) Push(x any)         { it := x.(*item); it.index = len(*h); *h = append(*h, it) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// Scheduler is the master's min-heap of pending entries. It never blocks;
// the transport worker polls it on a fixed cadence (spec.md §4.3).
type Scheduler struct {
	mu sync.Mutex
	h  itemHeap
	// now is overridable for tests; nil means time.Now.
	now func() time.Time
}

func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Put inserts a single entry under its due-time.
func (s *Scheduler) Put(e entry.Entry) {
	s.mu.Lock()
	heap.Push(&s.h, &item{e: e})
	s.mu.Unlock()
}

// PutAll inserts every entry in order.
func (s *Scheduler) PutAll(entries []entry.Entry) {
	for _, e := range entries {
		s.Put(e)
	}
}

// PopDue returns the head entry and true iff its due-time has arrived.
func (s *Scheduler) PopDue() (entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.h) == 0 {
		return entry.Entry{}, false
	}
	nowSec := secondsOf(s.now())
	top := s.h[0]
	if top.e.Time > nowSec {
		return entry.Entry{}, false
	}
	it := heap.Pop(&s.h).(*item)
	return it.e, true
}

// PopAllDue repeatedly pops due entries, returning them in ascending
// due-time order (the heap property already guarantees this).
func (s *Scheduler) PopAllDue() []entry.Entry {
	var out []entry.Entry
	for {
		e, ok := s.PopDue()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// RemoveByPin deletes every entry with the matching pin and returns how
// many were removed. It sweeps the whole heap and re-heapifies, since
// spec.md requires every matching entry gone, not just the first found
// (generalizing the teacher poller's single-key Stop).
func (s *Scheduler) RemoveByPin(pin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.h[:0:0]
	removed := 0
	for _, it := range s.h {
		if it.e.Pin == pin {
			removed++
			continue
		}
		it.index = len(kept)
		kept = append(kept, it)
	}
	s.h = kept
	heap.Init(&s.h)
	return removed
}

// Clear empties the heap.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.h = nil
	s.mu.Unlock()
}

// Len reports the number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.h)
}

func secondsOf(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
