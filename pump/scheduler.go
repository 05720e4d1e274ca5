package pump

import "container/heap"

// Scheduler is a due-time priority queue for pump polling, adapted from
// a timer-driven heap scheduler into a pull-style one: the cooperative
// main loop calls Due(now) once per tick instead of the scheduler owning
// a goroutine and a wake channel. There is only ever one caller (the
// loop), so no locking is needed here.
type Scheduler struct {
	items map[string]*schedItem
	h     schedHeap
}

type schedItem struct {
	id    string
	due   int64
	every int64
	index int
}

type schedHeap []*schedItem

func (h schedHeap) Len() int            { return len(h) }
func (h schedHeap) Less(i, j int) bool  { return h[i].due < h[j].due }
func (h schedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *schedHeap) Push(x any)         { it := x.(*schedItem); it.index = len(*h); *h = append(*h, it) }
func (h *schedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{items: make(map[string]*schedItem)}
}

// Upsert schedules id to next come due at now+everyMs, and to recur
// every everyMs thereafter until changed. Calling it again for an id
// already scheduled retunes its cadence (used when a device's status
// family switches between base and active polling) without losing its
// place in the heap structure.
func (s *Scheduler) Upsert(id string, now, everyMs int64) {
	if everyMs <= 0 {
		everyMs = 1
	}
	if it, ok := s.items[id]; ok {
		it.every = everyMs
		it.due = now + everyMs
		heap.Fix(&s.h, it.index)
		return
	}
	it := &schedItem{id: id, due: now + everyMs, every: everyMs, index: -1}
	s.items[id] = it
	heap.Push(&s.h, it)
}

// RequestNow pulls id's due time to now, so the next Due() call fires it
// immediately regardless of cadence (control-plane "poll now" request).
func (s *Scheduler) RequestNow(id string, now int64) {
	it, ok := s.items[id]
	if !ok {
		return
	}
	it.due = now
	heap.Fix(&s.h, it.index)
}

// RequestAllNow pulls every scheduled id's due time to now.
func (s *Scheduler) RequestAllNow(now int64) {
	for _, it := range s.h {
		it.due = now
	}
	heap.Init(&s.h)
}

// Remove drops id from the schedule (device removed from the registry).
func (s *Scheduler) Remove(id string) {
	it, ok := s.items[id]
	if !ok {
		return
	}
	heap.Remove(&s.h, it.index)
	delete(s.items, id)
}

// Due appends every id whose scheduled time has arrived onto dst and
// returns the extended slice, re-arming each one for its next cadence.
// It never blocks and performs no allocation beyond append's own growth.
func (s *Scheduler) Due(now int64, dst []string) []string {
	for len(s.h) > 0 && s.h[0].due <= now {
		it := s.h[0]
		dst = append(dst, it.id)
		it.due = now + it.every
		heap.Fix(&s.h, 0)
	}
	return dst
}
