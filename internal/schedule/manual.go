package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual clock. Nothing fires until Advance or RunAll is called,
// and callbacks then run on the calling goroutine in due-time order
// (scheduling order breaks ties).
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	queue []*manualTimer
}

type manualTimer struct {
	m       *Manual
	due     time.Duration
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// NewManual returns a Manual clock at virtual time zero.
func NewManual() *Manual { return &Manual{} }

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.queue = append(m.queue, t)
	return t
}

// Stop implements Timer.
func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.m.remove(t)
	return true
}

// Now reports elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many callbacks are waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Advance moves the clock forward by d, firing every callback that becomes
// due, including ones scheduled by callbacks fired during this call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	if m.now < target {
		m.now = target
	}
	m.mu.Unlock()
}

// RunAll fires callbacks until the queue is empty and returns how many ran.
// limit bounds the number of callbacks to guard against self-rescheduling loops.
func (m *Manual) RunAll(limit int) int {
	n := 0
	for n < limit {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		next := m.earliest().due
		m.mu.Unlock()

		t := m.popDue(next)
		if t == nil {
			continue
		}
		t.fn()
		n++
	}
	return n
}

// popDue removes and returns the earliest timer due at or before target,
// advancing the clock to its due time.
func (m *Manual) popDue(target time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	t := m.earliest()
	if t.due > target {
		return nil
	}
	m.remove(t)
	t.fired = true
	if t.due > m.now {
		m.now = t.due
	}
	return t
}

// earliest must be called with mu held and a non-empty queue.
func (m *Manual) earliest() *manualTimer {
	sort.SliceStable(m.queue, func(i, j int) bool {
		if m.queue[i].due != m.queue[j].due {
			return m.queue[i].due < m.queue[j].due
		}
		return m.queue[i].seq < m.queue[j].seq
	})
	return m.queue[0]
}

func (m *Manual) remove(t *manualTimer) {
	for i, q := range m.queue {
		if q == t {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}
