// Package scheduler abstracts timers so lifecycle code can be driven by a
// deterministic clock in tests.
package scheduler

import (
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Now() time.Time
	Schedule(delay time.Duration, fn func()) Handle
	// Cancel stops a pending callback. Cancelling a fired or unknown handle is a no-op.
	Cancel(h Handle)
}

// TimerScheduler is the wall-clock Scheduler backed by time.AfterFunc.
// Callbacks run on their own goroutines.
type TimerScheduler struct {
	mu     sync.Mutex
	nextID Handle
	timers map[Handle]*time.Timer
}

var _ Scheduler = (*TimerScheduler)(nil)

func New() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[Handle]*time.Timer),
	}
}

func (s *TimerScheduler) Now() time.Time {
	return time.Now()
}

func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	return id
}

func (s *TimerScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
