package fakescheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-fleet-collect/scheduler"
)

var _ scheduler.Scheduler = (*FakeScheduler)(nil)

type timer struct {
	id  scheduler.Handle
	due time.Time
	seq uint64
	fn  func()
}

// FakeScheduler is a manually advanced clock. Callbacks only run inside
// Advance, on the caller's goroutine.
type FakeScheduler struct {
	lock   sync.Mutex
	now    time.Time
	nextID scheduler.Handle
	seq    uint64
	timers map[scheduler.Handle]*timer
}

func New(start time.Time) *FakeScheduler {
	return &FakeScheduler{
		now:    start,
		timers: make(map[scheduler.Handle]*timer),
	}
}

func (f *FakeScheduler) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.now
}

func (f *FakeScheduler) Schedule(delay time.Duration, fn func()) scheduler.Handle {
	f.lock.Lock()
	defer f.lock.Unlock()

	if delay < 0 {
		delay = 0
	}
	f.nextID++
	f.seq++
	f.timers[f.nextID] = &timer{id: f.nextID, due: f.now.Add(delay), seq: f.seq, fn: fn}
	return f.nextID
}

func (f *FakeScheduler) Cancel(h scheduler.Handle) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.timers, h)
}

// Advance moves the clock forward by d, firing due timers in order. Timers
// armed by callbacks fire too if they fall inside the window.
func (f *FakeScheduler) Advance(d time.Duration) {
	f.lock.Lock()
	target := f.now.Add(d)
	f.lock.Unlock()

	for {
		next := f.popDue(target)
		if next == nil {
			break
		}
		next.fn()
	}

	f.lock.Lock()
	f.now = target
	f.lock.Unlock()
}

// Pending returns the number of armed timers.
func (f *FakeScheduler) Pending() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.timers)
}

func (f *FakeScheduler) popDue(target time.Time) *timer {
	f.lock.Lock()
	defer f.lock.Unlock()

	due := make([]*timer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	next := due[0]
	delete(f.timers, next.id)
	if next.due.After(f.now) {
		f.now = next.due
	}
	return next
}
