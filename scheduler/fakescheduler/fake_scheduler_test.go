package fakescheduler_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-fleet-collect/scheduler/fakescheduler"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func TestFakeScheduler_FiresInOrder(t *testing.T) {
	f := fakescheduler.New(epoch)
	var order []string
	var seenAt []time.Time

	f.Schedule(2*time.Minute, func() { order = append(order, "b"); seenAt = append(seenAt, f.Now()) })
	f.Schedule(1*time.Minute, func() { order = append(order, "a"); seenAt = append(seenAt, f.Now()) })
	f.Schedule(10*time.Minute, func() { order = append(order, "late") })

	f.Advance(5 * time.Minute)

	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, []time.Time{epoch.Add(time.Minute), epoch.Add(2 * time.Minute)}, seenAt)
	require.Equal(t, epoch.Add(5*time.Minute), f.Now())
	require.Equal(t, 1, f.Pending())
}

func TestFakeScheduler_RearmInsideAdvance(t *testing.T) {
	f := fakescheduler.New(epoch)
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		f.Schedule(time.Minute, tick)
	}
	f.Schedule(time.Minute, tick)

	f.Advance(3*time.Minute + 30*time.Second)

	require.Equal(t, 3, ticks)
	require.Equal(t, 1, f.Pending())
}

func TestFakeScheduler_Cancel(t *testing.T) {
	f := fakescheduler.New(epoch)
	fired := false
	h := f.Schedule(time.Second, func() { fired = true })
	f.Cancel(h)
	f.Advance(time.Minute)
	require.False(t, fired)
	require.Zero(t, f.Pending())
}
