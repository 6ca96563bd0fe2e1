package scheduler_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-fleet-collect/scheduler"
	"github.com/stretchr/testify/require"
)

func TestTimerScheduler_Fires(t *testing.T) {
	s := scheduler.New()
	fired := make(chan struct{})

	h := s.Schedule(5*time.Millisecond, func() { close(fired) })
	require.NotZero(t, h)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerScheduler_Cancel(t *testing.T) {
	s := scheduler.New()
	fired := make(chan struct{}, 1)

	h := s.Schedule(20*time.Millisecond, func() { fired <- struct{}{} })
	s.Cancel(h)
	s.Cancel(h) // second cancel is a no-op

	require.Equal(t, 0, s.Pending())
	select {
	case <-fired:
		t.Fatal("cancelled callback fired")
	case <-time.After(60 * time.Millisecond):
	}
}
