package events_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-fleet-collect/events"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func TestBus_PublishToTypeThenWildcard(t *testing.T) {
	bus := events.NewBus()
	var order []string

	bus.SubscribeAll(func(e events.Event) { order = append(order, "all:"+e.EventType()) })
	bus.Subscribe(events.TypeNetworkStatus, func(e events.Event) {
		ns, ok := e.(events.NetworkStatus)
		require.True(t, ok)
		require.False(t, ns.Online)
		order = append(order, "network")
	})

	bus.Publish(events.NewNetworkStatus("s1", at, false))
	bus.Publish(events.NewSessionExpired("s1", at, "inactivity"))

	require.Equal(t, []string{"network", "all:network.status", "all:session.expired"}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	id := bus.Subscribe(events.TypeRefreshed, func(events.Event) { calls++ })
	require.Equal(t, 1, bus.SubscriptionCount())

	require.True(t, bus.Unsubscribe(id))
	require.False(t, bus.Unsubscribe(id))
	bus.Publish(events.NewRefreshed("s1", at, at.Add(time.Hour), 1))

	require.Zero(t, calls)
	require.Zero(t, bus.SubscriptionCount())
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := events.NewBus()
	delivered := false
	bus.Subscribe(events.TypeRefreshFailed, func(events.Event) { panic("boom") })
	bus.Subscribe(events.TypeRefreshFailed, func(events.Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(events.NewRefreshFailed("s1", at, "NETWORK_ERROR", "offline", true, 4))
	})
	require.True(t, delivered)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *events.Bus
	require.NotPanics(t, func() { bus.Publish(events.NewRefreshed("s1", at, at, 1)) })
}
