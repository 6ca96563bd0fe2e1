package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	c := New[string, int](time.Minute, 0, WithNowFunc(func() time.Time { return now }))
	defer c.Close()

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.evictExpired()
	require.Zero(t, c.Len())
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := New[string, string](time.Minute, time.Hour)
	defer c.Close()

	c.Set("3:crew", "x")
	c.Set("3:vehicles", "y")
	c.Set("4:crew", "z")

	c.Delete("3:crew")
	_, ok := c.Get("3:crew")
	require.False(t, ok)
	require.Equal(t, 2, c.Len())

	c.Clear()
	require.Zero(t, c.Len())
	_, ok = c.Get("4:crew")
	require.False(t, ok)
	c.Close()
}
