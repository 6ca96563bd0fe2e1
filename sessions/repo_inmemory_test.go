package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/sessions"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_RoundTrip(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := repo.Upsert(sessions.Session{ID: "s1", UserID: "u1", Rights: []string{"assign_vehicle"}, StartedAt: start})
	require.NoError(t, err)

	got, err := repo.Get("s1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.True(t, got.HasRight("assign_vehicle"))

	t.Run("readers get copies", func(t *testing.T) {
		got.Rights[0] = "tampered"
		again, err := repo.Get("s1")
		require.NoError(t, err)
		require.Equal(t, []string{"assign_vehicle"}, again.Rights)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := repo.Get("nope")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		require.Error(t, repo.Upsert(sessions.Session{}))
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, repo.Upsert(sessions.Session{ID: "s0", StartedAt: start.Add(-time.Hour)}))
		list, err := repo.List()
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "s0", list[0].ID)

		require.NoError(t, repo.Delete("s0"))
		require.NoError(t, repo.Delete("s0"))
		list, err = repo.List()
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}

func TestSession_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := sessions.Session{AccessExpiresAt: now.Add(time.Minute)}

	require.False(t, s.AccessExpired(now))
	require.True(t, s.AccessExpired(now.Add(time.Minute)))
	require.False(t, s.RefreshExpired(now), "unknown refresh expiry never expires")

	s.RefreshExpiresAt = now
	require.True(t, s.RefreshExpired(now))
}
