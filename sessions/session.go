package sessions

import (
	"encoding/json"
	"slices"
	"time"
)

// Session is one authenticated operator context. It is owned by that
// session's lifecycle manager; everything else reads copies.
type Session struct {
	ID          string // Unique session identifier (UUID), carried in the signed cookie
	UserID      string
	Username    string
	DisplayName string
	Role        string

	// Tokens issued by the upstream API
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	StartedAt    time.Time // Baseline for the session age ceiling
	LastActivity time.Time // Baseline for the inactivity timeout

	CompanyID string
	StageID   string
	Rights    []string        // Permission names granted upstream
	Stats     json.RawMessage // Dashboard snapshot returned at login
}

// HasRight reports whether the session was granted the named permission.
func (s Session) HasRight(name string) bool {
	return slices.Contains(s.Rights, name)
}

// AccessExpired reports whether the access token expiry has passed.
// An unknown expiry is treated as not expired.
func (s Session) AccessExpired(now time.Time) bool {
	return !s.AccessExpiresAt.IsZero() && !now.Before(s.AccessExpiresAt)
}

// RefreshExpired reports whether the refresh token can no longer be used.
func (s Session) RefreshExpired(now time.Time) bool {
	return !s.RefreshExpiresAt.IsZero() && !now.Before(s.RefreshExpiresAt)
}

// Clone returns a deep copy so callers cannot alias the stored slices.
func (s Session) Clone() Session {
	s.Rights = slices.Clone(s.Rights)
	if s.Stats != nil {
		s.Stats = slices.Clone(s.Stats)
	}
	return s
}
