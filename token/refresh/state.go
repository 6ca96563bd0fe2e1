package refresh

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
)

// State is the lifecycle position of one session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateRefreshing
	StateRetryBackoff
	StateExpired
	StateLoggedOut
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateActive:       "active",
	StateRefreshing:   "refreshing",
	StateRetryBackoff: "retry_backoff",
	StateExpired:      "expired",
	StateLoggedOut:    "logged_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the session instance is finished.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateLoggedOut
}

// Reason records why a session ended.
type Reason string

const (
	ReasonInactivity       Reason = "inactivity"
	ReasonSessionCeiling   Reason = "session_ceiling"
	ReasonRefreshExpired   Reason = "refresh_token_expired"
	ReasonRetriesExhausted Reason = "retries_exhausted"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonLogout           Reason = "logout"
)

// ActivityKind names the interactions that keep a session alive.
type ActivityKind string

const (
	ActivityPointer    ActivityKind = "pointer"
	ActivityKey        ActivityKind = "key"
	ActivityScroll     ActivityKind = "scroll"
	ActivityTouch      ActivityKind = "touch"
	ActivityVisibility ActivityKind = "visibility"
	ActivityRequest    ActivityKind = "request"
)

// ParseActivityKind validates a kind reported by the browser.
func ParseActivityKind(s string) (ActivityKind, error) {
	switch kind := ActivityKind(s); kind {
	case ActivityPointer, ActivityKey, ActivityScroll, ActivityTouch, ActivityVisibility, ActivityRequest:
		return kind, nil
	}
	return "", errors.Wrapf(errors.ErrValidation, "unknown activity kind %q", s)
}

// Status is a point-in-time view of a manager.
type Status struct {
	State           State         `json:"state"`
	Reason          Reason        `json:"reason,omitempty"`
	Online          bool          `json:"online"`
	RetryCount      int           `json:"retry_count"`
	LastError       *RefreshError `json:"last_error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	LastActivity    time.Time     `json:"last_activity"`
	AccessExpiresAt time.Time     `json:"access_expires_at"`
}
