// Package events carries session lifecycle notifications from the token
// manager to whoever presents them (logs, status endpoint).
package events

import "time"

const (
	TypeRefreshed       = "session.refreshed"
	TypeRefreshRetrying = "session.refresh_retrying"
	TypeRefreshFailed   = "session.refresh_failed"
	TypeSessionExpired  = "session.expired"
	TypeNetworkStatus   = "network.status"
)

// Event is implemented by every published notification.
type Event interface {
	EventType() string
	SessionID() string
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	sessionID string
	at        time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) SessionID() string    { return e.sessionID }
func (e baseEvent) Timestamp() time.Time { return e.at }

// Refreshed is published after a successful token refresh.
type Refreshed struct {
	baseEvent
	AccessExpiresAt time.Time
	Attempts        int
}

func NewRefreshed(sessionID string, at, expiresAt time.Time, attempts int) Refreshed {
	return Refreshed{baseEvent: baseEvent{TypeRefreshed, sessionID, at}, AccessExpiresAt: expiresAt, Attempts: attempts}
}

// RefreshRetrying is the transient "reconnecting" notice.
type RefreshRetrying struct {
	baseEvent
	Attempt int // 1-based attempt that just failed
	Delay   time.Duration
	Kind    string
	Message string
}

func NewRefreshRetrying(sessionID string, at time.Time, attempt int, delay time.Duration, kind, message string) RefreshRetrying {
	return RefreshRetrying{
		baseEvent: baseEvent{TypeRefreshRetrying, sessionID, at},
		Attempt:   attempt,
		Delay:     delay,
		Kind:      kind,
		Message:   message,
	}
}

// RefreshFailed is published once a refresh gives up.
type RefreshFailed struct {
	baseEvent
	Kind      string
	Message   string
	Retryable bool
	Attempts  int
}

func NewRefreshFailed(sessionID string, at time.Time, kind, message string, retryable bool, attempts int) RefreshFailed {
	return RefreshFailed{
		baseEvent: baseEvent{TypeRefreshFailed, sessionID, at},
		Kind:      kind,
		Message:   message,
		Retryable: retryable,
		Attempts:  attempts,
	}
}

// SessionExpired is published when a session reaches its terminal state.
type SessionExpired struct {
	baseEvent
	Reason string
}

func NewSessionExpired(sessionID string, at time.Time, reason string) SessionExpired {
	return SessionExpired{baseEvent: baseEvent{TypeSessionExpired, sessionID, at}, Reason: reason}
}

// NetworkStatus is published on connectivity transitions only.
type NetworkStatus struct {
	baseEvent
	Online bool
}

func NewNetworkStatus(sessionID string, at time.Time, online bool) NetworkStatus {
	return NetworkStatus{baseEvent: baseEvent{TypeNetworkStatus, sessionID, at}, Online: online}
}
