package config

import "time"

// SessionConfig holds the lifecycle tuning for authenticated sessions.
// The defaults are product values, not derived from an SLA.
type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetInactivityTimeout() time.Duration
	GetMaxSessionAge() time.Duration
	GetRefreshLookahead() time.Duration
	GetRefreshMaxRetries() int
	GetRefreshBaseDelay() time.Duration
	GetDefaultAccessTokenTTL() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshInterval() time.Duration {
	return GetEnvDuration("SESSION_REFRESH_INTERVAL", 60*time.Minute)
}

func (Session) GetInactivityTimeout() time.Duration {
	return GetEnvDuration("SESSION_INACTIVITY_TIMEOUT", 60*time.Minute)
}

func (Session) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", 6*time.Hour)
}

func (Session) GetRefreshLookahead() time.Duration {
	return GetEnvDuration("SESSION_REFRESH_LOOKAHEAD", 5*time.Minute)
}

func (Session) GetRefreshMaxRetries() int {
	return GetEnvInt("SESSION_REFRESH_MAX_RETRIES", 3)
}

func (Session) GetRefreshBaseDelay() time.Duration {
	return GetEnvDuration("SESSION_REFRESH_BASE_DELAY", 5*time.Second)
}

// GetDefaultAccessTokenTTL is used when the upstream hands back an access
// token whose expiry cannot be read.
func (Session) GetDefaultAccessTokenTTL() time.Duration {
	return GetEnvDuration("SESSION_ACCESS_TOKEN_TTL", 1*time.Hour)
}

// StaticSession is a SessionConfig with fixed values, used by tests and by
// callers that build managers outside the env-driven config.
type StaticSession struct {
	RefreshInterval   time.Duration
	InactivityTimeout time.Duration
	MaxSessionAge     time.Duration
	RefreshLookahead  time.Duration
	RefreshMaxRetries int
	RefreshBaseDelay  time.Duration
	DefaultAccessTTL  time.Duration
}

var _ SessionConfig = StaticSession{}

// DefaultStaticSession returns the built-in defaults.
func DefaultStaticSession() StaticSession {
	return StaticSession{
		RefreshInterval:   60 * time.Minute,
		InactivityTimeout: 60 * time.Minute,
		MaxSessionAge:     6 * time.Hour,
		RefreshLookahead:  5 * time.Minute,
		RefreshMaxRetries: 3,
		RefreshBaseDelay:  5 * time.Second,
		DefaultAccessTTL:  1 * time.Hour,
	}
}

func (s StaticSession) GetRefreshInterval() time.Duration       { return s.RefreshInterval }
func (s StaticSession) GetInactivityTimeout() time.Duration     { return s.InactivityTimeout }
func (s StaticSession) GetMaxSessionAge() time.Duration         { return s.MaxSessionAge }
func (s StaticSession) GetRefreshLookahead() time.Duration      { return s.RefreshLookahead }
func (s StaticSession) GetRefreshMaxRetries() int               { return s.RefreshMaxRetries }
func (s StaticSession) GetRefreshBaseDelay() time.Duration      { return s.RefreshBaseDelay }
func (s StaticSession) GetDefaultAccessTokenTTL() time.Duration { return s.DefaultAccessTTL }
