package config

import "time"

type UpstreamConfig interface {
	GetUpstreamTimeout() time.Duration
	GetListCacheTTL() time.Duration
}

type Upstream struct{}

var _ UpstreamConfig = Upstream{}

func (Upstream) GetUpstreamTimeout() time.Duration {
	return GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second)
}

// GetListCacheTTL bounds how long crew/vehicle/dashboard lists are served
// from cache when no mutation has invalidated them.
func (Upstream) GetListCacheTTL() time.Duration {
	return GetEnvDuration("LIST_CACHE_TTL", 5*time.Minute)
}
