package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	logLevelVar      = "LOG_LEVEL"
	upstreamURLVar   = "UPSTREAM_BASE_URL"
	sessionSecretVar = "SESSION_SECRET"
	defaultUpstream  = "http://localhost:8000/api"
	defaultDevSecret = "dev-only-session-secret-change-me"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Fleet Collect")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return strings.ToLower(GetEnv(logLevelVar, "info"))
}

// GetUpstreamBaseURL returns the base URL of the API of record, e.g.
// "https://fleet.example.com/api". Endpoint paths are appended to it.
func (EnvVars) GetUpstreamBaseURL() string {
	return strings.TrimRight(GetEnv(upstreamURLVar, defaultUpstream), "/")
}

// GetSessionSecret returns the shared secret that signs session cookies.
// Outside DEV an empty value is returned when unset so startup can refuse it.
func (e EnvVars) GetSessionSecret() string {
	secret := os.Getenv(sessionSecretVar)
	if secret == "" && e.GetEnv() == "DEV" {
		return defaultDevSecret
	}
	return secret
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration string ("90s", "1h"), falling back to
// defaultValue when unset or malformed.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
