package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	UpstreamConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetUpstreamBaseURL() string
	GetSessionSecret() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Upstream
}

// New loads an optional .env file from the working directory and returns a
// Config backed by environment variables.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
