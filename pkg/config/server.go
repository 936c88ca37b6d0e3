package config

import "time"

// ServerConfig holds process level settings
type ServerConfig struct {
	AppName     string `env:"APP_NAME" env-default:"simple-access"`
	Environment string `env:"APP_ENV" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"text"`
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production" || s.Environment == "prod"
}

// RateLimitConfig limits credential endpoints per client IP.
type RateLimitConfig struct {
	PerMinute int `env:"LOGIN_RATE_PER_MINUTE" env-default:"10"`
	Burst     int `env:"LOGIN_RATE_BURST" env-default:"5"`
}

// SweepConfig drives the refresh token retention sweep.
type SweepConfig struct {
	Interval   string `env:"SWEEP_INTERVAL" env-default:"1h"`
	RevokedAge string `env:"SWEEP_REVOKED_AGE" env-default:"4h"`
}

func (s SweepConfig) ParseInterval() (time.Duration, error) {
	return parseDurationISO8601(s.Interval)
}

func (s SweepConfig) ParseRevokedAge() (time.Duration, error) {
	return parseDurationISO8601(s.RevokedAge)
}
