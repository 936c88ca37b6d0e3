// Package config loads simple-access settings from the environment.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Google    GoogleConfig
	Microsoft MicrosoftConfig
	Frontend  FrontendConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Sweep     SweepConfig
}

// Load reads the configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return Validate(
		c.validateJWT,
		c.validateSweep,
		func() ValidationErrors {
			var errs ValidationErrors
			if err := RequireNonEmpty("ACCESS_PG_HOST", c.Database.Host); err != nil {
				errs = append(errs, *err)
			}
			if err := RequireValidURL("FRONTEND_CALLBACK_URL", c.Frontend.CallbackURL); err != nil {
				errs = append(errs, *err)
			}
			if c.RateLimit.PerMinute <= 0 {
				errs = append(errs, ValidationError{Field: "LOGIN_RATE_PER_MINUTE", Message: "must be positive"})
			}
			return errs
		},
	)
}

func (c Config) validateJWT() ValidationErrors {
	var errs ValidationErrors
	if err := RequireNonEmpty("JWT_SECRET", c.JWT.Secret); err != nil {
		errs = append(errs, *err)
	}
	if c.Server.IsProduction() && c.JWT.Secret == DefaultJWTSecret {
		errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "must be changed in production"})
	}
	if err := RequireNonEmpty("JWT_ISSUER", c.JWT.Issuer); err != nil {
		errs = append(errs, *err)
	}
	durations := []struct {
		field string
		parse func() (time.Duration, error)
	}{
		{"ACCESS_TOKEN_EXPIRY", c.JWT.ParseAccessTokenExpiry},
		{"REFRESH_TOKEN_EXPIRY", c.JWT.ParseRefreshTokenExpiry},
		{"RESET_TOKEN_EXPIRY", c.JWT.ParseResetTokenExpiry},
		{"OAUTH_STATE_TTL", c.Redis.ParseStateTTL},
	}
	for _, d := range durations {
		errs = append(errs, requireDuration(d.field, d.parse)...)
	}
	return errs
}

func (c Config) validateSweep() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, requireDuration("SWEEP_INTERVAL", c.Sweep.ParseInterval)...)
	errs = append(errs, requireDuration("SWEEP_REVOKED_AGE", c.Sweep.ParseRevokedAge)...)
	return errs
}

func requireDuration(field string, parse func() (time.Duration, error)) ValidationErrors {
	d, err := parse()
	if err != nil {
		return ValidationErrors{{Field: field, Message: "invalid duration: " + err.Error()}}
	}
	if verr := RequirePositiveDuration(field, d); verr != nil {
		return ValidationErrors{*verr}
	}
	return nil
}
