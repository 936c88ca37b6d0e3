package config

import (
	"net/http"
	"time"

	"github.com/sosodev/duration"
)

// DefaultJWTSecret is only suitable for local development.
const DefaultJWTSecret = "change-me-in-production"

// JWTConfig holds token signing and refresh cookie settings
type JWTConfig struct {
	Secret             string `env:"JWT_SECRET" env-default:"change-me-in-production"`
	Issuer             string `env:"JWT_ISSUER" env-default:"simple-access"`
	AccessTokenExpiry  string `env:"ACCESS_TOKEN_EXPIRY" env-default:"30m"`
	RefreshTokenExpiry string `env:"REFRESH_TOKEN_EXPIRY" env-default:"P7D"`
	ResetTokenExpiry   string `env:"RESET_TOKEN_EXPIRY" env-default:"15m"`
	CookieSecure       bool   `env:"COOKIE_SECURE" env-default:"true"`
	RefreshCookiePath  string `env:"REFRESH_COOKIE_PATH" env-default:"/api/v1/auth/refresh"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.AccessTokenExpiry)
}

// ParseRefreshTokenExpiry parses the refresh token expiry duration
func (j JWTConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.RefreshTokenExpiry)
}

// ParseResetTokenExpiry parses the password reset token expiry duration
func (j JWTConfig) ParseResetTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.ResetTokenExpiry)
}

// CookieSameSite is Strict whenever the cookie is marked Secure.
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// parseDurationISO8601 tries ISO8601 ("PT30M", "P7D") first, then Go syntax ("30m").
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
