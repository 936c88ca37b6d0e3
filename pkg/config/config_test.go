package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	access, err := cfg.JWT.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, access)

	refresh, err := cfg.JWT.ParseRefreshTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, refresh)

	reset, err := cfg.JWT.ParseResetTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, reset)

	assert.Equal(t, "/api/v1/auth/refresh", cfg.JWT.RefreshCookiePath)
	assert.Equal(t, "simple-access", cfg.JWT.Issuer)
	assert.False(t, cfg.Google.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRY", "PT5M")
	t.Setenv("JWT_ISSUER", "portal")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	access, err := cfg.JWT.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, access)
	assert.Equal(t, "portal", cfg.JWT.Issuer)
	assert.True(t, cfg.Google.Enabled())
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidateRejectsBadDuration(t *testing.T) {
	t.Setenv("REFRESH_TOKEN_EXPIRY", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_EXPIRY")
}

func TestCookieSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, JWTConfig{CookieSecure: true}.CookieSameSite())
	assert.Equal(t, http.SameSiteLaxMode, JWTConfig{CookieSecure: false}.CookieSameSite())
}
