package config

import "time"

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" env-default:"http://localhost:8000/api/v1/auth/google/callback"`
}

// Enabled reports whether enough settings are present to register the provider.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type MicrosoftConfig struct {
	ClientID     string `env:"MICROSOFT_CLIENT_ID"`
	ClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
	TenantID     string `env:"MICROSOFT_TENANT_ID" env-default:"common"`
	RedirectURL  string `env:"MICROSOFT_REDIRECT_URL" env-default:"http://localhost:8000/api/v1/auth/microsoft/callback"`
}

func (m MicrosoftConfig) Enabled() bool {
	return m.ClientID != "" && m.ClientSecret != ""
}

// RedisConfig points at the store holding transient OAuth state.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	StateTTL string `env:"OAUTH_STATE_TTL" env-default:"10m"`
}

func (r RedisConfig) ParseStateTTL() (time.Duration, error) {
	return parseDurationISO8601(r.StateTTL)
}

// FrontendConfig holds the browser-facing URLs the backend redirects to.
type FrontendConfig struct {
	CallbackURL      string `env:"FRONTEND_CALLBACK_URL" env-default:"http://localhost:4200/callback"`
	PasswordResetURL string `env:"PASSWORD_RESET_URL" env-default:"http://localhost:4200/reset-password"`
}
