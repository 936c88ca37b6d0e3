package tokengenerator

import (
	"net/http"
	"time"
)

// RefreshCookieName is the only channel through which refresh tokens leave the server.
const RefreshCookieName = "refresh_token"

// CookieSetter writes and clears the refresh token cookie
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, tokenValue string)
	ClearCookie(w http.ResponseWriter)
}

// RefreshCookieSetter scopes the refresh cookie to the refresh endpoint.
type RefreshCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// NewRefreshCookieSetter returns the hardened default: HttpOnly, Secure and SameSite=Strict.
func NewRefreshCookieSetter(path string, maxAge time.Duration) *RefreshCookieSetter {
	return &RefreshCookieSetter{
		Path:     path,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}

func (c *RefreshCookieSetter) SetCookie(w http.ResponseWriter, tokenValue string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    tokenValue,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *RefreshCookieSetter) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
