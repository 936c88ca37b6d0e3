package sessions

import (
	"errors"
	"time"

	"github.com/tendant/simple-access/pkg/device"
)

var ErrTokenNotFound = errors.New("token record not found")

// ErrRefreshTokenReused is returned by Rotate when the redeemed record was
// revoked by someone else first.
var ErrRefreshTokenReused = errors.New("refresh token already redeemed")

// AccessTokenRecord tracks one issued access token so it can be revoked
// before it expires.
type AccessTokenRecord struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"user_id"`
	JTI       string     `json:"jti"`
	IsRevoked bool       `json:"is_revoked"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// RefreshTokenRecord is one refresh session bound to a device. TokenHash is
// the bcrypt digest of the raw token; the raw token is never stored.
type RefreshTokenRecord struct {
	ID        int64            `json:"id"`
	AccountID int64            `json:"user_id"`
	JTI       string           `json:"token_jti"`
	TokenHash string           `json:"-"`
	IP        string           `json:"ip,omitempty"`
	UserAgent device.UserAgent `json:"user_agent"`
	DeviceID  string           `json:"device_id"`
	IsRevoked bool             `json:"is_revoked"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	RevokedAt *time.Time       `json:"revoked_at,omitempty"`
}

// SaveRefreshTokenParams holds what is stored for a new refresh token.
type SaveRefreshTokenParams struct {
	AccountID int64
	JTI       string
	TokenHash string
	ExpiresAt time.Time
	IP        string
	UserAgent device.UserAgent
	DeviceID  string
}
