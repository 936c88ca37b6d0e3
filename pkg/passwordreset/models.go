package passwordreset

import (
	"errors"
	"time"

	"github.com/tendant/simple-access/pkg/device"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetTokenRecord is one reset request. UsedAt is set when the token is
// redeemed or superseded by another redemption.
type ResetTokenRecord struct {
	ID        int64
	AccountID int64
	JTI       string
	TokenHash string
	IP        string
	UserAgent device.UserAgent
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// SaveParams holds what is stored for a new reset request.
type SaveParams struct {
	AccountID int64
	JTI       string
	TokenHash string
	ExpiresAt time.Time
	IP        string
	UserAgent device.UserAgent
}
