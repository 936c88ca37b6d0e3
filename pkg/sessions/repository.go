package sessions

import (
	"context"
	"time"
)

// Repository stores access and refresh token records. Every method joins the
// transaction bound to ctx. Revocations only touch rows that are not revoked
// yet, so repeating one is a no-op.
type Repository interface {
	SaveAccessToken(ctx context.Context, accountID int64, jti string, expiresAt time.Time) error
	GetAccessTokenByJTI(ctx context.Context, jti string) (*AccessTokenRecord, error)
	RevokeAllAccessTokensByAccount(ctx context.Context, accountID int64) (int64, error)

	SaveRefreshToken(ctx context.Context, params SaveRefreshTokenParams) (*RefreshTokenRecord, error)
	GetRefreshTokenByJTI(ctx context.Context, jti string) (*RefreshTokenRecord, error)
	// RevokeRefreshTokenByDevice revokes the account's live refresh tokens on deviceID.
	RevokeRefreshTokenByDevice(ctx context.Context, accountID int64, deviceID string) (int64, error)
	// RevokeRefreshToken reports how many rows it revoked: 0 when the record
	// was already revoked.
	RevokeRefreshToken(ctx context.Context, id int64) (int64, error)
	RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error)

	// DeleteExpiredRefreshTokens removes refresh tokens that expired before
	// the cutoff, plus revoked ones whose revocation is older than revokedBefore.
	DeleteExpiredRefreshTokens(ctx context.Context, before, revokedBefore time.Time) (int64, error)
	DeleteExpiredAccessTokens(ctx context.Context, before time.Time) (int64, error)
}
