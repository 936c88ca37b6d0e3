package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tendant/simple-access/pkg/dbtx"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db dbtx.DBTX
}

// NewPostgresRepository creates a new PostgreSQL session repository
func NewPostgresRepository(db dbtx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SaveAccessToken(ctx context.Context, accountID int64, jti string, expiresAt time.Time) error {
	_, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO access_tokens (user_id, jti, expires_at)
		VALUES ($1, $2, $3)`,
		accountID, jti, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAccessTokenByJTI(ctx context.Context, jti string) (*AccessTokenRecord, error) {
	var rec AccessTokenRecord
	err := dbtx.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, jti::text, is_revoked, created_at, expires_at, revoked_at
		FROM access_tokens
		WHERE jti = $1`,
		jti,
	).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.JTI,
		&rec.IsRevoked,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
	)
	if err != nil {
		if dbtx.IsNoRows(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token by JTI: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) RevokeAllAccessTokensByAccount(ctx context.Context, accountID int64) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		UPDATE access_tokens
		SET is_revoked = TRUE, revoked_at = NOW()
		WHERE user_id = $1 AND is_revoked = FALSE`,
		accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke access tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) SaveRefreshToken(ctx context.Context, p SaveRefreshTokenParams) (*RefreshTokenRecord, error) {
	ua, err := json.Marshal(p.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user agent: %w", err)
	}

	rec := RefreshTokenRecord{
		AccountID: p.AccountID,
		JTI:       p.JTI,
		TokenHash: p.TokenHash,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		DeviceID:  p.DeviceID,
		ExpiresAt: p.ExpiresAt,
	}
	err = dbtx.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_jti, token_hash, ip, user_agent, device_id, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id, created_at`,
		p.AccountID, p.JTI, p.TokenHash, p.IP, ua, p.DeviceID, p.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) GetRefreshTokenByJTI(ctx context.Context, jti string) (*RefreshTokenRecord, error) {
	var rec RefreshTokenRecord
	var ip *string
	var ua []byte
	err := dbtx.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, token_jti::text, token_hash, ip, user_agent, device_id,
		       is_revoked, created_at, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_jti = $1`,
		jti,
	).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.JTI,
		&rec.TokenHash,
		&ip,
		&ua,
		&rec.DeviceID,
		&rec.IsRevoked,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
	)
	if err != nil {
		if dbtx.IsNoRows(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by JTI: %w", err)
	}
	if ip != nil {
		rec.IP = *ip
	}
	if len(ua) > 0 {
		if err := json.Unmarshal(ua, &rec.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to decode user agent: %w", err)
		}
	}
	return &rec, nil
}

func (r *PostgresRepository) RevokeRefreshTokenByDevice(ctx context.Context, accountID int64, deviceID string) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = NOW()
		WHERE user_id = $1 AND device_id = $2 AND is_revoked = FALSE`,
		accountID, deviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens by device: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, id int64) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = NOW()
		WHERE id = $1 AND is_revoked = FALSE`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = NOW()
		WHERE user_id = $1 AND is_revoked = FALSE`,
		accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteExpiredRefreshTokens(ctx context.Context, before, revokedBefore time.Time) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
		   OR (is_revoked = TRUE AND revoked_at <= $2)`,
		before, revokedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteExpiredAccessTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx, `DELETE FROM access_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired access tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
