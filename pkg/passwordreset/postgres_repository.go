package passwordreset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tendant/simple-access/pkg/dbtx"
)

type PostgresRepository struct {
	db dbtx.DBTX
}

func NewPostgresRepository(db dbtx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, p SaveParams) (*ResetTokenRecord, error) {
	ua, err := json.Marshal(p.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user agent: %w", err)
	}
	rec := ResetTokenRecord{
		AccountID: p.AccountID,
		JTI:       p.JTI,
		TokenHash: p.TokenHash,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		ExpiresAt: p.ExpiresAt,
	}
	err = dbtx.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO password_reset_tokens (user_id, jti, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING id, created_at`,
		p.AccountID, p.JTI, p.TokenHash, p.IP, ua, p.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save reset token: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) GetByJTI(ctx context.Context, jti string) (*ResetTokenRecord, error) {
	var rec ResetTokenRecord
	var ip *string
	var ua []byte
	err := dbtx.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, jti::text, token_hash, ip_address, user_agent, created_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE jti = $1`,
		jti,
	).Scan(&rec.ID, &rec.AccountID, &rec.JTI, &rec.TokenHash, &ip, &ua, &rec.CreatedAt, &rec.ExpiresAt, &rec.UsedAt)
	if err != nil {
		if dbtx.IsNoRows(err) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
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

func (r *PostgresRepository) MarkUsed(ctx context.Context, id int64) (bool, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) MarkOutstandingUsed(ctx context.Context, accountID int64) (int64, error) {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx,
		`UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
