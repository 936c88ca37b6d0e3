package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service provides session management business logic
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new session service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// RecordAccessToken stores the revocation record of a freshly issued access token.
func (s *Service) RecordAccessToken(ctx context.Context, accountID int64, jti string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("jti is required")
	}
	if !expiresAt.After(s.now()) {
		return fmt.Errorf("expires_at must be in the future")
	}
	return s.repo.SaveAccessToken(ctx, accountID, jti, expiresAt)
}

// AccessTokenActive reports whether the access token record exists and is not
// revoked. It always reads the store.
func (s *Service) AccessTokenActive(ctx context.Context, jti string) (bool, error) {
	rec, err := s.repo.GetAccessTokenByJTI(ctx, jti)
	if errors.Is(err, ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !rec.IsRevoked, nil
}

// StartDeviceSession revokes the account's live refresh tokens on the device
// and then stores the new one, leaving exactly one active per device.
func (s *Service) StartDeviceSession(ctx context.Context, params SaveRefreshTokenParams) (*RefreshTokenRecord, error) {
	if params.JTI == "" || params.TokenHash == "" {
		return nil, fmt.Errorf("jti and token hash are required")
	}
	if params.DeviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	revoked, err := s.repo.RevokeRefreshTokenByDevice(ctx, params.AccountID, params.DeviceID)
	if err != nil {
		return nil, err
	}
	if revoked > 0 {
		slog.Info("Replaced device session", "account_id", params.AccountID, "revoked", revoked)
	}
	return s.repo.SaveRefreshToken(ctx, params)
}

// RefreshToken loads a refresh record by jti.
func (s *Service) RefreshToken(ctx context.Context, jti string) (*RefreshTokenRecord, error) {
	return s.repo.GetRefreshTokenByJTI(ctx, jti)
}

// Rotate revokes the redeemed refresh record and stores its successor. The
// revoke is the claim on the record: if it changes no row, another redemption
// won and Rotate returns ErrRefreshTokenReused without storing anything.
func (s *Service) Rotate(ctx context.Context, used *RefreshTokenRecord, next SaveRefreshTokenParams) (*RefreshTokenRecord, error) {
	n, err := s.repo.RevokeRefreshToken(ctx, used.ID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrRefreshTokenReused
	}
	return s.repo.SaveRefreshToken(ctx, next)
}

// RevokeRefreshTokens revokes every live refresh token of the account.
func (s *Service) RevokeRefreshTokens(ctx context.Context, accountID int64) error {
	n, err := s.repo.RevokeAllByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	slog.Info("Revoked refresh tokens", "account_id", accountID, "count", n)
	return nil
}

// RevokeAll revokes every live access and refresh token of the account.
func (s *Service) RevokeAll(ctx context.Context, accountID int64) error {
	access, err := s.repo.RevokeAllAccessTokensByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	refresh, err := s.repo.RevokeAllByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	slog.Info("Revoked all sessions", "account_id", accountID, "access", access, "refresh", refresh)
	return nil
}
