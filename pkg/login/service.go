package login

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tendant/simple-access/pkg/account"
	"github.com/tendant/simple-access/pkg/audit"
	"github.com/tendant/simple-access/pkg/dbtx"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"github.com/tendant/simple-access/pkg/hasher"
	"github.com/tendant/simple-access/pkg/iam"
	"github.com/tendant/simple-access/pkg/metrics"
	"github.com/tendant/simple-access/pkg/sessions"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

const invalidCredentialsMessage = "invalid credentials"

// Login method labels.
const (
	MethodPassword = "password"
	MethodForm     = "form"
	MethodIdentity = "identity"
)

// LoginResult is a freshly issued token pair. The refresh token only leaves
// the server in the refresh cookie.
type LoginResult struct {
	AccessToken  tokengenerator.IssuedToken
	RefreshToken tokengenerator.IssuedToken
	Account      *account.Account
}

// Service authenticates accounts and manages their token pairs.
type Service struct {
	accounts account.Repository
	hasher   hasher.PasswordHasher
	tokens   *tokengenerator.JwtTokenGenerator
	sessions *sessions.Service
	audit    audit.Sink
	iam      *iam.Service
	runner   dbtx.Runner
	metrics  *metrics.Recorder
	// decoy is compared when there is no stored digest to check, so every
	// failed login pays one bcrypt compare.
	decoy string
}

type Option func(*Service)

func WithHasher(h hasher.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(accounts account.Repository, tokens *tokengenerator.JwtTokenGenerator, sessionService *sessions.Service,
	sink audit.Sink, iamService *iam.Service, runner dbtx.Runner, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		hasher:   hasher.NewBcryptHasher(),
		tokens:   tokens,
		sessions: sessionService,
		audit:    sink,
		iam:      iamService,
		runner:   runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	decoy, err := s.hasher.Hash("simple-access-decoy")
	if err != nil {
		slog.Warn("Failed to hash decoy password", "err", err)
	}
	s.decoy = decoy
	return s
}

func invalidCredentials() error {
	return apperrors.New(apperrors.ErrCodeInvalidCredentials, invalidCredentialsMessage)
}

// Login authenticates by email and password. Unknown emails, wrong
// passwords and inactive accounts fail identically.
func (s *Service) Login(ctx context.Context, email, password string, sc device.SessionContext) (*LoginResult, error) {
	acct, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	result, err := s.passwordLogin(ctx, acct, err, password, sc)
	s.metrics.LoginAttempt(MethodPassword, outcome(err))
	return result, err
}

// LoginWithUsername authenticates a form post whose username field may hold
// either a username or an email.
func (s *Service) LoginWithUsername(ctx context.Context, username, password string, sc device.SessionContext) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	acct, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, account.ErrAccountNotFound) && strings.Contains(username, "@") {
		acct, err = s.accounts.GetByEmail(ctx, username)
	}
	result, err := s.passwordLogin(ctx, acct, err, password, sc)
	s.metrics.LoginAttempt(MethodForm, outcome(err))
	return result, err
}

func (s *Service) passwordLogin(ctx context.Context, acct *account.Account, lookupErr error, password string, sc device.SessionContext) (*LoginResult, error) {
	if errors.Is(lookupErr, account.ErrAccountNotFound) {
		s.hasher.Verify(password, s.decoy)
		slog.Info("Login failed: unknown account")
		return nil, invalidCredentials()
	}
	if lookupErr != nil {
		return nil, apperrors.Persistence(lookupErr)
	}
	if acct.PasswordHash == nil {
		s.hasher.Verify(password, s.decoy)
		slog.Info("Login failed: no password set", "account_id", acct.ID)
		return nil, invalidCredentials()
	}
	if !s.hasher.Verify(password, *acct.PasswordHash) {
		slog.Info("Login failed: wrong password", "account_id", acct.ID)
		return nil, invalidCredentials()
	}
	if !acct.IsActive() {
		slog.Info("Login failed: inactive account", "account_id", acct.ID)
		return nil, invalidCredentials()
	}
	return s.issue(ctx, acct, sc)
}

// LoginWithIdentity issues a session for an account already authenticated
// by an external identity provider.
func (s *Service) LoginWithIdentity(ctx context.Context, acct *account.Account, sc device.SessionContext) (*LoginResult, error) {
	if acct == nil || !acct.IsActive() {
		s.metrics.LoginAttempt(MethodIdentity, metrics.OutcomeFailure)
		return nil, apperrors.New(apperrors.ErrCodeInactiveAccount, "account is inactive")
	}
	result, err := s.issue(ctx, acct, sc)
	s.metrics.LoginAttempt(MethodIdentity, outcome(err))
	return result, err
}

// issue mints a token pair and persists it with the audit entry in one
// transaction.
func (s *Service) issue(ctx context.Context, acct *account.Account, sc device.SessionContext) (*LoginResult, error) {
	if sc.DeviceID == "" {
		sc.DeviceID = device.GenerateDeviceID(sc.UserAgent)
	}

	access, refresh, refreshHash, err := s.mintPair(ctx, acct.ID)
	if err != nil {
		return nil, err
	}

	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.RecordAccessToken(ctx, acct.ID, access.JTI, access.ExpiresAt); err != nil {
			return err
		}
		if _, err := s.sessions.StartDeviceSession(ctx, sessions.SaveRefreshTokenParams{
			AccountID: acct.ID,
			JTI:       refresh.JTI,
			TokenHash: refreshHash,
			ExpiresAt: refresh.ExpiresAt,
			IP:        sc.IP,
			UserAgent: sc.UserAgent,
			DeviceID:  sc.DeviceID,
		}); err != nil {
			return err
		}
		return s.audit.RecordLogin(ctx, audit.NewLoginEntry(acct.ID, sc))
	})
	if err != nil {
		slog.Error("Failed to persist login", "account_id", acct.ID, "err", err)
		return nil, apperrors.Persistence(err)
	}

	slog.Info("Login succeeded", "account_id", acct.ID, "device_id", sc.DeviceID)
	return &LoginResult{AccessToken: access, RefreshToken: refresh, Account: acct}, nil
}

// mintPair resolves the current roles and signs a new access and refresh
// token. It also returns the digest stored for the refresh token.
func (s *Service) mintPair(ctx context.Context, accountID int64) (access, refresh tokengenerator.IssuedToken, refreshHash string, err error) {
	roles, err := s.iam.GetUserRoles(ctx, accountID)
	if err != nil {
		return access, refresh, "", err
	}

	access, err = s.tokens.CreateAccessToken(accountID, RoleClaims(roles))
	if err != nil {
		return access, refresh, "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue access token")
	}
	refresh, err = s.tokens.CreateRefreshToken(accountID)
	if err != nil {
		return access, refresh, "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue refresh token")
	}
	refreshHash, err = s.tokens.HashToken(refresh.Token)
	if err != nil {
		return access, refresh, "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue refresh token")
	}
	return access, refresh, refreshHash, nil
}

// Refresh redeems a refresh token for a new pair. Presenting a revoked
// token is treated as theft: every refresh token of the owner is revoked.
func (s *Service) Refresh(ctx context.Context, rawRefresh string, sc device.SessionContext) (*LoginResult, error) {
	result, err := s.refresh(ctx, rawRefresh, sc)
	s.metrics.RefreshAttempt(outcome(err))
	return result, err
}

func (s *Service) refresh(ctx context.Context, rawRefresh string, sc device.SessionContext) (*LoginResult, error) {
	claims, err := s.tokens.VerifyType(rawRefresh, tokengenerator.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	accountID, _ := claims.AccountID()

	used, err := s.sessions.RefreshToken(ctx, claims.ID)
	if errors.Is(err, sessions.ErrTokenNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeTokenOwnerMismatch, "refresh token does not belong to this account")
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if used.AccountID != accountID {
		slog.Warn("Refresh token owner mismatch", "jti", claims.ID, "claimed", accountID, "owner", used.AccountID)
		return nil, apperrors.New(apperrors.ErrCodeTokenOwnerMismatch, "refresh token does not belong to this account")
	}
	if !s.tokens.VerifyTokenHash(rawRefresh, used.TokenHash) {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid token")
	}

	if used.IsRevoked {
		return nil, s.revokeOnReuse(ctx, accountID, used.DeviceID)
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if !acct.IsActive() {
		return nil, apperrors.New(apperrors.ErrCodeInactiveAccount, "account is inactive")
	}

	access, refresh, refreshHash, err := s.mintPair(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ip, ua := sc.IP, sc.UserAgent
	if ip == "" {
		ip, ua = used.IP, used.UserAgent
	}
	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.RecordAccessToken(ctx, accountID, access.JTI, access.ExpiresAt); err != nil {
			return err
		}
		_, err := s.sessions.Rotate(ctx, used, sessions.SaveRefreshTokenParams{
			AccountID: accountID,
			JTI:       refresh.JTI,
			TokenHash: refreshHash,
			ExpiresAt: refresh.ExpiresAt,
			IP:        ip,
			UserAgent: ua,
			DeviceID:  used.DeviceID,
		})
		return err
	})
	if errors.Is(err, sessions.ErrRefreshTokenReused) {
		return nil, s.revokeOnReuse(ctx, accountID, used.DeviceID)
	}
	if err != nil {
		slog.Error("Failed to rotate refresh token", "account_id", accountID, "err", err)
		return nil, apperrors.Persistence(err)
	}

	return &LoginResult{AccessToken: access, RefreshToken: refresh, Account: acct}, nil
}

// revokeOnReuse handles a refresh token redeemed twice, either presented
// after revocation or lost to a concurrent redemption. Every refresh token of
// the owner is revoked.
func (s *Service) revokeOnReuse(ctx context.Context, accountID int64, deviceID string) error {
	slog.Warn("Revoked refresh token presented, revoking all sessions", "account_id", accountID, "device_id", deviceID)
	s.metrics.RefreshReuse()
	if err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		return s.sessions.RevokeRefreshTokens(ctx, accountID)
	}); err != nil {
		return apperrors.Persistence(err)
	}
	return apperrors.New(apperrors.ErrCodeTokenRevoked, "refresh token has been revoked")
}

// Logout revokes every access and refresh token of the account, on all
// devices.
func (s *Service) Logout(ctx context.Context, accountID int64) error {
	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		return s.sessions.RevokeAll(ctx, accountID)
	})
	if err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}

// Authenticate validates a bearer access token against its revocation
// record and the account state. The record is read on every call.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*AuthUser, error) {
	claims, err := s.tokens.VerifyType(bearer, tokengenerator.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	active, err := s.sessions.AccessTokenActive(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if !active {
		return nil, apperrors.New(apperrors.ErrCodeTokenRevoked, "token has been revoked")
	}

	accountID, _ := claims.AccountID()
	acct, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if !acct.IsActive() {
		return nil, apperrors.New(apperrors.ErrCodeInactiveAccount, "account is inactive")
	}

	return &AuthUser{AccountID: accountID, Roles: claims.RoleNames(), JTI: claims.ID, Account: acct}, nil
}

// CompleteUserData resolves roles, menus, APIs and applications for acct.
func (s *Service) CompleteUserData(ctx context.Context, acct *account.Account) (*iam.CompleteUserData, error) {
	return s.iam.ResolveCompleteUserData(ctx, acct)
}

// RoleClaims snapshots roles into the shape embedded in access tokens.
func RoleClaims(roles []iam.Role) []tokengenerator.RoleClaim {
	claims := make([]tokengenerator.RoleClaim, 0, len(roles))
	for _, r := range roles {
		claims = append(claims, tokengenerator.RoleClaim{
			ID:            r.ID,
			Name:          r.Nombre,
			Description:   r.Descripcion,
			PublicKey:     r.KeyPublico,
			ApplicationID: r.ApplicationID,
		})
	}
	return claims
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeFailure
	}
	return metrics.OutcomeSuccess
}
