package passwordreset

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tendant/simple-access/pkg/account"
	"github.com/tendant/simple-access/pkg/dbtx"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"github.com/tendant/simple-access/pkg/hasher"
	"github.com/tendant/simple-access/pkg/metrics"
	"github.com/tendant/simple-access/pkg/sessions"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

const invalidOrUsedMessage = "invalid or already used token"

// deliveryTimeout bounds one reset notification sent after the request returned.
const deliveryTimeout = 30 * time.Second

// decoyToken is digested on requests that issue nothing, so every request
// pays the same bcrypt cost.
const decoyToken = "password-reset-decoy"

// Service issues and redeems password reset tokens.
type Service struct {
	repo     Repository
	accounts account.Repository
	sessions *sessions.Service
	tokens   *tokengenerator.JwtTokenGenerator
	runner   dbtx.Runner
	hasher   hasher.PasswordHasher
	policy   *PasswordPolicy
	notifier Notifier
	resetURL string
	metrics  *metrics.Recorder
	pending  sync.WaitGroup
}

type Option func(*Service)

func WithHasher(h hasher.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func WithPolicy(p *PasswordPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithResetURL sets the frontend page that receives the token as ?token=.
func WithResetURL(u string) Option {
	return func(s *Service) { s.resetURL = u }
}

func NewService(repo Repository, accounts account.Repository, sessionService *sessions.Service,
	tokens *tokengenerator.JwtTokenGenerator, runner dbtx.Runner, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		accounts: accounts,
		sessions: sessionService,
		tokens:   tokens,
		runner:   runner,
		hasher:   hasher.NewBcryptHasher(),
		policy:   DefaultPasswordPolicy(),
		notifier: LogNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestResetToken mints a reset token for the account and stores its
// digest. Earlier outstanding tokens stay valid.
func (s *Service) RequestResetToken(ctx context.Context, accountID int64, ip string, ua device.UserAgent) (tokengenerator.IssuedToken, error) {
	issued, err := s.tokens.CreateResetToken(accountID)
	if err != nil {
		return tokengenerator.IssuedToken{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue reset token")
	}
	digest, err := s.tokens.HashToken(issued.Token)
	if err != nil {
		return tokengenerator.IssuedToken{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue reset token")
	}

	_, err = s.repo.Save(ctx, SaveParams{
		AccountID: accountID,
		JTI:       issued.JTI,
		TokenHash: digest,
		ExpiresAt: issued.ExpiresAt,
		IP:        ip,
		UserAgent: ua,
	})
	if err != nil {
		return tokengenerator.IssuedToken{}, apperrors.Persistence(err)
	}
	slog.Info("Password reset requested", "account_id", accountID)
	return issued, nil
}

// RequestResetByEmail sends a reset link when email belongs to an active
// account. Unknown and inactive addresses succeed silently.
func (s *Service) RequestResetByEmail(ctx context.Context, email string, ip string, ua device.UserAgent) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrAccountNotFound) {
		slog.Info("Password reset requested for unknown email")
		s.digestDecoy()
		return nil
	}
	if err != nil {
		return apperrors.Persistence(err)
	}
	if !acc.IsActive() {
		slog.Info("Password reset requested for inactive account", "account_id", acc.ID)
		s.digestDecoy()
		return nil
	}

	issued, err := s.RequestResetToken(ctx, acc.ID, ip, ua)
	if err != nil {
		s.metrics.PasswordReset("request", metrics.OutcomeFailure)
		return err
	}
	s.metrics.PasswordReset("request", metrics.OutcomeSuccess)

	notice := ResetNotice{
		To:        acc.Email,
		Name:      acc.NombreCompleto(),
		Link:      s.resetLink(issued.Token),
		ExpiresAt: issued.ExpiresAt,
	}
	s.deliver(context.WithoutCancel(ctx), acc.ID, notice)
	return nil
}

// deliver sends notice in the background. Failures are only logged.
func (s *Service) deliver(ctx context.Context, accountID int64, notice ResetNotice) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()
		if err := s.notifier.SendPasswordReset(ctx, notice); err != nil {
			slog.Error("Failed to deliver password reset", "account_id", accountID, "err", err)
		}
	}()
}

// Wait blocks until every queued reset notification has been handed to the
// notifier.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) digestDecoy() {
	if _, err := s.tokens.HashToken(decoyToken); err != nil {
		slog.Warn("Failed to digest decoy reset token", "err", err)
	}
}

func (s *Service) resetLink(token string) string {
	u, err := url.Parse(s.resetURL)
	if err != nil || s.resetURL == "" {
		return "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConfirmReset redeems a reset token. In one transaction it sets the new
// password, consumes the token and revokes every access, refresh and
// outstanding reset token of the account.
func (s *Service) ConfirmReset(ctx context.Context, rawToken, newPassword string) (*account.Account, error) {
	acc, err := s.confirmReset(ctx, rawToken, newPassword)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.PasswordReset("confirm", outcome)
	return acc, err
}

func (s *Service) confirmReset(ctx context.Context, rawToken, newPassword string) (*account.Account, error) {
	if err := s.policy.Check(newPassword); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	claims, err := s.tokens.VerifyType(rawToken, tokengenerator.TokenTypeReset)
	if err != nil {
		return nil, err
	}
	accountID, _ := claims.AccountID()

	rec, err := s.repo.GetByJTI(ctx, claims.ID)
	if errors.Is(err, ErrResetTokenNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidOrUsedToken, invalidOrUsedMessage)
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if rec.UsedAt != nil || rec.AccountID != accountID || !s.tokens.VerifyTokenHash(rawToken, rec.TokenHash) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidOrUsedToken, invalidOrUsedMessage)
	}

	acc, err := s.accounts.GetByID(ctx, rec.AccountID)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, apperrors.Unauthorized("account not found")
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash password")
	}

	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.UpdatePassword(ctx, acc.ID, digest); err != nil {
			return err
		}
		consumed, err := s.repo.MarkUsed(ctx, rec.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return apperrors.New(apperrors.ErrCodeInvalidOrUsedToken, invalidOrUsedMessage)
		}
		if err := s.sessions.RevokeAll(ctx, acc.ID); err != nil {
			return err
		}
		_, err = s.repo.MarkOutstandingUsed(ctx, acc.ID)
		return err
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeInvalidOrUsedToken) {
			return nil, err
		}
		slog.Error("Password reset rolled back", "account_id", acc.ID, "err", err)
		return nil, apperrors.Persistence(err)
	}

	acc.PasswordHash = &digest
	slog.Info("Password reset completed", "account_id", acc.ID)
	return acc, nil
}
