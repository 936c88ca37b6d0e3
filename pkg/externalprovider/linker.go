package externalprovider

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tendant/simple-access/pkg/account"
	"github.com/tendant/simple-access/pkg/dbtx"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// Linker maps an IdP identity onto an existing local account. It never
// creates accounts.
type Linker struct {
	accounts account.Repository
	links    Repository
}

func NewLinker(accounts account.Repository, links Repository) *Linker {
	return &Linker{accounts: accounts, links: links}
}

// Link returns the local account for info. A known identity must still carry
// the email it was linked with; an unknown one is linked to the account
// registered under its email.
func (l *Linker) Link(ctx context.Context, provider string, info *UserInfo) (*account.Account, error) {
	if !info.VerifiedEmail {
		return nil, apperrors.Validation("the provider has not verified this email address")
	}

	acct, err := l.resolve(ctx, provider, info)
	if err != nil {
		return nil, err
	}
	if !acct.IsActive() {
		slog.Warn("Social login for inactive account", "provider", provider, "account_id", acct.ID)
		return nil, apperrors.Forbidden("account is inactive")
	}
	return acct, nil
}

func (l *Linker) resolve(ctx context.Context, provider string, info *UserInfo) (*account.Account, error) {
	link, err := l.links.FindByProviderAndExternalID(ctx, provider, info.ExternalID)
	switch {
	case err == nil:
		acct, err := l.accounts.GetByID(ctx, link.AccountID)
		if errors.Is(err, account.ErrAccountNotFound) {
			slog.Warn("Social link points at a missing account", "provider", provider, "account_id", link.AccountID)
			return nil, apperrors.Unauthorized("no account is associated with this identity")
		}
		if err != nil {
			return nil, apperrors.Persistence(err)
		}
		if link.Email == nil || !strings.EqualFold(*link.Email, info.Email) {
			slog.Warn("Social identity email changed since linking", "provider", provider, "account_id", acct.ID)
			return nil, apperrors.Unauthorized("the identity email does not match the linked account")
		}
		return acct, nil

	case errors.Is(err, ErrLinkNotFound):
		acct, err := l.accounts.GetByEmail(ctx, info.Email)
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, apperrors.Unauthorized("no account is associated with this identity")
		}
		if err != nil {
			return nil, apperrors.Persistence(err)
		}
		if _, err := l.links.UpsertForAccount(ctx, acct.ID, provider, info.ExternalID, info.Email, info.Name); err != nil {
			if dbtx.IsUniqueViolation(err) {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeConflict, "this identity is linked to another account")
			}
			return nil, apperrors.Persistence(err)
		}
		slog.Info("Linked social identity", "provider", provider, "account_id", acct.ID)
		return acct, nil

	default:
		return nil, apperrors.Persistence(err)
	}
}
