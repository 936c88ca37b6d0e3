package externalprovider

import (
	"context"
	"errors"
	"time"
)

var ErrLinkNotFound = errors.New("social account link not found")

// SocialAccount links an IdP identity to a local account. An account holds at
// most one link per provider.
type SocialAccount struct {
	ID         int64
	AccountID  int64
	Provider   string
	ExternalID string
	Email      *string
	Name       *string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

type Repository interface {
	FindByProviderAndExternalID(ctx context.Context, provider, externalID string) (*SocialAccount, error)
	// UpsertForAccount creates the link of accountID for provider, or
	// replaces the identity of the existing one.
	UpsertForAccount(ctx context.Context, accountID int64, provider, externalID, email, name string) (*SocialAccount, error)
}
