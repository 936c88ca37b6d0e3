package externalprovider

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/simple-access/pkg/dbtx"
)

type linkKey struct {
	accountID int64
	provider  string
}

// InMemRepository enforces the same two uniqueness rules as the table: one
// link per account and provider, and one account per external identity.
type InMemRepository struct {
	mu     sync.Mutex
	links  map[linkKey]SocialAccount
	nextID int64
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{links: make(map[linkKey]SocialAccount)}
}

func (r *InMemRepository) FindByProviderAndExternalID(ctx context.Context, provider, externalID string) (*SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sa := range r.links {
		if sa.Provider == provider && sa.ExternalID == externalID {
			out := sa
			return &out, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (r *InMemRepository) UpsertForAccount(ctx context.Context, accountID int64, provider, externalID, email, name string) (*SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := linkKey{accountID: accountID, provider: provider}
	for k, sa := range r.links {
		if k != key && sa.Provider == provider && sa.ExternalID == externalID {
			return nil, &pgconn.PgError{Code: "23505", Message: "duplicate external identity"}
		}
	}

	now := time.Now().UTC()
	prev, existed := r.links[key]
	sa := prev
	if !existed {
		r.nextID++
		sa = SocialAccount{ID: r.nextID, AccountID: accountID, Provider: provider, CreatedAt: now}
	} else {
		sa.UpdatedAt = &now
	}
	sa.ExternalID = externalID
	sa.Email = &email
	sa.Name = &name
	r.links[key] = sa

	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.links[key] = prev
		} else {
			delete(r.links, key)
		}
	})
	out := sa
	return &out, nil
}
