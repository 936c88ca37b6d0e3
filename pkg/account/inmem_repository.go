package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-access/pkg/dbtx"
)

// InMemRepository is an Account store for tests and local runs.
type InMemRepository struct {
	mu       sync.Mutex
	accounts map[int64]Account
	nextID   int64
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{accounts: make(map[int64]Account)}
}

// Add stores a copy of a and returns it with an id assigned when it had none.
func (r *InMemRepository) Add(a Account) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == 0 {
		r.nextID++
		a.ID = r.nextID
	} else if a.ID > r.nextID {
		r.nextID = a.ID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.accounts[a.ID] = a
	return &a
}

func (r *InMemRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *InMemRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(a Account) bool { return strings.ToLower(a.Email) == email })
}

func (r *InMemRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	username = strings.TrimSpace(username)
	return r.find(func(a Account) bool { return a.Username == username })
}

func (r *InMemRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	previous := a
	now := time.Now().UTC()
	a.PasswordHash = &passwordHash
	a.UpdatedAt = &now
	r.accounts[id] = a

	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.accounts[id] = previous
	})
	return nil
}

func (r *InMemRepository) find(match func(Account) bool) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}
