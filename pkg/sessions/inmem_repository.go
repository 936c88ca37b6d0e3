package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tendant/simple-access/pkg/dbtx"
)

// InMemRepository keeps token records in maps. Writes made inside a
// dbtx.MemRunner transaction are undone when the transaction fails.
type InMemRepository struct {
	mu      sync.Mutex
	access  map[string]AccessTokenRecord
	refresh map[int64]RefreshTokenRecord
	nextID  int64
	now     func() time.Time

	// FailOn makes the named method return an error, for rollback tests.
	FailOn map[string]error
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		access:  make(map[string]AccessTokenRecord),
		refresh: make(map[int64]RefreshTokenRecord),
		now:     func() time.Time { return time.Now().UTC() },
		FailOn:  make(map[string]error),
	}
}

func (r *InMemRepository) fail(op string) error {
	if err, ok := r.FailOn[op]; ok {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func (r *InMemRepository) SaveAccessToken(ctx context.Context, accountID int64, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("SaveAccessToken"); err != nil {
		return err
	}
	if _, exists := r.access[jti]; exists {
		return fmt.Errorf("failed to save access token: duplicate jti %s", jti)
	}
	r.nextID++
	r.access[jti] = AccessTokenRecord{
		ID:        r.nextID,
		AccountID: accountID,
		JTI:       jti,
		CreatedAt: r.now(),
		ExpiresAt: expiresAt,
	}
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.access, jti)
	})
	return nil
}

func (r *InMemRepository) GetAccessTokenByJTI(ctx context.Context, jti string) (*AccessTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.access[jti]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &rec, nil
}

func (r *InMemRepository) RevokeAllAccessTokensByAccount(ctx context.Context, accountID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("RevokeAllAccessTokensByAccount"); err != nil {
		return 0, err
	}
	now := r.now()
	var revoked []string
	for jti, rec := range r.access {
		if rec.AccountID == accountID && !rec.IsRevoked {
			rec.IsRevoked = true
			rec.RevokedAt = &now
			r.access[jti] = rec
			revoked = append(revoked, jti)
		}
	}
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, jti := range revoked {
			rec := r.access[jti]
			rec.IsRevoked = false
			rec.RevokedAt = nil
			r.access[jti] = rec
		}
	})
	return int64(len(revoked)), nil
}

func (r *InMemRepository) SaveRefreshToken(ctx context.Context, p SaveRefreshTokenParams) (*RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("SaveRefreshToken"); err != nil {
		return nil, err
	}
	for _, rec := range r.refresh {
		if rec.JTI == p.JTI {
			return nil, fmt.Errorf("failed to save refresh token: duplicate jti %s", p.JTI)
		}
	}
	r.nextID++
	rec := RefreshTokenRecord{
		ID:        r.nextID,
		AccountID: p.AccountID,
		JTI:       p.JTI,
		TokenHash: p.TokenHash,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		DeviceID:  p.DeviceID,
		CreatedAt: r.now(),
		ExpiresAt: p.ExpiresAt,
	}
	r.refresh[rec.ID] = rec
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.refresh, rec.ID)
	})
	return &rec, nil
}

func (r *InMemRepository) GetRefreshTokenByJTI(ctx context.Context, jti string) (*RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.refresh {
		if rec.JTI == jti {
			return &rec, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (r *InMemRepository) RevokeRefreshTokenByDevice(ctx context.Context, accountID int64, deviceID string) (int64, error) {
	if err := r.fail("RevokeRefreshTokenByDevice"); err != nil {
		return 0, err
	}
	return r.revokeWhere(ctx, func(rec RefreshTokenRecord) bool {
		return rec.AccountID == accountID && rec.DeviceID == deviceID
	}), nil
}

func (r *InMemRepository) RevokeRefreshToken(ctx context.Context, id int64) (int64, error) {
	if err := r.fail("RevokeRefreshToken"); err != nil {
		return 0, err
	}
	return r.revokeWhere(ctx, func(rec RefreshTokenRecord) bool { return rec.ID == id }), nil
}

func (r *InMemRepository) RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	if err := r.fail("RevokeAllByAccount"); err != nil {
		return 0, err
	}
	return r.revokeWhere(ctx, func(rec RefreshTokenRecord) bool { return rec.AccountID == accountID }), nil
}

func (r *InMemRepository) revokeWhere(ctx context.Context, match func(RefreshTokenRecord) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var revoked []int64
	for id, rec := range r.refresh {
		if !rec.IsRevoked && match(rec) {
			rec.IsRevoked = true
			rec.RevokedAt = &now
			r.refresh[id] = rec
			revoked = append(revoked, id)
		}
	}
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, id := range revoked {
			rec := r.refresh[id]
			rec.IsRevoked = false
			rec.RevokedAt = nil
			r.refresh[id] = rec
		}
	})
	return int64(len(revoked))
}

func (r *InMemRepository) DeleteExpiredRefreshTokens(ctx context.Context, before, revokedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.refresh {
		expired := !rec.ExpiresAt.After(before)
		staleRevoked := rec.IsRevoked && rec.RevokedAt != nil && !rec.RevokedAt.After(revokedBefore)
		if expired || staleRevoked {
			delete(r.refresh, id)
			n++
		}
	}
	return n, nil
}

func (r *InMemRepository) DeleteExpiredAccessTokens(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for jti, rec := range r.access {
		if !rec.ExpiresAt.After(before) {
			delete(r.access, jti)
			n++
		}
	}
	return n, nil
}

// ActiveRefreshTokens lists the live refresh records of an account on a device.
func (r *InMemRepository) ActiveRefreshTokens(accountID int64, deviceID string) []RefreshTokenRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []RefreshTokenRecord
	for _, rec := range r.refresh {
		if rec.AccountID == accountID && rec.DeviceID == deviceID && !rec.IsRevoked {
			out = append(out, rec)
		}
	}
	return out
}
