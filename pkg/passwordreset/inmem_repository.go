package passwordreset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tendant/simple-access/pkg/dbtx"
)

type InMemRepository struct {
	mu      sync.Mutex
	records map[int64]ResetTokenRecord
	nextID  int64
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{records: make(map[int64]ResetTokenRecord)}
}

func (r *InMemRepository) Save(ctx context.Context, p SaveParams) (*ResetTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.JTI == p.JTI {
			return nil, fmt.Errorf("failed to save reset token: duplicate jti %s", p.JTI)
		}
	}
	r.nextID++
	rec := ResetTokenRecord{
		ID:        r.nextID,
		AccountID: p.AccountID,
		JTI:       p.JTI,
		TokenHash: p.TokenHash,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: p.ExpiresAt,
	}
	r.records[rec.ID] = rec
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.records, rec.ID)
	})
	return &rec, nil
}

func (r *InMemRepository) GetByJTI(ctx context.Context, jti string) (*ResetTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.JTI == jti {
			return &rec, nil
		}
	}
	return nil, ErrResetTokenNotFound
}

func (r *InMemRepository) MarkUsed(ctx context.Context, id int64) (bool, error) {
	n := r.markWhere(ctx, func(rec ResetTokenRecord) bool { return rec.ID == id })
	return n == 1, nil
}

func (r *InMemRepository) MarkOutstandingUsed(ctx context.Context, accountID int64) (int64, error) {
	return r.markWhere(ctx, func(rec ResetTokenRecord) bool { return rec.AccountID == accountID }), nil
}

func (r *InMemRepository) markWhere(ctx context.Context, match func(ResetTokenRecord) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var marked []int64
	for id, rec := range r.records {
		if rec.UsedAt == nil && match(rec) {
			rec.UsedAt = &now
			r.records[id] = rec
			marked = append(marked, id)
		}
	}
	dbtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, id := range marked {
			rec := r.records[id]
			rec.UsedAt = nil
			r.records[id] = rec
		}
	})
	return int64(len(marked))
}
