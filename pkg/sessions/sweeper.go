package sessions

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes dead token records on a fixed interval. It runs outside
// request transactions; each delete is a single statement.
type Sweeper struct {
	repo       Repository
	interval   time.Duration
	revokedAge time.Duration
	now        func() time.Time

	// Observe, when set, receives the count of every successful sweep.
	Observe func(deleted int64)
}

func NewSweeper(repo Repository, interval, revokedAge time.Duration) *Sweeper {
	return &Sweeper{
		repo:       repo,
		interval:   interval,
		revokedAge: revokedAge,
		now:        time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		n, err := s.SweepOnce(ctx)
		if err != nil {
			slog.Error("Token sweep failed", "err", err)
		} else if s.Observe != nil {
			s.Observe(n)
		}
		select {
		case <-ctx.Done():
			slog.Info("Token sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce returns the number of deleted records.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := s.now().UTC()

	refresh, err := s.repo.DeleteExpiredRefreshTokens(ctx, now, now.Add(-s.revokedAge))
	if err != nil {
		return 0, err
	}
	access, err := s.repo.DeleteExpiredAccessTokens(ctx, now)
	if err != nil {
		return refresh, err
	}
	if refresh+access > 0 {
		slog.Info("Swept token records", "refresh", refresh, "access", access)
	}
	return refresh + access, nil
}
