package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-access/pkg/dbtx"
	"github.com/tendant/simple-access/pkg/device"
)

func refreshParams(accountID int64, deviceID string) SaveRefreshTokenParams {
	return SaveRefreshTokenParams{
		AccountID: accountID,
		JTI:       uuid.NewString(),
		TokenHash: "digest-" + uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour),
		IP:        "203.0.113.9",
		UserAgent: device.UserAgent{Browser: "Chrome 120", OS: "Windows 10", Device: device.ClassDesktop},
		DeviceID:  deviceID,
	}
}

func TestStartDeviceSessionKeepsOnePerDevice(t *testing.T) {
	repo := NewInMemRepository()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.StartDeviceSession(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)
	second, err := svc.StartDeviceSession(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)
	_, err = svc.StartDeviceSession(ctx, refreshParams(1, "phone"))
	require.NoError(t, err)
	_, err = svc.StartDeviceSession(ctx, refreshParams(2, "laptop"))
	require.NoError(t, err)

	active := repo.ActiveRefreshTokens(1, "laptop")
	require.Len(t, active, 1)
	assert.Equal(t, second.JTI, active[0].JTI)

	old, err := svc.RefreshToken(ctx, first.JTI)
	require.NoError(t, err)
	assert.True(t, old.IsRevoked)
	assert.NotNil(t, old.RevokedAt)

	assert.Len(t, repo.ActiveRefreshTokens(1, "phone"), 1)
	assert.Len(t, repo.ActiveRefreshTokens(2, "laptop"), 1)
}

func TestRevocationsAreIdempotent(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()

	rec, err := repo.SaveRefreshToken(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)
	n, err := repo.RevokeRefreshToken(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	first, err := repo.GetRefreshTokenByJTI(ctx, rec.JTI)
	require.NoError(t, err)

	n, err = repo.RevokeRefreshToken(ctx, rec.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	again, err := repo.GetRefreshTokenByJTI(ctx, rec.JTI)
	require.NoError(t, err)
	assert.Equal(t, first.RevokedAt, again.RevokedAt)

	n, err = repo.RevokeAllByAccount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevokeAll(t *testing.T) {
	repo := NewInMemRepository()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.RecordAccessToken(ctx, 1, "a1", time.Now().Add(time.Minute)))
	require.NoError(t, svc.RecordAccessToken(ctx, 2, "a2", time.Now().Add(time.Minute)))
	_, err := svc.StartDeviceSession(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, 1))

	active, err := svc.AccessTokenActive(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, active)
	active, err = svc.AccessTokenActive(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Empty(t, repo.ActiveRefreshTokens(1, "laptop"))

	active, err = svc.AccessTokenActive(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRecordAccessTokenValidates(t *testing.T) {
	svc := NewService(NewInMemRepository())
	ctx := context.Background()

	assert.Error(t, svc.RecordAccessToken(ctx, 1, "", time.Now().Add(time.Minute)))
	assert.Error(t, svc.RecordAccessToken(ctx, 1, "jti", time.Now().Add(-time.Minute)))
}

func TestRotateRollsBackAsOneUnit(t *testing.T) {
	repo := NewInMemRepository()
	svc := NewService(repo)
	runner := dbtx.NewMemRunner()
	ctx := context.Background()

	used, err := svc.StartDeviceSession(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)

	repo.FailOn["SaveRefreshToken"] = errors.New("disk full")
	err = runner.WithinTx(ctx, func(ctx context.Context) error {
		_, err := svc.Rotate(ctx, used, refreshParams(1, "laptop"))
		return err
	})
	require.Error(t, err)

	again, err := svc.RefreshToken(ctx, used.JTI)
	require.NoError(t, err)
	assert.False(t, again.IsRevoked, "the used token must stay live when its successor was not saved")
	assert.Len(t, repo.ActiveRefreshTokens(1, "laptop"), 1)
}

func TestRotateRejectsRevokedRecord(t *testing.T) {
	repo := NewInMemRepository()
	svc := NewService(repo)
	ctx := context.Background()

	used, err := svc.StartDeviceSession(ctx, refreshParams(1, "laptop"))
	require.NoError(t, err)
	_, err = svc.Rotate(ctx, used, refreshParams(1, "laptop"))
	require.NoError(t, err)

	// used still carries the stale IsRevoked=false read
	_, err = svc.Rotate(ctx, used, refreshParams(1, "laptop"))
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
	assert.Len(t, repo.ActiveRefreshTokens(1, "laptop"), 1)
}

func TestSweepOnce(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	expired := refreshParams(1, "a")
	expired.ExpiresAt = now.Add(-time.Minute)
	_, err := repo.SaveRefreshToken(ctx, expired)
	require.NoError(t, err)

	live, err := repo.SaveRefreshToken(ctx, refreshParams(1, "b"))
	require.NoError(t, err)

	staleRevoked, err := repo.SaveRefreshToken(ctx, refreshParams(1, "c"))
	require.NoError(t, err)
	repo.now = func() time.Time { return now.Add(-5 * time.Hour) }
	_, err = repo.RevokeRefreshToken(ctx, staleRevoked.ID)
	require.NoError(t, err)
	repo.now = func() time.Time { return now }

	freshRevoked, err := repo.SaveRefreshToken(ctx, refreshParams(1, "d"))
	require.NoError(t, err)
	_, err = repo.RevokeRefreshToken(ctx, freshRevoked.ID)
	require.NoError(t, err)

	require.NoError(t, repo.SaveAccessToken(ctx, 1, "old-access", now.Add(-time.Second)))

	sweeper := NewSweeper(repo, time.Hour, 4*time.Hour)
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = repo.GetRefreshTokenByJTI(ctx, live.JTI)
	assert.NoError(t, err)
	_, err = repo.GetRefreshTokenByJTI(ctx, freshRevoked.JTI)
	assert.NoError(t, err)
	_, err = repo.GetRefreshTokenByJTI(ctx, staleRevoked.JTI)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = repo.GetAccessTokenByJTI(ctx, "old-access")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSweeperStopsOnCancel(t *testing.T) {
	sweeper := NewSweeper(NewInMemRepository(), time.Millisecond, time.Hour)
	var sweeps atomic.Int64
	sweeper.Observe = func(int64) { sweeps.Add(1) }
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.GreaterOrEqual(t, sweeps.Load(), int64(1))
}
