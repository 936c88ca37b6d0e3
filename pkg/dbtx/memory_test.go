package dbtx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemRunnerRollsBackInReverseOrder(t *testing.T) {
	runner := NewMemRunner()
	var order []int

	err := runner.WithinTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, 1) })
		OnRollback(ctx, func() { order = append(order, 2) })
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
}

func TestMemRunnerCommitSkipsUndo(t *testing.T) {
	runner := NewMemRunner()
	called := false

	err := runner.WithinTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { called = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called)
}

func TestMemRunnerNestedJoinsOuter(t *testing.T) {
	runner := NewMemRunner()
	undone := 0

	err := runner.WithinTx(context.Background(), func(ctx context.Context) error {
		inner := runner.WithinTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { undone++ })
			return nil
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})

	require.Error(t, err)
	assert.Equal(t, 1, undone)
}

func TestOnRollbackOutsideTxIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		OnRollback(context.Background(), func() { t.Fatal("must not run") })
	})
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}

func TestMemRunnerRollsBackOnPanic(t *testing.T) {
	runner := NewMemRunner()
	undone := false

	assert.PanicsWithValue(t, "boom", func() {
		_ = runner.WithinTx(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = true })
			panic("boom")
		})
	})
	assert.True(t, undone)

	// the runner lock was released
	require.NoError(t, runner.WithinTx(context.Background(), func(ctx context.Context) error { return nil }))
}
