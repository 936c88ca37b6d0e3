package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-access/pkg/dbtx"
)

func strPtr(s string) *string { return &s }

func TestNombreCompleto(t *testing.T) {
	tests := []struct {
		name string
		acc  Account
		want string
	}{
		{"both names", Account{Username: "ana", Nombres: strPtr("Ana"), Apellidos: strPtr("Pérez")}, "Ana Pérez"},
		{"first only", Account{Username: "ana", Nombres: strPtr("Ana")}, "Ana"},
		{"last only", Account{Username: "ana", Apellidos: strPtr("Pérez")}, "Pérez"},
		{"username fallback", Account{Username: "ana", Nombres: strPtr("")}, "ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.acc.NombreCompleto())
		})
	}
}

func TestSoftDelete(t *testing.T) {
	a := Account{Activo: true}
	assert.True(t, a.IsActive())

	a.Deactivate(time.Now())
	assert.False(t, a.IsActive())
	assert.NotNil(t, a.DeletedAt)

	a.Reactivate()
	assert.True(t, a.IsActive())
	assert.Nil(t, a.DeletedAt)
}

func TestInMemLookups(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	added := repo.Add(Account{Username: "ana", Email: "Ana@Example.com", Activo: true})

	byEmail, err := repo.GetByEmail(ctx, " ana@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, added.ID, byEmail.ID)

	byName, err := repo.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, added.ID, byName.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInMemUpdatePasswordRollsBack(t *testing.T) {
	repo := NewInMemRepository()
	runner := dbtx.NewMemRunner()
	ctx := context.Background()
	a := repo.Add(Account{Username: "ana", Email: "ana@example.com", PasswordHash: strPtr("old"), Activo: true})

	err := runner.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.UpdatePassword(ctx, a.ID, "new"))
		return errors.New("later step failed")
	})
	require.Error(t, err)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", *got.PasswordHash)

	require.NoError(t, runner.WithinTx(ctx, func(ctx context.Context) error {
		return repo.UpdatePassword(ctx, a.ID, "new")
	}))
	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", *got.PasswordHash)
}
