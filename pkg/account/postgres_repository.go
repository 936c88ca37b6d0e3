package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-access/pkg/dbtx"
)

const selectAccount = `
	SELECT id, username, email, hash_clave, nombres, apellidos, foto,
	       activo = 1, created_at, updated_at, deleted_at
	FROM usuarios`

// PostgresRepository reads accounts from the usuarios table.
type PostgresRepository struct {
	db dbtx.DBTX
}

func NewPostgresRepository(db dbtx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE username = $1`, strings.TrimSpace(username))
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := dbtx.Conn(ctx, r.db).Exec(ctx,
		`UPDATE usuarios SET hash_clave = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg interface{}) (*Account, error) {
	var a Account
	err := dbtx.Conn(ctx, r.db).QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Nombres,
		&a.Apellidos,
		&a.Foto,
		&a.Activo,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeletedAt,
	)
	if err != nil {
		if dbtx.IsNoRows(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
