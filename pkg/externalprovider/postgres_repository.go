package externalprovider

import (
	"context"
	"fmt"

	"github.com/tendant/simple-access/pkg/dbtx"
)

const socialColumns = `id, id_persona, proveedor, id_usuario_proveedor, correo, nombre, created_at, updated_at`

// PostgresRepository stores links in the cuentas_sociales table.
type PostgresRepository struct {
	db dbtx.DBTX
}

func NewPostgresRepository(db dbtx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByProviderAndExternalID(ctx context.Context, provider, externalID string) (*SocialAccount, error) {
	sa, err := scanSocial(dbtx.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+socialColumns+` FROM cuentas_sociales
		  WHERE proveedor = $1 AND id_usuario_proveedor = $2 AND deleted_at IS NULL`,
		provider, externalID))
	if dbtx.IsNoRows(err) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find social account: %w", err)
	}
	return sa, nil
}

func (r *PostgresRepository) UpsertForAccount(ctx context.Context, accountID int64, provider, externalID, email, name string) (*SocialAccount, error) {
	sa, err := scanSocial(dbtx.Conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO cuentas_sociales (id_persona, proveedor, id_usuario_proveedor, correo, nombre)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id_persona, proveedor) DO UPDATE
		    SET id_usuario_proveedor = EXCLUDED.id_usuario_proveedor,
		        correo = EXCLUDED.correo,
		        nombre = EXCLUDED.nombre,
		        updated_at = NOW(),
		        deleted_at = NULL
		 RETURNING `+socialColumns,
		accountID, provider, externalID, email, name))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert social account: %w", err)
	}
	return sa, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSocial(row rowScanner) (*SocialAccount, error) {
	var sa SocialAccount
	if err := row.Scan(&sa.ID, &sa.AccountID, &sa.Provider, &sa.ExternalID, &sa.Email, &sa.Name, &sa.CreatedAt, &sa.UpdatedAt); err != nil {
		return nil, err
	}
	return &sa, nil
}
