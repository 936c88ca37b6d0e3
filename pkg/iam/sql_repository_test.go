package iam

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// arrayConverter hands slice arguments to the mock untouched, as the pgx
// stdlib driver does.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	return v, nil
}

func newMockRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db), mock
}

func TestSQLRepositoryRolesByAccount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM usuario_roles ur").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "descripcion", "key_publico", "id_aplicacion"}).
			AddRow(int64(1), "ADMIN", "administrators", nil, int64(7)).
			AddRow(int64(2), "USER", nil, "user", int64(7)))

	roles, err := repo.GetRolesByAccount(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "ADMIN", roles[0].Nombre)
	require.NotNil(t, roles[0].Descripcion)
	assert.Equal(t, "administrators", *roles[0].Descripcion)
	assert.Nil(t, roles[0].KeyPublico)
	assert.Nil(t, roles[1].Descripcion)
	assert.True(t, roles[1].IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryRolesByAccounts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("WHERE ur.id_usuario = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id_usuario", "id", "nombre", "descripcion", "key_publico", "id_aplicacion"}).
			AddRow(int64(1), int64(10), "ADMIN", nil, nil, int64(7)).
			AddRow(int64(1), int64(11), "USER", nil, nil, int64(7)).
			AddRow(int64(2), int64(11), "USER", nil, nil, int64(7)))

	out, err := repo.GetRolesByAccounts(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, out[1], 2)
	assert.Len(t, out[2], 1)
	assert.NotContains(t, out, int64(3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryMenusFeedForest(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("JOIN permiso_menu pm").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "url_menu", "ruta_front", "icono", "padre", "orden", "visible", "id_aplicacion"}).
			AddRow(int64(2), "child", "/a/b", "/front/b", nil, int64(1), int64(0), true, int64(7)).
			AddRow(int64(1), "root", "/a", nil, "mdi:home", nil, int64(0), true, int64(7)).
			AddRow(int64(3), "orphan", "/c", nil, nil, int64(99), int64(0), false, int64(7)))

	menus, err := repo.GetMenusByRoles(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, menus, 3)
	assert.Nil(t, menus[1].Padre)
	assert.False(t, menus[2].Visible)

	forest := BuildMenuForest(menus)
	require.Len(t, forest, 1)
	assert.Equal(t, "mdi:home", forest[0].Icono)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "/front/b", *forest[0].Children[0].RutaFront)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryApisAndApplications(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("JOIN permiso_api pa").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "grupo", "url_api", "class_front", "id_aplicacion"}).
			AddRow(int64(4), "list users", "users", "/api/v1/users", "btn-list", int64(7)))
	mock.ExpectQuery("JOIN aplicaciones a").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "nombre", "descripcion"}).
			AddRow(int64(7), "portal", "Portal", nil))

	apis, err := repo.GetApisByRoles(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, apis, 1)
	assert.Equal(t, "/api/v1/users", apis[0].UrlApi)
	assert.Equal(t, "users", *apis[0].Grupo)

	apps, err := repo.GetApplicationsByRoles(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "portal", apps[0].Key)
	assert.Nil(t, apps[0].Descripcion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryErrorsBecomePersistenceFailures(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery("FROM usuario_roles ur").WithArgs(int64(1)).WillReturnError(boom)

	svc := NewService(repo)
	_, err := svc.GetUserRoles(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistence))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
