package iam

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRepository reads the permission graph through database/sql. In
// production the *sql.DB wraps the shared pgx pool through the pgx stdlib
// driver, which encodes []int64 arguments as Postgres arrays.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const roleColumns = `r.id, r.nombre, r.descripcion, r.key_publico, r.id_aplicacion`

func (r *SQLRepository) GetRolesByAccount(ctx context.Context, accountID int64) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+`
		   FROM usuario_roles ur
		   JOIN roles r ON r.id = ur.id_rol
		  WHERE ur.id_usuario = $1
		    AND ur.deleted_at IS NULL
		    AND r.activo = 1 AND r.deleted_at IS NULL
		  ORDER BY r.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role := Role{SoftState: ActiveState()}
		if err := rows.Scan(&role.ID, &role.Nombre, &role.Descripcion, &role.KeyPublico, &role.ApplicationID); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return roles, nil
}

func (r *SQLRepository) GetRolesByAccounts(ctx context.Context, accountIDs []int64) (map[int64][]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ur.id_usuario, `+roleColumns+`
		   FROM usuario_roles ur
		   JOIN roles r ON r.id = ur.id_rol
		  WHERE ur.id_usuario = ANY($1)
		    AND ur.deleted_at IS NULL
		    AND r.activo = 1 AND r.deleted_at IS NULL
		  ORDER BY ur.id_usuario, r.id`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles in bulk: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Role)
	for rows.Next() {
		var accountID int64
		role := Role{SoftState: ActiveState()}
		if err := rows.Scan(&accountID, &role.ID, &role.Nombre, &role.Descripcion, &role.KeyPublico, &role.ApplicationID); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out[accountID] = append(out[accountID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetMenusByRoles(ctx context.Context, roleIDs []int64) ([]Menu, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT m.id, m.nombre, m.url_menu, m.ruta_front, m.icono, m.padre,
		        COALESCE(m.orden, 0), COALESCE(m.visible, 1) = 1, m.id_aplicacion
		   FROM menu m
		   JOIN permiso_menu pm ON pm.menu_id = m.id
		  WHERE pm.rol_id = ANY($1)
		    AND pm.activo = 1
		    AND m.activo = 1 AND m.deleted_at IS NULL`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query menus: %w", err)
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		m := Menu{SoftState: ActiveState()}
		if err := rows.Scan(&m.ID, &m.Nombre, &m.UrlMenu, &m.RutaFront, &m.Icono, &m.Padre,
			&m.Orden, &m.Visible, &m.ApplicationID); err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read menus: %w", err)
	}
	return menus, nil
}

func (r *SQLRepository) GetApisByRoles(ctx context.Context, roleIDs []int64) ([]Api, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT a.id, a.nombre, a.grupo, a.url_api, a.class_front, a.id_aplicacion
		   FROM api a
		   JOIN permiso_api pa ON pa.api_id = a.id
		  WHERE pa.rol_id = ANY($1)
		    AND pa.activo = 1
		    AND a.activo = 1 AND a.deleted_at IS NULL
		  ORDER BY a.id`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query apis: %w", err)
	}
	defer rows.Close()

	var apis []Api
	for rows.Next() {
		a := Api{SoftState: ActiveState()}
		if err := rows.Scan(&a.ID, &a.Nombre, &a.Grupo, &a.UrlApi, &a.ClassFront, &a.ApplicationID); err != nil {
			return nil, fmt.Errorf("failed to scan api: %w", err)
		}
		apis = append(apis, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read apis: %w", err)
	}
	return apis, nil
}

func (r *SQLRepository) GetApplicationsByRoles(ctx context.Context, roleIDs []int64) ([]Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT a.id, a.key, a.nombre, a.descripcion
		   FROM roles r
		   JOIN aplicaciones a ON a.id = r.id_aplicacion
		  WHERE r.id = ANY($1)
		    AND a.activo = 1 AND a.deleted_at IS NULL
		  ORDER BY a.id`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app := Application{SoftState: ActiveState()}
		if err := rows.Scan(&app.ID, &app.Key, &app.Nombre, &app.Descripcion); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read applications: %w", err)
	}
	return apps, nil
}
