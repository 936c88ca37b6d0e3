package iam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-access/pkg/account"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

const (
	adminAccount int64 = 1
	userAccount  int64 = 2
	noRoleAcct   int64 = 3
)

func i64(v int64) *int64 { return &v }
func str(v string) *string { return &v }

func menu(id int64, parent *int64, orden int) Menu {
	return Menu{ID: id, Nombre: "menu", UrlMenu: "/m", Padre: parent, Orden: orden, Visible: true, SoftState: ActiveState()}
}

// seedGraph builds two roles of one application. ADMIN sees menus 10, 11 and
// api /admin; USER sees menu 20 and api /profile.
func seedGraph(t *testing.T) *InMemRepository {
	t.Helper()
	repo := NewInMemRepository()
	repo.AddApplication(Application{ID: 7, Key: "portal", Nombre: "Portal", SoftState: ActiveState()})
	repo.AddRole(Role{ID: 100, Nombre: "ADMIN", ApplicationID: 7, SoftState: ActiveState()})
	repo.AddRole(Role{ID: 200, Nombre: "USER", ApplicationID: 7, SoftState: ActiveState()})

	repo.AddMenu(menu(10, nil, 1))
	repo.AddMenu(menu(11, i64(10), 1))
	repo.AddMenu(menu(20, nil, 2))
	repo.AddMenu(menu(30, nil, 3))

	repo.AddApi(Api{ID: 1, Nombre: "admin", UrlApi: "/admin", SoftState: ActiveState()})
	repo.AddApi(Api{ID: 2, Nombre: "profile", UrlApi: "/profile", SoftState: ActiveState()})

	repo.GrantMenu(100, 10, true)
	repo.GrantMenu(100, 11, true)
	repo.GrantMenu(200, 20, true)
	repo.GrantMenu(200, 30, false)
	repo.GrantApi(100, 1, true)
	repo.GrantApi(100, 2, true)
	repo.GrantApi(200, 2, true)

	repo.AssignRole(adminAccount, 100)
	repo.AssignRole(userAccount, 200)
	return repo
}

func forestIDs(nodes []*MenuNode) []int64 {
	var ids []int64
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestBuildMenuForestDropsOrphans(t *testing.T) {
	forest := BuildMenuForest([]Menu{menu(1, nil, 0), menu(2, i64(1), 0), menu(3, i64(99), 0)})

	require.Len(t, forest, 1)
	assert.Equal(t, int64(1), forest[0].ID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, int64(2), forest[0].Children[0].ID)
	assert.Empty(t, forest[0].Children[0].Children)
}

func TestBuildMenuForestOrdersSiblings(t *testing.T) {
	forest := BuildMenuForest([]Menu{
		menu(5, nil, 2),
		menu(4, nil, 1),
		menu(3, nil, 1),
		menu(9, i64(3), 5),
		menu(8, i64(3), 0),
	})

	assert.Equal(t, []int64{3, 4, 5}, forestIDs(forest))
	assert.Equal(t, []int64{8, 9}, forestIDs(forest[0].Children))
}

func TestBuildMenuForestDropsCycles(t *testing.T) {
	forest := BuildMenuForest([]Menu{
		menu(1, nil, 0),
		menu(4, i64(5), 0),
		menu(5, i64(4), 0),
		menu(6, i64(6), 0),
		menu(1, nil, 0),
	})

	assert.Equal(t, []int64{1}, forestIDs(forest))
}

func TestBuildMenuForestDefaultsIcon(t *testing.T) {
	withIcon := menu(2, nil, 1)
	withIcon.Icono = str("mdi:home")
	forest := BuildMenuForest([]Menu{menu(1, nil, 0), withIcon})

	assert.Equal(t, DefaultMenuIcon, forest[0].Icono)
	assert.Equal(t, "mdi:home", forest[1].Icono)

	raw, err := json.Marshal(forest[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"children":[]`)
}

func TestGetEffectiveMenus(t *testing.T) {
	svc := NewService(seedGraph(t))
	ctx := context.Background()

	forest, err := svc.GetEffectiveMenus(ctx, adminAccount)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, forestIDs(forest))
	assert.Equal(t, []int64{11}, forestIDs(forest[0].Children))

	forest, err = svc.GetEffectiveMenus(ctx, userAccount)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, forestIDs(forest), "inactive grant must not expose menu 30")
}

func TestGetEffectiveMenusWithoutRoles(t *testing.T) {
	svc := NewService(seedGraph(t))

	_, err := svc.GetEffectiveMenus(context.Background(), noRoleAcct)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
}

func TestInactiveMenuHidesSubtree(t *testing.T) {
	repo := seedGraph(t)
	repo.DeactivateMenu(10, time.Now())
	svc := NewService(repo)

	forest, err := svc.GetEffectiveMenus(context.Background(), adminAccount)
	require.NoError(t, err)
	assert.Empty(t, forest)
}

func TestGetEffectiveApisDistinct(t *testing.T) {
	repo := seedGraph(t)
	repo.AssignRole(adminAccount, 200)
	svc := NewService(repo)

	apis, err := svc.GetEffectiveApis(context.Background(), adminAccount)
	require.NoError(t, err)
	require.Len(t, apis, 2)
	assert.Equal(t, "/admin", apis[0].UrlApi)
	assert.Equal(t, "/profile", apis[1].UrlApi)

	apis, err = svc.GetEffectiveApis(context.Background(), noRoleAcct)
	require.NoError(t, err)
	assert.Empty(t, apis)
}

func TestRoleGates(t *testing.T) {
	svc := NewService(seedGraph(t))
	ctx := context.Background()

	assert.NoError(t, svc.RequireRoles(ctx, adminAccount, "ADMIN"))
	assert.NoError(t, svc.RequireRoles(ctx, userAccount, "ADMIN", "USER"))

	err := svc.RequireRoles(ctx, userAccount, "ADMIN")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	assert.NoError(t, svc.RequirePermissions(ctx, adminAccount, "/admin"))
	err = svc.RequirePermissions(ctx, userAccount, "/admin")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	err = svc.RequirePermissions(ctx, noRoleAcct, "/profile")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
}

func TestDeactivatedRoleLosesAccess(t *testing.T) {
	repo := seedGraph(t)
	svc := NewService(repo)
	ctx := context.Background()

	repo.DeactivateRole(100, time.Now())
	err := svc.RequireRoles(ctx, adminAccount, "ADMIN")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	repo.ReactivateRole(100)
	assert.NoError(t, svc.RequireRoles(ctx, adminAccount, "ADMIN"))
}

func TestBulkResolve(t *testing.T) {
	svc := NewService(seedGraph(t))
	ctx := context.Background()

	byAccount, err := svc.BulkResolveRolesForAccounts(ctx, []int64{adminAccount, userAccount, noRoleAcct})
	require.NoError(t, err)
	require.Len(t, byAccount, 3)
	assert.Equal(t, "ADMIN", byAccount[adminAccount][0].Nombre)
	assert.Equal(t, "USER", byAccount[userAccount][0].Nombre)
	assert.NotNil(t, byAccount[noRoleAcct])
	assert.Empty(t, byAccount[noRoleAcct])

	apps, err := svc.BulkResolveApplicationsForRoles(ctx, []int64{100, 200})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "portal", apps[0].Key)
}

func TestResolveCompleteUserData(t *testing.T) {
	svc := NewService(seedGraph(t))
	acct := &account.Account{ID: adminAccount, Username: "ana", Email: "ana@example.com", Nombres: str("Ana"), Apellidos: str("Diaz"), Activo: true}

	data, err := svc.ResolveCompleteUserData(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, "Ana Diaz", data.User.NombreCompleto)
	require.Len(t, data.Roles, 1)
	require.Len(t, data.Menus, 2)
	assert.Equal(t, int64(10), data.Menus[0].IDMenu)
	assert.Equal(t, i64(10), data.Menus[1].Padre)
	assert.Len(t, data.Apis, 2)
	assert.Len(t, data.Aplicaciones, 1)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"user", "roles", "menus", "apis", "aplicaciones"} {
		assert.Contains(t, decoded, key)
	}
	role := decoded["roles"].([]any)[0].(map[string]any)
	assert.Contains(t, role, "id_rol")
	assert.Contains(t, role, "key_publico")
	assert.NotContains(t, role, "Activo")
	m := decoded["menus"].([]any)[0].(map[string]any)
	assert.Contains(t, m, "id_menu")
	assert.Contains(t, m, "ruta_front")
	app := decoded["aplicaciones"].([]any)[0].(map[string]any)
	assert.Equal(t, "portal", app["key"])
}

func TestResolveCompleteUserDataWithoutRoles(t *testing.T) {
	svc := NewService(seedGraph(t))

	data, err := svc.ResolveCompleteUserData(context.Background(), &account.Account{ID: noRoleAcct, Username: "zoe", Activo: true})
	require.NoError(t, err)
	assert.Equal(t, "zoe", data.User.NombreCompleto)
	assert.Empty(t, data.Roles)
	assert.NotNil(t, data.Menus)
	assert.Empty(t, data.Apis)
}

func TestSoftDeleteKeepsFirstDeletion(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	role := Role{ID: 1, SoftState: ActiveState()}

	SoftDelete(&role, first)
	SoftDelete(&role, first.Add(time.Hour))
	assert.False(t, role.IsActive())
	assert.Equal(t, first, *role.DeletedAt)

	Reactivate(&role)
	assert.True(t, role.IsActive())
	assert.Nil(t, role.DeletedAt)

	acct := &account.Account{ID: 1, Activo: true}
	SoftDelete(acct, first)
	assert.False(t, acct.IsActive())
}

type ctxKey struct{}

func accountFromCtx(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

func withAccount(next http.Handler, id int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func TestGateMiddlewares(t *testing.T) {
	svc := NewService(seedGraph(t))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name    string
		handler http.Handler
		want    int
	}{
		{"anonymous", RequireRolesMiddleware(svc, accountFromCtx, "ADMIN")(ok), http.StatusUnauthorized},
		{"admin role", withAccount(RequireRolesMiddleware(svc, accountFromCtx, "ADMIN")(ok), adminAccount), http.StatusNoContent},
		{"user denied admin", withAccount(RequireRolesMiddleware(svc, accountFromCtx, "ADMIN")(ok), userAccount), http.StatusForbidden},
		{"user permission", withAccount(RequirePermissionsMiddleware(svc, accountFromCtx, "/profile")(ok), userAccount), http.StatusNoContent},
		{"user denied permission", withAccount(RequirePermissionsMiddleware(svc, accountFromCtx, "/admin")(ok), userAccount), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMenusByUserHandler(t *testing.T) {
	svc := NewService(seedGraph(t))
	r := chi.NewRouter()
	h := NewHandle(svc, accountFromCtx)

	for _, tc := range []struct {
		id   int64
		want int
	}{{adminAccount, http.StatusOK}, {noRoleAcct, http.StatusForbidden}} {
		sub := chi.NewRouter()
		h.Routes(sub)
		w := httptest.NewRecorder()
		withAccount(sub, tc.id).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/menus/by-user", nil))
		assert.Equal(t, tc.want, w.Code)
		if tc.want == http.StatusOK {
			var forest []MenuNode
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &forest))
			require.Len(t, forest, 1)
			assert.Equal(t, int64(10), forest[0].ID)
			assert.Len(t, forest[0].Children, 1)
		}
	}

	h.Routes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apis/by-user", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
