package iam

import (
	"context"
	"sort"
	"sync"
	"time"
)

type grant struct {
	roleID   int64
	targetID int64
	active   bool
}

// InMemRepository holds the permission graph in memory for tests and local
// runs.
type InMemRepository struct {
	mu           sync.RWMutex
	roles        map[int64]*Role
	menus        map[int64]*Menu
	apis         map[int64]*Api
	applications map[int64]*Application
	assignments  map[int64][]int64
	menuGrants   []grant
	apiGrants    []grant
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		roles:        make(map[int64]*Role),
		menus:        make(map[int64]*Menu),
		apis:         make(map[int64]*Api),
		applications: make(map[int64]*Application),
		assignments:  make(map[int64][]int64),
	}
}

func (r *InMemRepository) AddRole(role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID] = &role
}

func (r *InMemRepository) AddMenu(menu Menu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.menus[menu.ID] = &menu
}

func (r *InMemRepository) AddApi(api Api) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apis[api.ID] = &api
}

func (r *InMemRepository) AddApplication(app Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applications[app.ID] = &app
}

// AssignRole gives accountID the role roleID.
func (r *InMemRepository) AssignRole(accountID, roleID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[accountID] = append(r.assignments[accountID], roleID)
}

// GrantMenu links a role to a menu. An inactive grant is stored but never
// resolved.
func (r *InMemRepository) GrantMenu(roleID, menuID int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.menuGrants = append(r.menuGrants, grant{roleID: roleID, targetID: menuID, active: active})
}

func (r *InMemRepository) GrantApi(roleID, apiID int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiGrants = append(r.apiGrants, grant{roleID: roleID, targetID: apiID, active: active})
}

// DeactivateMenu soft deletes a stored menu.
func (r *InMemRepository) DeactivateMenu(id int64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.menus[id]; ok {
		SoftDelete(m, at)
	}
}

// DeactivateRole soft deletes a stored role.
func (r *InMemRepository) DeactivateRole(id int64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[id]; ok {
		SoftDelete(role, at)
	}
}

// ReactivateRole undoes DeactivateRole.
func (r *InMemRepository) ReactivateRole(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[id]; ok {
		Reactivate(role)
	}
}

func (r *InMemRepository) GetRolesByAccount(ctx context.Context, accountID int64) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeRoles(accountID), nil
}

func (r *InMemRepository) GetRolesByAccounts(ctx context.Context, accountIDs []int64) (map[int64][]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64][]Role, len(accountIDs))
	for _, id := range accountIDs {
		if roles := r.activeRoles(id); len(roles) > 0 {
			out[id] = roles
		}
	}
	return out, nil
}

func (r *InMemRepository) activeRoles(accountID int64) []Role {
	var roles []Role
	seen := make(map[int64]bool)
	for _, id := range r.assignments[accountID] {
		role, ok := r.roles[id]
		if !ok || seen[id] || !role.IsActive() {
			continue
		}
		seen[id] = true
		roles = append(roles, *role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

func (r *InMemRepository) GetMenusByRoles(ctx context.Context, roleIDs []int64) ([]Menu, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Menu
	for _, id := range grantedTargets(r.menuGrants, roleIDs) {
		if m, ok := r.menus[id]; ok && m.IsActive() {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *InMemRepository) GetApisByRoles(ctx context.Context, roleIDs []int64) ([]Api, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Api
	for _, id := range grantedTargets(r.apiGrants, roleIDs) {
		if a, ok := r.apis[id]; ok && a.IsActive() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *InMemRepository) GetApplicationsByRoles(ctx context.Context, roleIDs []int64) ([]Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]bool)
	var out []Application
	for _, id := range roleIDs {
		role, ok := r.roles[id]
		if !ok || seen[role.ApplicationID] {
			continue
		}
		if app, ok := r.applications[role.ApplicationID]; ok && app.IsActive() {
			seen[app.ID] = true
			out = append(out, *app)
		}
	}
	return out, nil
}

func grantedTargets(grants []grant, roleIDs []int64) []int64 {
	wanted := make(map[int64]bool, len(roleIDs))
	for _, id := range roleIDs {
		wanted[id] = true
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, g := range grants {
		if g.active && wanted[g.roleID] && !seen[g.targetID] {
			seen[g.targetID] = true
			ids = append(ids, g.targetID)
		}
	}
	return ids
}
