package iam

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tendant/simple-access/pkg/account"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// Service resolves what an account may see and call from its roles.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetUserRoles(ctx context.Context, accountID int64) ([]Role, error) {
	roles, err := s.repo.GetRolesByAccount(ctx, accountID)
	if err != nil {
		slog.Error("Failed to load roles", "account_id", accountID, "err", err)
		return nil, apperrors.Persistence(err)
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// GetEffectiveMenus returns the menu forest reachable through the account's
// roles. An account without roles is refused.
func (s *Service) GetEffectiveMenus(ctx context.Context, accountID int64) ([]*MenuNode, error) {
	roles, err := s.GetUserRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, apperrors.Forbidden("user has no roles")
	}

	menus, err := s.repo.GetMenusByRoles(ctx, roleIDs(roles))
	if err != nil {
		slog.Error("Failed to load menus", "account_id", accountID, "err", err)
		return nil, apperrors.Persistence(err)
	}
	return BuildMenuForest(menus), nil
}

// GetEffectiveApis returns the distinct APIs granted to the account's roles.
func (s *Service) GetEffectiveApis(ctx context.Context, accountID int64) ([]Api, error) {
	roles, err := s.GetUserRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.apisForRoles(ctx, roleIDs(roles))
}

func (s *Service) apisForRoles(ctx context.Context, ids []int64) ([]Api, error) {
	if len(ids) == 0 {
		return []Api{}, nil
	}
	apis, err := s.repo.GetApisByRoles(ctx, ids)
	if err != nil {
		slog.Error("Failed to load apis", "err", err)
		return nil, apperrors.Persistence(err)
	}
	return distinctApis(apis), nil
}

// GetEffectiveApplications returns the distinct applications owning roleIDs.
func (s *Service) GetEffectiveApplications(ctx context.Context, roleIDs []int64) ([]Application, error) {
	if len(roleIDs) == 0 {
		return []Application{}, nil
	}
	apps, err := s.repo.GetApplicationsByRoles(ctx, roleIDs)
	if err != nil {
		slog.Error("Failed to load applications", "err", err)
		return nil, apperrors.Persistence(err)
	}
	return distinctApplications(apps), nil
}

// BulkResolveApplicationsForRoles is GetEffectiveApplications under the name
// used by account listings.
func (s *Service) BulkResolveApplicationsForRoles(ctx context.Context, roleIDs []int64) ([]Application, error) {
	return s.GetEffectiveApplications(ctx, roleIDs)
}

// BulkResolveRolesForAccounts maps every requested account to its roles.
// Accounts without roles map to an empty slice.
func (s *Service) BulkResolveRolesForAccounts(ctx context.Context, accountIDs []int64) (map[int64][]Role, error) {
	out := make(map[int64][]Role, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}
	found, err := s.repo.GetRolesByAccounts(ctx, accountIDs)
	if err != nil {
		slog.Error("Failed to load roles in bulk", "accounts", len(accountIDs), "err", err)
		return nil, apperrors.Persistence(err)
	}
	for _, id := range accountIDs {
		roles := found[id]
		if roles == nil {
			roles = []Role{}
		}
		out[id] = roles
	}
	return out, nil
}

// ResolveCompleteUserData gathers the profile, roles, flat menus, APIs and
// applications of acct.
func (s *Service) ResolveCompleteUserData(ctx context.Context, acct *account.Account) (*CompleteUserData, error) {
	roles, err := s.GetUserRoles(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	ids := roleIDs(roles)

	data := &CompleteUserData{
		User: UserSummary{
			ID:             acct.ID,
			Username:       acct.Username,
			Email:          acct.Email,
			Nombres:        acct.Nombres,
			Apellidos:      acct.Apellidos,
			NombreCompleto: acct.NombreCompleto(),
			Foto:           acct.Foto,
			Activo:         acct.Activo,
		},
		Roles:        roles,
		Menus:        []MenuEntry{},
		Apis:         []Api{},
		Aplicaciones: []Application{},
	}
	if len(ids) == 0 {
		return data, nil
	}

	menus, err := s.repo.GetMenusByRoles(ctx, ids)
	if err != nil {
		slog.Error("Failed to load menus", "account_id", acct.ID, "err", err)
		return nil, apperrors.Persistence(err)
	}
	data.Menus = flattenMenus(menus)

	if data.Apis, err = s.apisForRoles(ctx, ids); err != nil {
		return nil, err
	}
	if data.Aplicaciones, err = s.GetEffectiveApplications(ctx, ids); err != nil {
		return nil, err
	}
	return data, nil
}

// RequireRoles fails with FORBIDDEN unless the account holds one of names.
func (s *Service) RequireRoles(ctx context.Context, accountID int64, names ...string) error {
	roles, err := s.GetUserRoles(ctx, accountID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		for _, name := range names {
			if r.Nombre == name {
				return nil
			}
		}
	}
	slog.Warn("Role check denied", "account_id", accountID, "required", names)
	return apperrors.Forbidden("insufficient role")
}

// RequirePermissions fails with FORBIDDEN unless one of apiURLs is granted to
// the account.
func (s *Service) RequirePermissions(ctx context.Context, accountID int64, apiURLs ...string) error {
	apis, err := s.GetEffectiveApis(ctx, accountID)
	if err != nil {
		return err
	}
	for _, a := range apis {
		for _, url := range apiURLs {
			if a.UrlApi == url {
				return nil
			}
		}
	}
	slog.Warn("Permission check denied", "account_id", accountID, "required", apiURLs)
	return apperrors.Forbidden("insufficient permissions")
}

func roleIDs(roles []Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}

func distinctApis(apis []Api) []Api {
	seen := make(map[int64]bool, len(apis))
	out := make([]Api, 0, len(apis))
	for _, a := range apis {
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func distinctApplications(apps []Application) []Application {
	seen := make(map[int64]bool, len(apps))
	out := make([]Application, 0, len(apps))
	for _, a := range apps {
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
