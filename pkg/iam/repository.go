package iam

import "context"

// Repository is the read side of the permission graph. Every method returns
// active rows only: soft deleted roles, menus, APIs and applications, and
// inactive grants, are filtered out by the store.
type Repository interface {
	GetRolesByAccount(ctx context.Context, accountID int64) ([]Role, error)
	GetRolesByAccounts(ctx context.Context, accountIDs []int64) (map[int64][]Role, error)
	GetMenusByRoles(ctx context.Context, roleIDs []int64) ([]Menu, error)
	GetApisByRoles(ctx context.Context, roleIDs []int64) ([]Api, error)
	GetApplicationsByRoles(ctx context.Context, roleIDs []int64) ([]Application, error)
}
