// Package account holds the Account entity and its store. Accounts are
// created by administrative tooling; this service only reads them and
// changes their password.
package account

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is a local identity. PasswordHash is nil for social-only accounts.
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"`
	Nombres      *string    `json:"nombres"`
	Apellidos    *string    `json:"apellidos"`
	Foto         *string    `json:"foto"`
	Activo       bool       `json:"activo"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// NombreCompleto joins first and last names, falling back to the username.
func (a *Account) NombreCompleto() string {
	switch {
	case a.Nombres != nil && *a.Nombres != "" && a.Apellidos != nil && *a.Apellidos != "":
		return *a.Nombres + " " + *a.Apellidos
	case a.Nombres != nil && *a.Nombres != "":
		return *a.Nombres
	case a.Apellidos != nil && *a.Apellidos != "":
		return *a.Apellidos
	}
	return a.Username
}

func (a *Account) IsActive() bool {
	return a.Activo && a.DeletedAt == nil
}

func (a *Account) Deactivate(at time.Time) {
	a.Activo = false
	a.DeletedAt = &at
}

func (a *Account) Reactivate() {
	a.Activo = true
	a.DeletedAt = nil
}

// Repository is the account store. Methods join the transaction bound to ctx.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
