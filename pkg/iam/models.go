package iam

import (
	"time"

	"github.com/tendant/simple-access/pkg/account"
)

// DefaultMenuIcon is rendered for menu entries stored without an icon.
const DefaultMenuIcon = "solar:layers-line-duotone"

// SoftDeletable is implemented by every entity that is deactivated instead of
// removed.
type SoftDeletable interface {
	IsActive() bool
	Deactivate(at time.Time)
	Reactivate()
}

var (
	_ SoftDeletable = (*Role)(nil)
	_ SoftDeletable = (*Menu)(nil)
	_ SoftDeletable = (*Api)(nil)
	_ SoftDeletable = (*Application)(nil)
	_ SoftDeletable = (*account.Account)(nil)
)

// SoftDelete deactivates e at the given instant. Deactivating an inactive
// entity keeps its original deletion time.
func SoftDelete(e SoftDeletable, at time.Time) {
	if e.IsActive() {
		e.Deactivate(at)
	}
}

// Reactivate makes e active again.
func Reactivate(e SoftDeletable) {
	e.Reactivate()
}

// ActiveState is the SoftState of a live entity.
func ActiveState() SoftState { return SoftState{Activo: true} }

// SoftState carries the activo flag and deletion time shared by soft
// deletable entities.
type SoftState struct {
	Activo    bool       `json:"-"`
	DeletedAt *time.Time `json:"-"`
}

func (s *SoftState) IsActive() bool { return s.Activo && s.DeletedAt == nil }

func (s *SoftState) Deactivate(at time.Time) {
	s.Activo = false
	s.DeletedAt = &at
}

func (s *SoftState) Reactivate() {
	s.Activo = true
	s.DeletedAt = nil
}

// Role is a named permission bundle owned by an application.
type Role struct {
	ID            int64   `json:"id_rol"`
	Nombre        string  `json:"nombre"`
	Descripcion   *string `json:"descripcion"`
	KeyPublico    *string `json:"key_publico"`
	ApplicationID int64   `json:"id_aplicacion"`
	SoftState
}

// Menu is a UI navigation entry. Padre points at the parent menu.
type Menu struct {
	ID            int64
	Nombre        string
	UrlMenu       string
	RutaFront     *string
	Icono         *string
	Padre         *int64
	Orden         int
	Visible       bool
	ApplicationID int64
	SoftState
}

// Api is a backend endpoint a role may call.
type Api struct {
	ID            int64   `json:"id_api"`
	Nombre        string  `json:"nombre"`
	Grupo         *string `json:"grupo"`
	UrlApi        string  `json:"url_api"`
	ClassFront    *string `json:"class_front"`
	ApplicationID int64   `json:"-"`
	SoftState
}

// Application groups roles, menus and APIs of one client product.
type Application struct {
	ID          int64   `json:"id_aplicacion"`
	Key         string  `json:"key"`
	Nombre      string  `json:"nombre"`
	Descripcion *string `json:"descripcion"`
	SoftState
}

// MenuNode is one rendered entry of the effective menu forest.
type MenuNode struct {
	ID        int64       `json:"id"`
	Nombre    string      `json:"nombre"`
	UrlMenu   string      `json:"url_menu"`
	RutaFront *string     `json:"ruta_front"`
	Icono     string      `json:"icono"`
	Padre     *int64      `json:"padre"`
	Orden     int         `json:"orden"`
	Children  []*MenuNode `json:"children"`
}

// MenuEntry is the flat menu shape of CompleteUserData.
type MenuEntry struct {
	IDMenu    int64   `json:"id_menu"`
	Nombre    string  `json:"nombre"`
	UrlMenu   string  `json:"url_menu"`
	RutaFront *string `json:"ruta_front"`
	Padre     *int64  `json:"padre"`
}

type UserSummary struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Nombres        *string `json:"nombres"`
	Apellidos      *string `json:"apellidos"`
	NombreCompleto string  `json:"nombre_completo"`
	Foto           *string `json:"foto"`
	Activo         bool    `json:"activo"`
}

// CompleteUserData is everything a client needs to render a session.
type CompleteUserData struct {
	User         UserSummary   `json:"user"`
	Roles        []Role        `json:"roles"`
	Menus        []MenuEntry   `json:"menus"`
	Apis         []Api         `json:"apis"`
	Aplicaciones []Application `json:"aplicaciones"`
}
