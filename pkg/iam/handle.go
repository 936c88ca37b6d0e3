package iam

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

type Handle struct {
	svc       *Service
	accountID AccountIDFunc
}

func NewHandle(svc *Service, accountID AccountIDFunc) Handle {
	return Handle{svc: svc, accountID: accountID}
}

// Routes mounts the per-account permission views. The router must already
// authenticate the bearer.
func (h Handle) Routes(r chi.Router) {
	r.Get("/menus/by-user", h.MenusByUser)
	r.Get("/apis/by-user", h.ApisByUser)
}

// GET /menus/by-user
func (h Handle) MenusByUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(r.Context())
	if !ok {
		apperrors.WriteJSON(w, r, apperrors.Unauthorized("not authenticated"))
		return
	}
	forest, err := h.svc.GetEffectiveMenus(r.Context(), id)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	render.JSON(w, r, forest)
}

// GET /apis/by-user
func (h Handle) ApisByUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(r.Context())
	if !ok {
		apperrors.WriteJSON(w, r, apperrors.Unauthorized("not authenticated"))
		return
	}
	apis, err := h.svc.GetEffectiveApis(r.Context(), id)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	render.JSON(w, r, apis)
}
