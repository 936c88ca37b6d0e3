package passwordreset

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

type ResetRequestJSONRequestBody struct {
	Email string `json:"email"`
}

type ResetConfirmJSONRequestBody struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

type ResetResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

type Handle struct {
	service *Service
}

func NewHandle(service *Service) Handle {
	return Handle{service: service}
}

// Routes mounts the reset endpoints under the auth router.
func (h Handle) Routes(r chi.Router) {
	r.Post("/password-reset/request", h.PostResetRequest)
	r.Post("/password-reset/confirm", h.PostResetConfirm)
}

// PostResetRequest answers the same way whether or not the email exists.
// (POST /password-reset/request)
func (h Handle) PostResetRequest(w http.ResponseWriter, r *http.Request) {
	var body ResetRequestJSONRequestBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		apperrors.WriteJSON(w, r, apperrors.Validation("invalid request body"))
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" || !strings.Contains(email, "@") {
		apperrors.WriteJSON(w, r, apperrors.Validation("a valid email is required"))
		return
	}

	sc := device.FromRequest(r)
	if err := h.service.RequestResetByEmail(r.Context(), email, sc.IP, sc.UserAgent); err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}

	render.JSON(w, r, ResetResponse{
		Message: "If an account exists for that email, a reset link has been sent.",
		Email:   email,
	})
}

// (POST /password-reset/confirm)
func (h Handle) PostResetConfirm(w http.ResponseWriter, r *http.Request) {
	var body ResetConfirmJSONRequestBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		apperrors.WriteJSON(w, r, apperrors.Validation("invalid request body"))
		return
	}
	if body.ResetToken == "" || body.NewPassword == "" {
		apperrors.WriteJSON(w, r, apperrors.Validation("reset_token and new_password are required"))
		return
	}

	acc, err := h.service.ConfirmReset(r.Context(), body.ResetToken, body.NewPassword)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}

	render.JSON(w, r, ResetResponse{
		Message: "Password updated for " + acc.Username,
		Email:   acc.Email,
	})
}
