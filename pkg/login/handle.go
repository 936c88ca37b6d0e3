package login

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

type PostLoginJSONRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse is the public view of the current account.
type MeResponse struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Nombres        *string `json:"nombres"`
	Apellidos      *string `json:"apellidos"`
	NombreCompleto string  `json:"nombre_completo"`
	Foto           *string `json:"foto"`
	Activo         bool    `json:"activo"`
}

type Handle struct {
	service *Service
	cookies tokengenerator.CookieSetter
	limit   func(http.Handler) http.Handler
}

type HandleOption func(*Handle)

// WithRateLimit wraps the credential endpoints (login, login-form, refresh)
// with mw.
func WithRateLimit(mw func(http.Handler) http.Handler) HandleOption {
	return func(h *Handle) { h.limit = mw }
}

func NewHandle(service *Service, cookies tokengenerator.CookieSetter, opts ...HandleOption) Handle {
	h := Handle{service: service, cookies: cookies}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Routes mounts the login endpoints under the auth router.
func (h Handle) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/login", h.PostLogin)
		r.Post("/login-form", h.PostLoginForm)
		r.Post("/refresh", h.PostRefresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.service))
		r.Get("/logout", h.GetLogout)
		r.Get("/me", h.GetMe)
		r.Get("/me/complete", h.GetMeComplete)
	})
}

func (h Handle) writeTokens(w http.ResponseWriter, r *http.Request, result *LoginResult) {
	h.cookies.SetCookie(w, result.RefreshToken.Token)
	render.JSON(w, r, TokenResponse{
		AccessToken: result.AccessToken.Token,
		TokenType:   "Bearer",
	})
}

// Login with email and password
// (POST /login)
func (h Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var body PostLoginJSONRequestBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		apperrors.WriteJSON(w, r, apperrors.Validation("invalid request body"))
		return
	}
	if body.Email == "" || body.Password == "" {
		apperrors.WriteJSON(w, r, apperrors.Validation("email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password, device.FromRequest(r))
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	h.writeTokens(w, r, result)
}

// Login with a form post for OAuth2 password grant style clients
// (POST /login-form)
func (h Handle) PostLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apperrors.WriteJSON(w, r, apperrors.Validation("invalid form body"))
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		apperrors.WriteJSON(w, r, apperrors.Validation("username and password are required"))
		return
	}

	result, err := h.service.LoginWithUsername(r.Context(), username, password, device.FromRequest(r))
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	h.writeTokens(w, r, result)
}

// Rotate the refresh cookie
// (POST /refresh)
func (h Handle) PostRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(tokengenerator.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		apperrors.WriteJSON(w, r, apperrors.Unauthorized("missing refresh token"))
		return
	}

	result, err := h.service.Refresh(r.Context(), cookie.Value, device.FromRequest(r))
	if err != nil {
		if apperrors.IsTokenFailure(err) {
			h.cookies.ClearCookie(w)
		}
		apperrors.WriteJSON(w, r, err)
		return
	}
	h.writeTokens(w, r, result)
}

// (GET /logout)
func (h Handle) GetLogout(w http.ResponseWriter, r *http.Request) {
	user, _ := AuthUserFromContext(r.Context())
	if err := h.service.Logout(r.Context(), user.AccountID); err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	slog.Info("Logged out", "user", user)
	h.cookies.ClearCookie(w)
	render.JSON(w, r, MessageResponse{Message: "Logged out"})
}

// (GET /me)
func (h Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	user, _ := AuthUserFromContext(r.Context())

	var resp MeResponse
	if err := copier.Copy(&resp, user.Account); err != nil {
		apperrors.WriteJSON(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error"))
		return
	}
	resp.NombreCompleto = user.Account.NombreCompleto()
	render.JSON(w, r, resp)
}

// (GET /me/complete)
func (h Handle) GetMeComplete(w http.ResponseWriter, r *http.Request) {
	user, _ := AuthUserFromContext(r.Context())

	data, err := h.service.CompleteUserData(r.Context(), user.Account)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}
	render.JSON(w, r, data)
}
