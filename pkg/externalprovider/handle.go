package externalprovider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-access/pkg/account"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"github.com/tendant/simple-access/pkg/login"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

const DefaultStateTTL = 10 * time.Minute

// IdentityLogin issues a session for an account authenticated elsewhere.
// *login.Service implements it.
type IdentityLogin interface {
	LoginWithIdentity(ctx context.Context, acct *account.Account, sc device.SessionContext) (*login.LoginResult, error)
}

type Handle struct {
	providers   map[string]Provider
	states      StateStore
	stateTTL    time.Duration
	linker      *Linker
	logins      IdentityLogin
	cookies     tokengenerator.CookieSetter
	frontendURL string
}

type HandleOption func(*Handle)

func WithProviders(providers ...Provider) HandleOption {
	return func(h *Handle) {
		for _, p := range providers {
			h.providers[p.Name()] = p
		}
	}
}

func WithStateTTL(ttl time.Duration) HandleOption {
	return func(h *Handle) {
		if ttl > 0 {
			h.stateTTL = ttl
		}
	}
}

// NewHandle wires the social login endpoints. frontendURL receives the
// browser after a successful callback.
func NewHandle(linker *Linker, logins IdentityLogin, states StateStore, cookies tokengenerator.CookieSetter, frontendURL string, opts ...HandleOption) *Handle {
	h := &Handle{
		providers:   make(map[string]Provider),
		states:      states,
		stateTTL:    DefaultStateTTL,
		linker:      linker,
		logins:      logins,
		cookies:     cookies,
		frontendURL: frontendURL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handle) Routes(r chi.Router) {
	r.Get("/{provider}", h.Redirect)
	r.Get("/{provider}/callback", h.Callback)
}

func (h *Handle) provider(r *http.Request) (Provider, error) {
	name := chi.URLParam(r, "provider")
	p, ok := h.providers[name]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "unknown identity provider")
	}
	return p, nil
}

// GET /{provider}
func (h *Handle) Redirect(w http.ResponseWriter, r *http.Request) {
	p, err := h.provider(r)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}

	state, err := NewState()
	if err != nil {
		apperrors.WriteJSON(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error"))
		return
	}
	entry := StateEntry{Provider: p.Name(), CreatedAt: time.Now().UTC()}
	if err := h.states.Save(r.Context(), state, entry, h.stateTTL); err != nil {
		slog.Error("Failed to save oauth state", "provider", p.Name(), "err", err)
		apperrors.WriteJSON(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error"))
		return
	}

	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// GET /{provider}/callback
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	p, err := h.provider(r)
	if err != nil {
		apperrors.WriteJSON(w, r, err)
		return
	}

	result, err := h.complete(r, p)
	if err != nil {
		slog.Warn("Social login failed", "provider", p.Name(), "code", apperrors.GetCode(err), "err", err)
		apperrors.WriteJSON(w, r, err)
		return
	}

	target, err := url.Parse(h.frontendURL)
	if err != nil {
		apperrors.WriteJSON(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error"))
		return
	}
	q := target.Query()
	q.Set("access_token", result.AccessToken.Token)
	q.Set("token_type", "Bearer")
	target.RawQuery = q.Encode()

	h.cookies.SetCookie(w, result.RefreshToken.Token)
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handle) complete(r *http.Request, p Provider) (*login.LoginResult, error) {
	ctx := r.Context()
	query := r.URL.Query()

	if idpErr := query.Get("error"); idpErr != "" {
		return nil, apperrors.Validation("the provider rejected the authorization: " + idpErr)
	}
	code, state := query.Get("code"), query.Get("state")
	if code == "" {
		return nil, apperrors.Validation("missing authorization code")
	}
	if state == "" {
		return nil, apperrors.Validation("missing oauth state")
	}

	entry, err := h.states.Consume(ctx, state)
	if errors.Is(err, ErrStateNotFound) {
		return nil, apperrors.Validation("invalid or expired oauth state")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error")
	}
	if entry.Provider != p.Name() {
		return nil, apperrors.Validation("oauth state was issued for another provider")
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	info, err := p.UserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}
	acct, err := h.linker.Link(ctx, p.Name(), info)
	if err != nil {
		return nil, err
	}
	return h.logins.LoginWithIdentity(ctx, acct, device.FromRequest(r))
}
