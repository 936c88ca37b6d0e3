package login

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-access/pkg/account"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// AuthUser is the caller behind a validated access token. Roles is the
// snapshot embedded in the token at issuance.
type AuthUser struct {
	AccountID int64            `json:"user_id"`
	Roles     []string         `json:"roles"`
	JTI       string           `json:"-"`
	Account   *account.Account `json:"-"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("user", i.AccountID),
		slog.Any("roles", i.Roles),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "access context value " + k.name
}

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// WithAuthUser returns a copy of ctx carrying u.
func WithAuthUser(ctx context.Context, u *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, u)
}

func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	u, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return u, ok && u != nil
}

// AccountIDFromContext matches iam.AccountIDFunc.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	u, ok := AuthUserFromContext(ctx)
	if !ok {
		return 0, false
	}
	return u.AccountID, true
}

// Authenticator validates a bearer token. *Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*AuthUser, error)
}

// AuthMiddleware rejects requests without a live access token and stores
// the resolved AuthUser in the request context.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := jwtauth.TokenFromHeader(r)
			if bearer == "" {
				apperrors.WriteJSON(w, r, apperrors.Unauthorized("missing bearer token"))
				return
			}

			user, err := auth.Authenticate(r.Context(), bearer)
			if err != nil {
				slog.Debug("Rejected bearer token", "code", apperrors.GetCode(err), "path", r.URL.Path)
				apperrors.WriteJSON(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}
