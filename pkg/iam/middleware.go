package iam

import (
	"context"
	"net/http"

	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// AccountIDFunc reads the authenticated account id from a request context.
// The bearer middleware of the login package provides one.
type AccountIDFunc func(ctx context.Context) (int64, bool)

// RequireRolesMiddleware lets a request through only when the authenticated
// account holds one of names.
func RequireRolesMiddleware(svc *Service, accountID AccountIDFunc, names ...string) func(http.Handler) http.Handler {
	return gate(accountID, func(ctx context.Context, id int64) error {
		return svc.RequireRoles(ctx, id, names...)
	})
}

// RequirePermissionsMiddleware lets a request through only when one of
// apiURLs is granted to the authenticated account.
func RequirePermissionsMiddleware(svc *Service, accountID AccountIDFunc, apiURLs ...string) func(http.Handler) http.Handler {
	return gate(accountID, func(ctx context.Context, id int64) error {
		return svc.RequirePermissions(ctx, id, apiURLs...)
	})
}

func gate(accountID AccountIDFunc, check func(ctx context.Context, id int64) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := accountID(r.Context())
			if !ok {
				apperrors.WriteJSON(w, r, apperrors.Unauthorized("not authenticated"))
				return
			}
			if err := check(r.Context(), id); err != nil {
				apperrors.WriteJSON(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
