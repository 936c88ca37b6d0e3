// Package login authenticates accounts and manages their token pairs.
//
// A successful login issues a short lived access token, returned in the
// response body, and a refresh token bound to the client device, returned
// only in an HttpOnly cookie scoped to the refresh endpoint. Each device
// holds one live refresh token; logging in again on the same device
// revokes the previous one.
//
// # Rotation and reuse
//
// Refresh redeems the refresh token once and rotates it. A refresh token
// that was already redeemed or revoked is treated as stolen: every refresh
// token of the owner is revoked and the caller gets TOKEN_REVOKED.
//
// # Bearer validation
//
// AuthMiddleware checks every request against the access token record, so
// logout and password resets take effect immediately:
//
//	r.Group(func(r chi.Router) {
//		r.Use(login.AuthMiddleware(loginService))
//		r.Get("/reports", reports)
//	})
//
// Handlers read the caller with AuthUserFromContext or AccountIDFromContext.
package login
