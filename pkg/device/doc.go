// Package device derives the session context of a request: client IP,
// user-agent breakdown and a stable device identifier.
//
// The device identifier scopes refresh tokens. One active refresh token is
// kept per device, so logging in again from the same browser replaces the
// previous session instead of adding a new one.
//
//	sc := device.FromRequest(r)
//	// sc.DeviceID is a hex SHA-256, or the X-Device-ID header sent by mobile apps
package device
