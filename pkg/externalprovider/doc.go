// Package externalprovider signs accounts in through Google and Microsoft.
//
// The flow has two legs. The redirect leg stores a random state in a
// StateStore and sends the browser to the IdP. The callback leg consumes
// that state, exchanges the code, fetches the profile, maps it onto an
// existing account through the Linker, and hands the account to the login
// service for token issuance. Accounts are never created here.
//
// Upstream timeouts surface as UPSTREAM_TIMEOUT (504) and every other IdP
// failure as UPSTREAM_UNAVAILABLE (502). Nothing is retried.
package externalprovider
