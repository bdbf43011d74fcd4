// Package auth mints and verifies the bearer tokens that guard the run
// control endpoints.
//
// Tokens are HS256 JWTs carrying a subject and a Role. A viewer may read
// run state; an operator may also stop a run. Tokens are checked by
// signature and expiry only; there is no user store.
package auth
