// Package auth issues and verifies the bearer tokens of the facade API.
//
// Tokens are HS256 JWTs carrying a subject and a role. Roles map to a
// static permission set:
//   - viewer: read attributes, history and the change stream
//   - operator: everything a viewer can do, plus attribute writes
//
// There is no user store: tokens are issued offline with `facaded token`
// by whoever holds the signing secret.
package auth
