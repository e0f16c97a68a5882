// Package identity issues and verifies CodeDojo session credentials.
//
// A session is an HS256 JWT bound to a user ID and Codeforces handle. It is
// minted once a handle challenge verifies and is presented as a Bearer token
// on every protected route.
package identity
