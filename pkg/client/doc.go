// Package client is the CodeDojo Go SDK.
//
// It wraps the public HTTP API: the handle-challenge login, contest listing
// and joining, and leaderboards.
//
// # Logging in
//
// Login is a two-step exchange. CreateChallenge names a Codeforces problem
// the user must submit to from their account; VerifyChallenge checks the
// submission and returns a session token:
//
//	c, _ := client.New("https://codedojo.example.com")
//	ch, err := c.CreateChallenge(ctx, "tourist")
//	// ... the user submits to ch.ProblemURL ...
//	login, err := c.VerifyChallenge(ctx, "tourist")
//	c.SetToken(login.Token)
//
// # Leaderboards
//
// Leaderboards are public. Add result caching with WithCacheTTL to avoid
// polling the server on every refresh:
//
//	c, _ := client.New(baseURL, client.WithCacheTTL(30*time.Second))
//	rows, err := c.Leaderboard(ctx, "weekly-practice")
//
// Errors returned by the server are reported as *APIError, carrying the HTTP
// status and the server's message.
package client
