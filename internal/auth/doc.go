// Package auth implements browser-based OAuth 2.0 authentication for the
// Pagelens CLI.
//
// This package owns the full credential lifecycle: the Authorization Code
// with PKCE login flow, secure session persistence, lazy token refresh, and
// ID token verification against the provider's published key set.
//
// # Architecture
//
// The package is composed of small collaborators wired together by the
// Identity facade:
//   - Flow drives the Authorization Code + PKCE state machine
//   - CallbackServer receives the provider redirect on a loopback port
//   - Browser opens the authorization URL (or prints it in manual mode)
//   - Verifier checks ID token signatures against the provider JWKS
//   - SessionManager persists sessions through a CredentialStore
//
// # Session Storage
//
// Sessions are stored as a single JSON blob in the system keyring under a
// fixed service/account pair, with a file-based store available as a
// fallback for hosts without a keyring daemon. Exactly one identity is
// stored at a time. A blob that fails to parse or validate is purged on
// load and treated as "never logged in".
//
// # Usage
//
//	store := auth.NewKeyringStore()
//	id, err := auth.NewIdentity(auth.Config{
//	    BaseURL:  "https://auth.pagelens.dev",
//	    ClientID: "pagelens-cli",
//	    Scopes:   []string{"openid", "profile", "email"},
//	}, store)
//
//	session, err := id.Login(ctx)
//
//	// Later, from any consumer:
//	token, err := id.AccessToken(ctx)
package auth
