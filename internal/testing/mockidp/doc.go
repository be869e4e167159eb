// Package mockidp provides a mock OpenID Connect identity provider for
// tests.
//
// The server implements the endpoints the pagelens login flow touches:
// OIDC discovery, the authorization endpoint with auto-approval, the token
// endpoint with PKCE S256 enforcement and refresh token rotation, and a
// JWKS endpoint publishing the RSA key that signs issued ID tokens. Tests
// can inspect per-grant request counters and switch on error simulation to
// exercise failure paths.
package mockidp
