// Package oauth implements the wire-level OAuth 2.0 operations pagelens uses
// to authenticate against its cloud identity provider.
//
// It covers the Authorization Code grant with PKCE (RFC 7636): parameter
// generation, the authorization URL, the token endpoint requests for code
// exchange and refresh, and OpenID Connect discovery (with an RFC 8414
// fallback). Results are plain data types; session persistence, the callback
// listener, and the browser interaction live in internal/auth on top of this
// package.
//
// # Core Components
//
//   - PKCEParameters: verifier/challenge/state generation (RFC 7636)
//   - TokenSet: token endpoint response with an oauth2.Token bridge
//   - OpenIDConfiguration: provider discovery document
//   - Client: discovery, code exchange, and refresh against the provider
//   - Error: the closed error taxonomy shared by the whole subsystem
//
// Every failure returned by Client is an *Error carrying one of the taxonomy
// codes, so callers never have to interpret raw transport errors.
package oauth
