package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the parsed response of a token endpoint request. It is
// immutable once produced; a refresh replaces the whole set rather than
// mutating fields in place. Absolute expiry is not part of the set, the
// session layer computes it from ExpiresIn at the moment the set arrives.
type TokenSet struct {
	// AccessToken is the bearer token used for authorized calls.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the token lifetime in seconds, relative to receipt.
	// Zero means the provider reported no expiry.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the signed OIDC ID token (optional).
	IDToken string `json:"id_token,omitempty"`

	// Scope is the granted scope set, space-delimited.
	Scope string `json:"scope,omitempty"`
}

// ExpiryAt returns the absolute expiry computed from now and ExpiresIn.
// The zero time is returned when the provider reported no lifetime, which
// callers treat as a non-expiring token.
func (t *TokenSet) ExpiryAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Scopes splits the space-delimited scope string into individual scopes.
func (t *TokenSet) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// Token converts the set into an oauth2.Token for consumers built on
// golang.org/x/oauth2. The ID token travels in the extra data under
// "id_token", matching what oauth2 providers attach.
func (t *TokenSet) Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiryAt(time.Now()),
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// OpenIDConfiguration is the provider discovery document, fetched from
// /.well-known/openid-configuration (or the RFC 8414 equivalent).
type OpenIDConfiguration struct {
	// Issuer is the provider's issuer identifier. ID token validation
	// requires the iss claim to equal this value exactly.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// JWKSURI is the URL of the provider's JSON Web Key Set.
	JWKSURI string `json:"jwks_uri,omitempty"`

	// UserinfoEndpoint is the URL of the userinfo endpoint (optional).
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// ScopesSupported lists the scope values the provider supports.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the supported response_type values.
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the provider advertises S256 support.
// Providers that omit the field are assumed to support it.
func (c *OpenIDConfiguration) SupportsPKCE() bool {
	if len(c.CodeChallengeMethodsSupported) == 0 {
		return true
	}
	for _, method := range c.CodeChallengeMethodsSupported {
		if method == "S256" {
			return true
		}
	}
	return false
}

// errorResponse is the standard OAuth error body returned by providers on
// failed token or discovery requests.
type errorResponse struct {
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// describe renders the provider error for inclusion in an Error message.
func (e *errorResponse) describe() string {
	if e.ErrorCode == "" {
		return ""
	}
	if e.ErrorDescription == "" {
		return e.ErrorCode
	}
	return e.ErrorCode + ": " + e.ErrorDescription
}
