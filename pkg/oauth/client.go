package oauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for provider requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultDiscoveryCacheTTL is the default TTL for cached discovery
	// documents. Discovery is fetched at most once per TTL per base URL.
	DefaultDiscoveryCacheTTL = 30 * time.Minute
)

// discoveryCacheEntry holds a cached discovery document with its timestamp.
type discoveryCacheEntry struct {
	config    *OpenIDConfiguration
	fetchedAt time.Time
}

// Client performs the HTTP operations of the authorization flow: provider
// discovery, authorization code exchange, and token refresh. All failures
// are returned as *Error values from the taxonomy in errors.go.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	discoveryMu    sync.RWMutex
	discoveryCache map[string]*discoveryCacheEntry
	discoveryTTL   time.Duration

	// singleflight group to deduplicate concurrent discovery fetches
	discoveryGroup singleflight.Group
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDiscoveryCacheTTL sets the discovery document cache TTL.
func WithDiscoveryCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.discoveryTTL = ttl
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultHTTPTimeout},
		logger:         slog.Default(),
		discoveryCache: make(map[string]*discoveryCacheEntry),
		discoveryTTL:   DefaultDiscoveryCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DiscoverConfiguration fetches the provider's discovery document. It tries
// OpenID Connect discovery (/.well-known/openid-configuration) first and
// falls back to RFC 8414 (/.well-known/oauth-authorization-server).
//
// Results are cached with a TTL, and concurrent fetches for the same base
// URL are deduplicated.
func (c *Client) DiscoverConfiguration(ctx context.Context, baseURL string) (*OpenIDConfiguration, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	c.discoveryMu.RLock()
	if entry, ok := c.discoveryCache[baseURL]; ok {
		if time.Since(entry.fetchedAt) < c.discoveryTTL {
			c.discoveryMu.RUnlock()
			return entry.config, nil
		}
	}
	c.discoveryMu.RUnlock()

	result, err, _ := c.discoveryGroup.Do(baseURL, func() (interface{}, error) {
		// Double-check the cache after winning the singleflight slot.
		c.discoveryMu.RLock()
		if entry, ok := c.discoveryCache[baseURL]; ok {
			if time.Since(entry.fetchedAt) < c.discoveryTTL {
				c.discoveryMu.RUnlock()
				return entry.config, nil
			}
		}
		c.discoveryMu.RUnlock()

		return c.doDiscoverConfiguration(ctx, baseURL)
	})

	if err != nil {
		return nil, err
	}

	return result.(*OpenIDConfiguration), nil
}

// doDiscoverConfiguration performs the actual discovery fetch.
func (c *Client) doDiscoverConfiguration(ctx context.Context, baseURL string) (*OpenIDConfiguration, error) {
	config, oidcErr := c.fetchConfiguration(ctx, baseURL+"/.well-known/openid-configuration")
	if oidcErr == nil {
		c.cacheConfiguration(baseURL, config)
		return config, nil
	}

	c.logger.Debug("OIDC discovery failed, trying RFC 8414 metadata",
		"base_url", baseURL,
		"error", oidcErr)

	config, err := c.fetchConfiguration(ctx, baseURL+"/.well-known/oauth-authorization-server")
	if err == nil {
		c.cacheConfiguration(baseURL, config)
		return config, nil
	}

	// Report the primary endpoint's failure; the fallback rarely says more.
	var wireErr *Error
	if e, ok := oidcErr.(*Error); ok {
		wireErr = e
	} else {
		wireErr = WrapError(CodeInvalidResponse, oidcErr, "discovery failed for %s", baseURL)
	}
	return nil, wireErr
}

// fetchConfiguration fetches and parses a discovery document from one URL.
func (c *Client) fetchConfiguration(ctx context.Context, configURL string) (*OpenIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return nil, WrapError(CodeInvalidResponse, err, "invalid discovery URL %s", configURL)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(CodeNetworkError, err, "discovery request to %s failed", configURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(CodeNetworkError, err, "failed to read discovery response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.protocolError(CodeInvalidResponse, resp.StatusCode, body, "discovery request")
	}

	var config OpenIDConfiguration
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, WrapError(CodeInvalidResponse, err, "failed to parse discovery document")
	}

	if config.Issuer == "" || config.TokenEndpoint == "" {
		return nil, NewError(CodeInvalidResponse, "discovery document missing issuer or token endpoint")
	}

	return &config, nil
}

// cacheConfiguration stores a discovery document in the cache.
func (c *Client) cacheConfiguration(baseURL string, config *OpenIDConfiguration) {
	c.discoveryMu.Lock()
	c.discoveryCache[baseURL] = &discoveryCacheEntry{
		config:    config,
		fetchedAt: time.Now(),
	}
	c.discoveryMu.Unlock()

	c.logger.Debug("Cached provider discovery document",
		"base_url", baseURL,
		"issuer", config.Issuer,
		"token_endpoint", config.TokenEndpoint)
}

// ClearDiscoveryCache drops all cached discovery documents.
func (c *Client) ClearDiscoveryCache() {
	c.discoveryMu.Lock()
	c.discoveryCache = make(map[string]*discoveryCacheEntry)
	c.discoveryMu.Unlock()
}

// ExchangeCode exchanges an authorization code for a token set, forwarding
// the PKCE verifier that matches the challenge sent in the authorization
// request. Protocol failures map to CodeInvalidResponse.
func (c *Client) ExchangeCode(ctx context.Context, tokenEndpoint, clientID, code, redirectURI, codeVerifier string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data, CodeInvalidResponse)
}

// RefreshAccessToken obtains a new token set using a refresh token. The
// scope is optional; when non-empty it is forwarded so the provider grants
// the same scope set again. Protocol failures map to CodeRefreshFailed so
// the caller knows to discard the stored session.
func (c *Client) RefreshAccessToken(ctx context.Context, tokenEndpoint, clientID, refreshToken, scope string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refreshToken},
	}
	if scope != "" {
		data.Set("scope", scope)
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data, CodeRefreshFailed)
}

// doTokenRequest performs a form-encoded token endpoint request. Transport
// failures map to CodeNetworkError; everything the provider answered but
// answered badly maps to failCode.
func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, data url.Values, failCode ErrorCode) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, WrapError(failCode, err, "invalid token endpoint %s", tokenEndpoint)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(CodeNetworkError, err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(CodeNetworkError, err, "failed to read token response")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Token request rejected",
			"status", resp.StatusCode,
			"grant_type", data.Get("grant_type"),
			"body", string(body))
		return nil, c.protocolError(failCode, resp.StatusCode, body, "token request")
	}

	var tokens TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, WrapError(failCode, err, "failed to parse token response")
	}

	if tokens.AccessToken == "" {
		return nil, NewError(failCode, "token response contained no access token")
	}

	return &tokens, nil
}

// protocolError builds an Error from a non-200 provider response, folding
// in the standard OAuth error body when one is present.
func (c *Client) protocolError(code ErrorCode, status int, body []byte, operation string) *Error {
	var oauthErr errorResponse
	if err := json.Unmarshal(body, &oauthErr); err == nil {
		if detail := oauthErr.describe(); detail != "" {
			return NewError(code, "%s failed with status %d (%s)", operation, status, detail)
		}
	}
	return NewError(code, "%s failed with status %d", operation, status)
}

// BuildAuthorizationURL constructs the authorization URL the browser opens.
// The state travels in pkce.State; scope is the space-joined scope set.
func BuildAuthorizationURL(authEndpoint, clientID, redirectURI, scope string, pkce *PKCEParameters) (string, error) {
	authURL, err := url.Parse(authEndpoint)
	if err != nil {
		return "", WrapError(CodeInvalidResponse, err, "invalid authorization endpoint %s", authEndpoint)
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", pkce.State)
	query.Set("code_challenge", pkce.CodeChallenge)
	query.Set("code_challenge_method", pkce.CodeChallengeMethod)

	if scope != "" {
		query.Set("scope", scope)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}
