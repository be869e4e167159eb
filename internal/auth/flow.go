package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pagelens/pkg/oauth"
)

// Default endpoint paths relative to the provider base URL, used when the
// configuration does not override them.
const (
	DefaultAuthorizePath = "/oauth/authorize"
	DefaultTokenPath     = "/oauth/token"
)

// DefaultFlowTimeout bounds how long a login waits for the user to finish
// authenticating in the browser.
const DefaultFlowTimeout = 5 * time.Minute

// FlowState tracks the progress of an authorization flow.
type FlowState int

const (
	// FlowInit is the initial state before any work has started.
	FlowInit FlowState = iota

	// FlowPKCEGenerated means fresh PKCE parameters exist for this attempt.
	FlowPKCEGenerated

	// FlowListenerStarted means the loopback callback listener is bound.
	FlowListenerStarted

	// FlowBrowserOpening means the authorization URL is being handed to the browser.
	FlowBrowserOpening

	// FlowAwaitingCallback means the flow is waiting for the provider redirect.
	FlowAwaitingCallback

	// FlowStateValidated means the callback state matched the expected nonce.
	FlowStateValidated

	// FlowExchangingCode means the authorization code is being exchanged for tokens.
	FlowExchangingCode

	// FlowDone means the flow completed successfully.
	FlowDone

	// FlowError means the flow failed; it is reachable from every state.
	FlowError
)

// String returns the string representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case FlowInit:
		return "init"
	case FlowPKCEGenerated:
		return "pkce_generated"
	case FlowListenerStarted:
		return "listener_started"
	case FlowBrowserOpening:
		return "browser_opening"
	case FlowAwaitingCallback:
		return "awaiting_callback"
	case FlowStateValidated:
		return "state_validated"
	case FlowExchangingCode:
		return "exchanging_code"
	case FlowDone:
		return "done"
	case FlowError:
		return "error"
	default:
		return "unknown"
	}
}

// FlowConfig configures an authorization flow.
type FlowConfig struct {
	// BaseURL is the identity provider base URL.
	BaseURL string

	// ClientID is the public OAuth client identifier of this CLI.
	ClientID string

	// Scopes are the OAuth scopes to request.
	Scopes []string

	// AuthorizePath is the authorization endpoint path under BaseURL.
	// Defaults to /oauth/authorize.
	AuthorizePath string

	// TokenPath is the token endpoint path under BaseURL.
	// Defaults to /oauth/token.
	TokenPath string

	// CallbackPort is the loopback port for the callback listener.
	// Defaults to 8765.
	CallbackPort int

	// Timeout bounds the wait for the provider redirect.
	// Defaults to 5 minutes.
	Timeout time.Duration
}

// withDefaults returns the config with zero values replaced by defaults.
func (c FlowConfig) withDefaults() FlowConfig {
	if c.AuthorizePath == "" {
		c.AuthorizePath = DefaultAuthorizePath
	}
	if c.TokenPath == "" {
		c.TokenPath = DefaultTokenPath
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = DefaultCallbackPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultFlowTimeout
	}
	return c
}

// Flow runs the Authorization Code with PKCE flow end to end: generate PKCE
// parameters, bind the callback listener, open the browser, await the
// redirect, and exchange the code for tokens. The callback listener is
// always stopped, on every success and failure path.
type Flow struct {
	config  FlowConfig
	client  *oauth.Client
	browser Browser
	logger  *slog.Logger

	// newListener is swapped in tests to force ephemeral ports.
	newListener func(port int, expectedState string) *CallbackServer

	mu    sync.Mutex
	state FlowState
}

// NewFlow creates an authorization flow. A nil browser falls back to the
// system default browser; a nil logger falls back to slog.Default.
func NewFlow(cfg FlowConfig, client *oauth.Client, browser Browser, logger *slog.Logger) *Flow {
	if client == nil {
		client = oauth.NewClient()
	}
	if browser == nil {
		browser = SystemBrowser{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Flow{
		config:      cfg.withDefaults(),
		client:      client,
		browser:     browser,
		logger:      logger,
		newListener: NewCallbackServer,
		state:       FlowInit,
	}
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(state FlowState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

// inProgress reports whether an authorization attempt is currently running.
func (f *Flow) inProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != FlowInit && f.state != FlowDone && f.state != FlowError
}

// Authorize runs one authorization attempt and returns the token set.
// A second call while an attempt is awaiting its callback is rejected.
func (f *Flow) Authorize(ctx context.Context) (*oauth.TokenSet, error) {
	if f.inProgress() {
		return nil, fmt.Errorf("authorization flow already in progress (state: %s)", f.State())
	}
	f.setState(FlowInit)

	tokens, err := f.authorize(ctx)
	if err != nil {
		f.setState(FlowError)
		return nil, err
	}

	f.setState(FlowDone)
	return tokens, nil
}

func (f *Flow) authorize(ctx context.Context) (*oauth.TokenSet, error) {
	// Crypto failures indicate a broken entropy source and propagate as fatal.
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE parameters: %w", err)
	}
	f.setState(FlowPKCEGenerated)

	server := f.newListener(f.config.CallbackPort, pkce.State)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return nil, oauth.WrapError(oauth.CodeNetworkError, err, "failed to start callback listener")
	}
	defer server.Stop()
	f.setState(FlowListenerStarted)

	authURL, err := oauth.BuildAuthorizationURL(
		f.authorizeEndpoint(),
		f.config.ClientID,
		redirectURI,
		strings.Join(f.config.Scopes, " "),
		pkce,
	)
	if err != nil {
		return nil, oauth.WrapError(oauth.CodeNetworkError, err, "invalid authorization endpoint")
	}

	f.setState(FlowBrowserOpening)
	f.logger.Debug("Opening browser for authorization",
		"endpoint", f.authorizeEndpoint(),
		"callback_port", server.Port(),
	)
	if err := f.browser.Open(authURL); err != nil {
		f.logger.Warn("Failed to open browser for authorization",
			"endpoint", f.authorizeEndpoint(),
			"error", err.Error(),
		)
		return nil, oauth.BrowserFailedError(authURL, err)
	}
	f.setState(FlowAwaitingCallback)

	waitCtx := ctx
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	// The listener validates the state nonce before releasing a result, so a
	// successful wait implies the CSRF check passed.
	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		return nil, err
	}

	if result.IsError() {
		if result.ErrorDescription != "" {
			return nil, oauth.NewError(oauth.CodeInvalidResponse,
				"authorization failed: %s: %s", result.Error, result.ErrorDescription)
		}
		return nil, oauth.NewError(oauth.CodeInvalidResponse,
			"authorization failed: %s", result.Error)
	}
	f.setState(FlowStateValidated)

	f.setState(FlowExchangingCode)
	tokens, err := f.client.ExchangeCode(ctx,
		f.tokenEndpoint(), f.config.ClientID, result.Code, redirectURI, pkce.CodeVerifier)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Authorization flow completed",
		"endpoint", f.tokenEndpoint(),
		"has_refresh_token", tokens.RefreshToken != "",
		"has_id_token", tokens.IDToken != "",
	)
	return tokens, nil
}

// Refresh exchanges a refresh token for a new token set. It performs no
// browser interaction and starts no listener.
func (f *Flow) Refresh(ctx context.Context, refreshToken, scope string) (*oauth.TokenSet, error) {
	return f.client.RefreshAccessToken(ctx, f.tokenEndpoint(), f.config.ClientID, refreshToken, scope)
}

func (f *Flow) authorizeEndpoint() string {
	return strings.TrimSuffix(f.config.BaseURL, "/") + f.config.AuthorizePath
}

func (f *Flow) tokenEndpoint() string {
	return strings.TrimSuffix(f.config.BaseURL, "/") + f.config.TokenPath
}
