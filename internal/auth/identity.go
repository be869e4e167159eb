package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pagelens/pkg/oauth"
)

// DefaultRefreshBuffer is the lead time before expiry at which AccessToken
// triggers a proactive refresh.
const DefaultRefreshBuffer = 5 * time.Minute

// Config configures the Identity facade.
type Config struct {
	// BaseURL is the identity provider base URL.
	BaseURL string

	// ClientID is the public OAuth client identifier of this CLI.
	ClientID string

	// Scopes are the OAuth scopes to request at login.
	Scopes []string

	// AuthorizePath and TokenPath override the default endpoint paths
	// under BaseURL.
	AuthorizePath string
	TokenPath     string

	// CallbackPort is the loopback port for the login callback listener.
	CallbackPort int

	// LoginTimeout bounds how long a login waits for the browser round trip.
	LoginTimeout time.Duration

	// RefreshBuffer is the lead time before expiry at which AccessToken
	// refreshes. Defaults to 5 minutes.
	RefreshBuffer time.Duration

	// ServiceName and AccountName select the credential store slot.
	// They default to "pagelens" and "default".
	ServiceName string
	AccountName string
}

// IdentityOption customizes an Identity.
type IdentityOption func(*Identity)

// WithBrowser sets the browser used to open the authorization URL.
func WithBrowser(browser Browser) IdentityOption {
	return func(id *Identity) {
		id.browser = browser
	}
}

// WithLogger sets the logger for all auth components.
func WithLogger(logger *slog.Logger) IdentityOption {
	return func(id *Identity) {
		id.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(client *http.Client) IdentityOption {
	return func(id *Identity) {
		id.httpClient = client
	}
}

// Identity is the single entry point for authentication. It owns the login
// flow, session persistence, lazy refresh, and ID token verification, and
// caches the current session in memory for the process lifetime.
//
// All operations are serialized: at most one login flow runs at a time.
type Identity struct {
	config        Config
	refreshBuffer time.Duration
	httpClient    *http.Client
	browser       Browser
	logger        *slog.Logger

	oauthClient *oauth.Client
	flow        *Flow
	sessions    *SessionManager
	verifier    *Verifier

	mu      sync.Mutex
	session *Session
	loaded  bool
}

// NewIdentity creates the authentication facade over the given credential
// store.
func NewIdentity(cfg Config, store CredentialStore, opts ...IdentityOption) (*Identity, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity provider base URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("OAuth client ID is required")
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}

	id := &Identity{
		config:        cfg,
		refreshBuffer: cfg.RefreshBuffer,
		browser:       SystemBrowser{},
		logger:        slog.Default(),
	}
	if id.refreshBuffer == 0 {
		id.refreshBuffer = DefaultRefreshBuffer
	}

	for _, opt := range opts {
		opt(id)
	}

	if id.httpClient == nil {
		id.httpClient = &http.Client{Timeout: oauth.DefaultHTTPTimeout}
	}

	id.oauthClient = oauth.NewClient(
		oauth.WithHTTPClient(id.httpClient),
		oauth.WithLogger(id.logger),
	)
	id.flow = NewFlow(FlowConfig{
		BaseURL:       cfg.BaseURL,
		ClientID:      cfg.ClientID,
		Scopes:        cfg.Scopes,
		AuthorizePath: cfg.AuthorizePath,
		TokenPath:     cfg.TokenPath,
		CallbackPort:  cfg.CallbackPort,
		Timeout:       cfg.LoginTimeout,
	}, id.oauthClient, id.browser, id.logger)
	id.sessions = NewSessionManager(store, cfg.ServiceName, cfg.AccountName, id.logger)
	id.verifier = NewVerifier(cfg.ClientID, id.httpClient, id.logger)

	return id, nil
}

// loadLocked populates the session cache from the store exactly once per
// process. Subsequent calls use the cache; the store is the source of truth
// only at process start or after an explicit mutation.
// Caller must hold id.mu.
func (id *Identity) loadLocked() error {
	if id.loaded {
		return nil
	}

	session, err := id.sessions.Load()
	if err != nil {
		return err
	}

	id.session = session
	id.loaded = true
	return nil
}

// Login runs the browser-based authorization flow and persists the
// resulting session. If a non-expired session already exists, it fails with
// ALREADY_AUTHENTICATED without any provider interaction.
func (id *Identity) Login(ctx context.Context) (*Session, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.loadLocked(); err != nil {
		return nil, err
	}

	if id.session != nil && !id.session.Expired() {
		return nil, oauth.NewError(oauth.CodeAlreadyAuthenticated,
			"an active session already exists for %s", id.session.User.ID)
	}

	tokens, err := id.flow.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := id.resolveProfile(ctx, tokens)
	if err != nil {
		return nil, err
	}

	session := NewSession(tokens, profile)
	if err := id.sessions.Save(session); err != nil {
		return nil, err
	}
	id.session = session
	id.loaded = true

	id.logger.Info("Login completed",
		"user_id", profile.ID,
		"session_id", session.Metadata.SessionID,
	)
	return session, nil
}

// resolveProfile derives the user profile from the token response. A
// missing ID token yields the fallback profile; a present ID token is
// verified against the provider's key set and any failure aborts.
func (id *Identity) resolveProfile(ctx context.Context, tokens *oauth.TokenSet) (*UserProfile, error) {
	if tokens.IDToken == "" {
		id.logger.Debug("Token response carried no ID token, using fallback profile")
		return FallbackProfile(), nil
	}

	config, err := id.oauthClient.DiscoverConfiguration(ctx, id.config.BaseURL)
	if err != nil {
		return nil, err
	}

	return id.verifier.VerifyIDToken(ctx, config.Issuer, config.JWKSURI, tokens.IDToken)
}

// Logout deletes the persisted session and clears the cache. Logging out
// without a session is not an error.
func (id *Identity) Logout() error {
	id.mu.Lock()
	defer id.mu.Unlock()

	id.session = nil
	id.loaded = true

	return id.sessions.Delete()
}

// Status returns the current session, or nil when not logged in. The store
// is read lazily, exactly once per process.
func (id *Identity) Status() (*Session, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.loadLocked(); err != nil {
		return nil, err
	}
	return id.session, nil
}

// IsAuthenticated reports whether a non-expired session exists.
func (id *Identity) IsAuthenticated() bool {
	session, err := id.Status()
	if err != nil {
		return false
	}
	return session != nil && !session.Expired()
}

// Profile returns the authenticated user's profile.
// Fails with NOT_AUTHENTICATED when no session exists.
func (id *Identity) Profile() (*UserProfile, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.loadLocked(); err != nil {
		return nil, err
	}
	if id.session == nil {
		return nil, oauth.NewError(oauth.CodeNotAuthenticated, "not logged in")
	}

	profile := id.session.User
	return &profile, nil
}

// AccessToken returns a currently valid access token, refreshing first when
// the session expires within the configured buffer. Callers must not cache
// the returned token across requests.
func (id *Identity) AccessToken(ctx context.Context) (string, error) {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.loadLocked(); err != nil {
		return "", err
	}
	if id.session == nil {
		return "", oauth.NewError(oauth.CodeNotAuthenticated, "not logged in")
	}

	if id.session.ExpiresWithin(id.refreshBuffer) {
		if err := id.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	return id.session.Tokens.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new token set and
// persists the updated session. Any refresh failure wipes the session so a
// stale credential is never left behind.
func (id *Identity) Refresh(ctx context.Context) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.loadLocked(); err != nil {
		return err
	}
	return id.refreshLocked(ctx)
}

// refreshLocked performs the refresh. Caller must hold id.mu.
func (id *Identity) refreshLocked(ctx context.Context) error {
	if id.session == nil {
		return oauth.NewError(oauth.CodeNotAuthenticated, "not logged in")
	}

	if id.session.Tokens.RefreshToken == "" {
		id.wipeLocked()
		return oauth.NewError(oauth.CodeRefreshFailed, "session has no refresh token")
	}

	scope := strings.Join(id.session.Metadata.Scopes, " ")
	tokens, err := id.flow.Refresh(ctx, id.session.Tokens.RefreshToken, scope)
	if err != nil {
		id.wipeLocked()
		if oauth.HasCode(err, oauth.CodeRefreshFailed) {
			return err
		}
		return oauth.WrapError(oauth.CodeRefreshFailed, err, "token refresh failed")
	}

	// A refreshed ID token is re-verified before the session is trusted.
	if tokens.IDToken != "" {
		profile, err := id.resolveProfile(ctx, tokens)
		if err != nil {
			id.wipeLocked()
			return oauth.WrapError(oauth.CodeRefreshFailed, err, "refreshed ID token failed verification")
		}
		id.session.User = *profile
	}

	id.session.ApplyRefresh(tokens)
	if err := id.sessions.Save(id.session); err != nil {
		return err
	}

	id.logger.Info("Session refreshed",
		"session_id", id.session.Metadata.SessionID,
		"expires_at", id.session.Metadata.ExpiresAt.Format(time.RFC3339),
	)
	return nil
}

// wipeLocked clears the cache and deletes the persisted session.
// Caller must hold id.mu.
func (id *Identity) wipeLocked() {
	id.session = nil
	id.loaded = true

	if err := id.sessions.Delete(); err != nil {
		id.logger.Warn("failed to delete session during wipe", "error", err.Error())
	}
}
