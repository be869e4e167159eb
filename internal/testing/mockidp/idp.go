package mockidp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims are the identity claims minted into ID tokens.
type UserClaims struct {
	Subject       string
	Email         string
	Name          string
	Organization  string
	Picture       string
	EmailVerified bool
}

// ErrorSimulation switches the token endpoint into failure modes.
type ErrorSimulation struct {
	// TokenEndpointError returns this description with a server_error code
	// from every token request.
	TokenEndpointError string

	// InvalidGrant rejects all code exchanges and refreshes.
	InvalidGrant bool
}

// Config configures the mock identity provider.
type Config struct {
	// Issuer overrides the issuer identifier. Defaults to the listen URL.
	Issuer string

	// ClientID is the expected OAuth client ID. Defaults to "test-client".
	ClientID string

	// AcceptedScopes are advertised in the discovery document.
	AcceptedScopes []string

	// TokenLifetime is how long issued tokens remain valid.
	// Defaults to one hour.
	TokenLifetime time.Duration

	// AutoApprove redirects back with a code immediately, skipping consent.
	AutoApprove bool

	// PKCERequired rejects authorization requests without a code challenge.
	PKCERequired bool

	// OmitIDToken leaves the id_token out of token responses.
	OmitIDToken bool

	// SimulateErrors enables failure modes on the token endpoint.
	SimulateErrors *ErrorSimulation

	// User is the identity minted into ID tokens.
	User UserClaims
}

type authCodeEntry struct {
	ClientID        string
	RedirectURI     string
	Scope           string
	State           string
	CodeChallenge   string
	ChallengeMethod string
	CreatedAt       time.Time
}

type refreshEntry struct {
	ClientID string
	Scope    string
}

// TokenResponse is the OAuth token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Server is a mock OIDC identity provider.
type Server struct {
	config     Config
	httpServer *http.Server
	listener   net.Listener
	port       int
	running    bool
	mu         sync.RWMutex

	signingKey *rsa.PrivateKey
	keyID      string

	authCodes     map[string]*authCodeEntry
	refreshTokens map[string]*refreshEntry

	pathCounts  map[string]int
	grantCounts map[string]int
}

// New creates a mock identity provider with an RSA signing key.
func New(config Config) (*Server, error) {
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if len(config.AcceptedScopes) == 0 {
		config.AcceptedScopes = []string{"openid", "profile", "email"}
	}
	if config.TokenLifetime == 0 {
		config.TokenLifetime = 1 * time.Hour
	}
	if config.User.Subject == "" {
		config.User = UserClaims{
			Subject:       "test-user-123",
			Email:         "test@example.com",
			Name:          "Test User",
			EmailVerified: true,
		}
	}

	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	return &Server{
		config:        config,
		signingKey:    signingKey,
		keyID:         generateOpaqueToken()[:8],
		authCodes:     make(map[string]*authCodeEntry),
		refreshTokens: make(map[string]*refreshEntry),
		pathCounts:    make(map[string]int),
		grantCounts:   make(map[string]int),
	}, nil
}

// Start starts the provider on a random loopback port.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.port, nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	if s.config.Issuer == "" {
		s.config.Issuer = fmt.Sprintf("http://127.0.0.1:%d", s.port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", s.handleMetadata)
	mux.HandleFunc("/.well-known/oauth-authorization-server", s.handleMetadata)
	mux.HandleFunc("/oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("/oauth/token", s.handleToken)
	mux.HandleFunc("/jwks", s.handleJWKS)

	s.httpServer = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.countRequest(r.URL.Path)
			mux.ServeHTTP(w, r)
		}),
	}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	s.running = true
	return s.port, nil
}

// Stop shuts the provider down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}

// IssuerURL returns the issuer identifier.
func (s *Server) IssuerURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Issuer
}

// JWKSURL returns the JWKS endpoint URL.
func (s *Server) JWKSURL() string {
	return s.IssuerURL() + "/jwks"
}

// ClientID returns the expected OAuth client ID.
func (s *Server) ClientID() string {
	return s.config.ClientID
}

// SetSimulateErrors switches error simulation on or off at runtime.
func (s *Server) SetSimulateErrors(sim *ErrorSimulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SimulateErrors = sim
}

func (s *Server) countRequest(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathCounts[path]++
}

func (s *Server) countGrant(grantType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantCounts[grantType]++
}

// Requests returns how many requests hit the given path.
func (s *Server) Requests(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathCounts[path]
}

// TotalRequests returns how many requests the provider has served.
func (s *Server) TotalRequests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.pathCounts {
		total += n
	}
	return total
}

// GrantRequests returns how many token requests used the given grant type.
func (s *Server) GrantRequests(grantType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grantCounts[grantType]
}

// handleMetadata serves the OIDC discovery document.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	metadata := map[string]interface{}{
		"issuer":                                s.config.Issuer,
		"authorization_endpoint":                s.config.Issuer + "/oauth/authorize",
		"token_endpoint":                        s.config.Issuer + "/oauth/token",
		"jwks_uri":                              s.config.Issuer + "/jwks",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none"},
		"scopes_supported":                      s.config.AcceptedScopes,
		"code_challenge_methods_supported":      []string{"S256"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metadata)
}

// handleAuthorize validates the authorization request and, in auto-approve
// mode, redirects straight back to the client with a fresh code.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	scope := query.Get("scope")
	state := query.Get("state")
	codeChallenge := query.Get("code_challenge")
	challengeMethod := query.Get("code_challenge_method")

	if query.Get("response_type") != "code" {
		http.Error(w, "unsupported_response_type", http.StatusBadRequest)
		return
	}
	if clientID != s.config.ClientID {
		http.Error(w, "invalid_client", http.StatusBadRequest)
		return
	}
	if s.config.PKCERequired && codeChallenge == "" {
		http.Error(w, "PKCE required: code_challenge missing", http.StatusBadRequest)
		return
	}

	code := generateOpaqueToken()
	s.mu.Lock()
	s.authCodes[code] = &authCodeEntry{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		Scope:           scope,
		State:           state,
		CodeChallenge:   codeChallenge,
		ChallengeMethod: challengeMethod,
		CreatedAt:       time.Now(),
	}
	s.mu.Unlock()

	if s.config.AutoApprove {
		redirectURL, err := url.Parse(redirectURI)
		if err != nil {
			http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
			return
		}

		q := redirectURL.Query()
		q.Set("code", code)
		if state != "" {
			q.Set("state", state)
		}
		redirectURL.RawQuery = q.Encode()

		http.Redirect(w, r, redirectURL.String(), http.StatusFound)
		return
	}

	// Consent page for manual poking; tests use AutoApprove.
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Mock Identity Provider</title></head>
<body>
<h1>Authorize %s</h1>
<form action="%s" method="GET">
<input type="hidden" name="code" value="%s">
<input type="hidden" name="state" value="%s">
<button type="submit">Approve</button>
</form>
</body>
</html>`, clientID, redirectURI, code, state)
}

// handleToken dispatches token requests by grant type.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	grantType := r.FormValue("grant_type")
	s.countGrant(grantType)

	s.mu.RLock()
	sim := s.config.SimulateErrors
	s.mu.RUnlock()

	if sim != nil {
		if sim.TokenEndpointError != "" {
			s.tokenError(w, "server_error", sim.TokenEndpointError)
			return
		}
		if sim.InvalidGrant {
			s.tokenError(w, "invalid_grant", "grant is invalid")
			return
		}
	}

	switch grantType {
	case "authorization_code":
		s.handleCodeExchange(w, r)
	case "refresh_token":
		s.handleRefresh(w, r)
	default:
		s.tokenError(w, "unsupported_grant_type",
			fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

func (s *Server) handleCodeExchange(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	codeVerifier := r.FormValue("code_verifier")
	clientID := r.FormValue("client_id")

	s.mu.Lock()
	entry, exists := s.authCodes[code]
	if exists {
		delete(s.authCodes, code)
	}
	s.mu.Unlock()

	if !exists {
		s.tokenError(w, "invalid_grant", "authorization code not found or expired")
		return
	}
	if clientID != entry.ClientID {
		s.tokenError(w, "invalid_client", "client_id does not match authorization request")
		return
	}

	if entry.CodeChallenge != "" {
		if codeVerifier == "" {
			s.tokenError(w, "invalid_grant", "code_verifier required")
			return
		}
		if !verifyPKCE(entry.CodeChallenge, entry.ChallengeMethod, codeVerifier) {
			s.tokenError(w, "invalid_grant", "code_verifier verification failed")
			return
		}
	}

	s.issueTokens(w, entry.ClientID, entry.Scope)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.FormValue("refresh_token")

	s.mu.Lock()
	entry, exists := s.refreshTokens[refreshToken]
	if exists {
		// Rotation: the old refresh token is single-use.
		delete(s.refreshTokens, refreshToken)
	}
	s.mu.Unlock()

	if !exists {
		s.tokenError(w, "invalid_grant", "refresh token not found")
		return
	}

	scope := entry.Scope
	if requested := r.FormValue("scope"); requested != "" {
		scope = requested
	}

	s.issueTokens(w, entry.ClientID, scope)
}

// issueTokens mints a fresh token set and writes the response.
func (s *Server) issueTokens(w http.ResponseWriter, clientID, scope string) {
	accessToken := generateOpaqueToken()
	refreshToken := generateOpaqueToken()

	idToken, err := s.mintIDToken(clientID)
	if err != nil {
		s.tokenError(w, "server_error", "failed to sign ID token")
		return
	}

	s.mu.Lock()
	s.refreshTokens[refreshToken] = &refreshEntry{
		ClientID: clientID,
		Scope:    scope,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.TokenLifetime.Seconds()),
		Scope:        scope,
		IDToken:      idToken,
	})
}

func (s *Server) tokenError(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// handleJWKS publishes the RSA public key used to sign ID tokens.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	keySet := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &s.signingKey.PublicKey,
				KeyID:     s.keyID,
				Algorithm: "RS256",
				Use:       "sig",
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keySet)
}

// mintIDToken signs an ID token for the configured user.
func (s *Server) mintIDToken(clientID string) (string, error) {
	if s.config.OmitIDToken {
		return "", nil
	}

	now := time.Now()
	user := s.config.User
	claims := jwt.MapClaims{
		"iss":            s.config.Issuer,
		"sub":            user.Subject,
		"aud":            clientID,
		"exp":            now.Add(s.config.TokenLifetime).Unix(),
		"iat":            now.Unix(),
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"name":           user.Name,
	}
	if user.Organization != "" {
		claims["organization"] = user.Organization
	}
	if user.Picture != "" {
		claims["picture"] = user.Picture
	}

	return s.SignClaims(claims)
}

// SignClaims signs an arbitrary claim set with the provider's key.
// Tests use this to mint ID tokens with deliberately broken claims.
func (s *Server) SignClaims(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	return token.SignedString(s.signingKey)
}

// verifyPKCE verifies the PKCE code verifier against the stored challenge.
func verifyPKCE(challenge, method, verifier string) bool {
	switch method {
	case "S256":
		hash := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
	case "plain":
		return verifier == challenge
	default:
		return false
	}
}

// generateOpaqueToken generates a random opaque token.
// Panics if crypto/rand fails, which should never happen in practice.
func generateOpaqueToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("crypto/rand failed: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
