package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"pagelens/pkg/oauth"
)

// nbfLeeway is the allowed clock skew when checking the not-before claim.
const nbfLeeway = 1 * time.Minute

// Verifier checks ID token signatures against the provider's published
// JWKS and validates the standard OIDC claims.
type Verifier struct {
	clientID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewVerifier creates a verifier for ID tokens issued to the given client.
// A nil httpClient falls back to a client with the default timeout; a nil
// logger falls back to slog.Default.
func NewVerifier(clientID string, httpClient *http.Client, logger *slog.Logger) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: oauth.DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		clientID:   clientID,
		httpClient: httpClient,
		logger:     logger,
	}
}

// idTokenClaims are the profile claims extracted from a verified ID token.
type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Organization  string `json:"organization"`
	NotBefore     int64  `json:"nbf"`
}

// VerifyIDToken verifies the raw ID token against the provider's key set
// and returns the user profile carried in its claims. It checks the
// signature, issuer, audience, and expiry, rejects tokens that are not yet
// valid, and requires a non-empty subject. Every verification failure maps
// to INVALID_RESPONSE.
func (v *Verifier) VerifyIDToken(ctx context.Context, issuer, jwksURI, rawIDToken string) (*UserProfile, error) {
	if jwksURI == "" {
		return nil, oauth.NewError(oauth.CodeInvalidResponse,
			"discovery document does not advertise a JWKS endpoint")
	}

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, v.httpClient), jwksURI)
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: v.clientID})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		v.logger.Warn("ID token verification failed",
			"issuer", issuer,
			"error", err.Error(),
		)
		return nil, oauth.WrapError(oauth.CodeInvalidResponse, err, "ID token verification failed")
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, oauth.WrapError(oauth.CodeInvalidResponse, err, "failed to parse ID token claims")
	}

	// go-oidc validates signature, issuer, audience, and expiry; the
	// not-before and subject checks are ours.
	if claims.NotBefore > 0 {
		notBefore := time.Unix(claims.NotBefore, 0)
		if notBefore.After(time.Now().Add(nbfLeeway)) {
			return nil, oauth.NewError(oauth.CodeInvalidResponse,
				"ID token is not yet valid (nbf: %s)", notBefore.Format(time.RFC3339))
		}
	}
	if claims.Subject == "" {
		return nil, oauth.NewError(oauth.CodeInvalidResponse, "ID token has no subject claim")
	}

	v.logger.Debug("ID token verified",
		"issuer", issuer,
		"subject", claims.Subject,
	)

	return &UserProfile{
		ID:            claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Organization:  claims.Organization,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
