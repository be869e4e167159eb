package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes provides 256 bits of entropy and encodes to 43 base64url
	// characters, the minimum verifier length allowed by RFC 7636.
	verifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	// 32 bytes keeps the state unguessable enough to serve as the CSRF nonce
	// that correlates the callback with the request that opened the browser.
	stateBytes = 32
)

// PKCEParameters holds everything a single authorization attempt needs:
// the PKCE verifier/challenge pair and the CSRF state nonce. A fresh set is
// generated per attempt and never persisted beyond the flow that used it.
type PKCEParameters struct {
	// CodeVerifier is the cryptographically random secret. It stays local
	// until the token exchange and is never part of the authorization URL.
	CodeVerifier string

	// CodeChallenge is base64url(SHA256(CodeVerifier)), sent in the
	// authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256". Plain challenges are not issued.
	CodeChallengeMethod string

	// State is an independent random nonce echoed back by the provider on
	// the callback redirect.
	State string
}

// GeneratePKCE generates a fresh PKCE parameter set for one authorization
// attempt. The verifier and state each derive from 32 bytes of crypto/rand
// output, base64url-encoded without padding.
func GeneratePKCE() (*PKCEParameters, error) {
	verifier, err := randomURLSafe(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(verifier))

	return &PKCEParameters{
		CodeVerifier:        verifier,
		CodeChallenge:       base64.RawURLEncoding.EncodeToString(hash[:]),
		CodeChallengeMethod: "S256",
		State:               state,
	}, nil
}

// GenerateState generates a random state parameter. The state links the
// authorization response back to the request that initiated it and must be
// validated on the callback before any code is exchanged.
func GenerateState() (string, error) {
	state, err := randomURLSafe(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}

// randomURLSafe returns n bytes of CSPRNG output, base64url-encoded without
// padding.
func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
