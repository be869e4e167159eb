package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pagelens/internal/testing/mockidp"
	"pagelens/pkg/oauth"
)

// startIdP runs a mock identity provider for the duration of the test.
func startIdP(t *testing.T, cfg mockidp.Config) *mockidp.Server {
	t.Helper()

	idp, err := mockidp.New(cfg)
	if err != nil {
		t.Fatalf("mockidp.New() error = %v", err)
	}
	if _, err := idp.Start(context.Background()); err != nil {
		t.Fatalf("mockidp Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = idp.Stop(ctx)
	})

	return idp
}

// signIDToken mints an ID token with sensible defaults, letting each test
// break exactly one claim.
func signIDToken(t *testing.T, idp *mockidp.Server, mutate func(jwt.MapClaims)) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            idp.IssuerURL(),
		"sub":            "user-42",
		"aud":            idp.ClientID(),
		"exp":            now.Add(time.Hour).Unix(),
		"iat":            now.Unix(),
		"email":          "dev@example.com",
		"email_verified": true,
		"name":           "Dev Example",
		"organization":   "Example Corp",
		"picture":        "https://example.com/avatar.png",
	}
	if mutate != nil {
		mutate(claims)
	}

	raw, err := idp.SignClaims(claims)
	if err != nil {
		t.Fatalf("SignClaims() error = %v", err)
	}
	return raw
}

func TestVerifyIDToken(t *testing.T) {
	idp := startIdP(t, mockidp.Config{})
	verifier := NewVerifier(idp.ClientID(), nil, testLogger())
	ctx := context.Background()

	raw := signIDToken(t, idp, nil)

	profile, err := verifier.VerifyIDToken(ctx, idp.IssuerURL(), idp.JWKSURL(), raw)
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}

	if profile.ID != "user-42" {
		t.Errorf("ID = %q, want %q", profile.ID, "user-42")
	}
	if profile.Email != "dev@example.com" {
		t.Errorf("Email = %q, want %q", profile.Email, "dev@example.com")
	}
	if profile.Name != "Dev Example" {
		t.Errorf("Name = %q, want %q", profile.Name, "Dev Example")
	}
	if profile.Organization != "Example Corp" {
		t.Errorf("Organization = %q, want %q", profile.Organization, "Example Corp")
	}
	if profile.Picture != "https://example.com/avatar.png" {
		t.Errorf("Picture = %q, want the avatar URL", profile.Picture)
	}
	if !profile.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
}

func TestVerifyIDToken_Rejections(t *testing.T) {
	idp := startIdP(t, mockidp.Config{})
	verifier := NewVerifier(idp.ClientID(), nil, testLogger())
	ctx := context.Background()

	tests := []struct {
		name        string
		mutate      func(jwt.MapClaims)
		wantMessage string
	}{
		{
			name:   "wrong audience",
			mutate: func(c jwt.MapClaims) { c["aud"] = "some-other-client" },
		},
		{
			name:   "expired",
			mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() },
		},
		{
			name:   "wrong issuer",
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
		},
		{
			name:        "not yet valid",
			mutate:      func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(time.Hour).Unix() },
			wantMessage: "not yet valid",
		},
		{
			name:        "missing subject",
			mutate:      func(c jwt.MapClaims) { delete(c, "sub") },
			wantMessage: "subject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := signIDToken(t, idp, tt.mutate)

			_, err := verifier.VerifyIDToken(ctx, idp.IssuerURL(), idp.JWKSURL(), raw)
			if err == nil {
				t.Fatal("VerifyIDToken() succeeded, want rejection")
			}
			if !oauth.HasCode(err, oauth.CodeInvalidResponse) {
				t.Errorf("error = %v, want code %s", err, oauth.CodeInvalidResponse)
			}
			if tt.wantMessage != "" && !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantMessage)
			}
		})
	}
}

func TestVerifyIDToken_ForeignSignature(t *testing.T) {
	idp := startIdP(t, mockidp.Config{})
	verifier := NewVerifier(idp.ClientID(), nil, testLogger())

	// A token signed by a different key, with otherwise perfect claims,
	// must not verify against the provider's published key set.
	rogue, err := mockidp.New(mockidp.Config{})
	if err != nil {
		t.Fatalf("mockidp.New() error = %v", err)
	}
	raw, err := rogue.SignClaims(jwt.MapClaims{
		"iss": idp.IssuerURL(),
		"sub": "user-42",
		"aud": idp.ClientID(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("SignClaims() error = %v", err)
	}

	_, err = verifier.VerifyIDToken(context.Background(), idp.IssuerURL(), idp.JWKSURL(), raw)
	if err == nil {
		t.Fatal("VerifyIDToken() accepted a token signed by a foreign key")
	}
	if !oauth.HasCode(err, oauth.CodeInvalidResponse) {
		t.Errorf("error = %v, want code %s", err, oauth.CodeInvalidResponse)
	}
}

func TestVerifyIDToken_MissingJWKSURI(t *testing.T) {
	idp := startIdP(t, mockidp.Config{})
	verifier := NewVerifier(idp.ClientID(), nil, testLogger())

	raw := signIDToken(t, idp, nil)

	_, err := verifier.VerifyIDToken(context.Background(), idp.IssuerURL(), "", raw)
	if err == nil {
		t.Fatal("VerifyIDToken() succeeded without a JWKS endpoint")
	}
	if !oauth.HasCode(err, oauth.CodeInvalidResponse) {
		t.Errorf("error = %v, want code %s", err, oauth.CodeInvalidResponse)
	}
	if !strings.Contains(err.Error(), "JWKS") {
		t.Errorf("error = %v, want mention of the JWKS endpoint", err)
	}
}
