package auth

import (
	"testing"
	"time"

	"pagelens/pkg/oauth"
)

func testTokens() *oauth.TokenSet {
	return &oauth.TokenSet{
		AccessToken:  "access-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "refresh-token",
		Scope:        "openid profile",
	}
}

func testProfile() *UserProfile {
	return &UserProfile{
		ID:            "user-123",
		Email:         "user@example.com",
		Name:          "Test User",
		EmailVerified: true,
	}
}

func TestNewSession(t *testing.T) {
	before := time.Now()
	session := NewSession(testTokens(), testProfile())
	after := time.Now()

	if session.Version != SessionVersion {
		t.Errorf("Version = %d, want %d", session.Version, SessionVersion)
	}
	if session.User.ID != "user-123" {
		t.Errorf("User.ID = %q, want %q", session.User.ID, "user-123")
	}
	if session.Tokens.AccessToken != "access-token" {
		t.Errorf("Tokens.AccessToken = %q, want %q", session.Tokens.AccessToken, "access-token")
	}

	if session.Metadata.CreatedAt.Before(before) || session.Metadata.CreatedAt.After(after) {
		t.Errorf("CreatedAt = %v, want between %v and %v", session.Metadata.CreatedAt, before, after)
	}
	if !session.Metadata.LastRefreshedAt.IsZero() {
		t.Errorf("LastRefreshedAt = %v, want zero on a fresh session", session.Metadata.LastRefreshedAt)
	}
	if session.Metadata.SessionID == "" {
		t.Error("SessionID should not be empty")
	}

	// Absolute expiry is computed from the relative lifetime at creation.
	wantExpiry := session.Metadata.CreatedAt.Add(3600 * time.Second)
	if got := session.Metadata.ExpiresAt; got.Before(wantExpiry.Add(-time.Second)) || got.After(wantExpiry.Add(time.Second)) {
		t.Errorf("ExpiresAt = %v, want about %v", got, wantExpiry)
	}

	if len(session.Metadata.Scopes) != 2 || session.Metadata.Scopes[0] != "openid" || session.Metadata.Scopes[1] != "profile" {
		t.Errorf("Scopes = %v, want [openid profile]", session.Metadata.Scopes)
	}
}

func TestNewSession_NoExpiry(t *testing.T) {
	tokens := testTokens()
	tokens.ExpiresIn = 0

	session := NewSession(tokens, testProfile())

	if !session.Metadata.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero when the provider reports no lifetime", session.Metadata.ExpiresAt)
	}
	if session.Expired() {
		t.Error("Expired() = true, want false for a session without expiry")
	}
	if session.ExpiresWithin(time.Hour) {
		t.Error("ExpiresWithin(1h) = true, want false for a session without expiry")
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	a := NewSession(testTokens(), testProfile())
	b := NewSession(testTokens(), testProfile())

	if a.Metadata.SessionID == b.Metadata.SessionID {
		t.Errorf("two sessions share SessionID %q", a.Metadata.SessionID)
	}
}

func TestSessionApplyRefresh(t *testing.T) {
	session := NewSession(testTokens(), testProfile())
	originalCreated := session.Metadata.CreatedAt
	originalSessionID := session.Metadata.SessionID

	refreshed := &oauth.TokenSet{
		AccessToken:  "new-access-token",
		RefreshToken: "new-refresh-token",
		ExpiresIn:    7200,
		Scope:        "openid profile email",
	}
	session.ApplyRefresh(refreshed)

	if session.Tokens.AccessToken != "new-access-token" {
		t.Errorf("AccessToken = %q, want %q", session.Tokens.AccessToken, "new-access-token")
	}
	if session.Tokens.RefreshToken != "new-refresh-token" {
		t.Errorf("RefreshToken = %q, want %q", session.Tokens.RefreshToken, "new-refresh-token")
	}
	if session.Metadata.LastRefreshedAt.IsZero() {
		t.Error("LastRefreshedAt should be set after a refresh")
	}

	// Creation metadata survives the refresh.
	if session.Metadata.CreatedAt != originalCreated {
		t.Errorf("CreatedAt changed from %v to %v", originalCreated, session.Metadata.CreatedAt)
	}
	if session.Metadata.SessionID != originalSessionID {
		t.Errorf("SessionID changed from %q to %q", originalSessionID, session.Metadata.SessionID)
	}

	// Expiry is recomputed from the new lifetime, not carried forward.
	wantExpiry := session.Metadata.LastRefreshedAt.Add(7200 * time.Second)
	if got := session.Metadata.ExpiresAt; got.Before(wantExpiry.Add(-time.Second)) || got.After(wantExpiry.Add(time.Second)) {
		t.Errorf("ExpiresAt = %v, want about %v", got, wantExpiry)
	}

	if len(session.Metadata.Scopes) != 3 {
		t.Errorf("Scopes = %v, want the refreshed scope set", session.Metadata.Scopes)
	}
}

func TestSessionApplyRefresh_KeepsScopesWhenOmitted(t *testing.T) {
	session := NewSession(testTokens(), testProfile())

	// Providers may omit the scope field on refresh responses.
	session.ApplyRefresh(&oauth.TokenSet{
		AccessToken: "new-access-token",
		ExpiresIn:   3600,
	})

	if len(session.Metadata.Scopes) != 2 || session.Metadata.Scopes[0] != "openid" {
		t.Errorf("Scopes = %v, want the original [openid profile]", session.Metadata.Scopes)
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Session)
		wantErr bool
	}{
		{
			name:    "valid session",
			mutate:  func(s *Session) {},
			wantErr: false,
		},
		{
			name:    "zero version",
			mutate:  func(s *Session) { s.Version = 0 },
			wantErr: true,
		},
		{
			name:    "future version",
			mutate:  func(s *Session) { s.Version = SessionVersion + 1 },
			wantErr: true,
		},
		{
			name:    "missing access token",
			mutate:  func(s *Session) { s.Tokens.AccessToken = "" },
			wantErr: true,
		},
		{
			name:    "missing user identity",
			mutate:  func(s *Session) { s.User.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing creation timestamp",
			mutate:  func(s *Session) { s.Metadata.CreatedAt = time.Time{} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(testTokens(), testProfile())
			tt.mutate(session)

			err := session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionExpired(t *testing.T) {
	session := NewSession(testTokens(), testProfile())

	if session.Expired() {
		t.Error("fresh session reported as expired")
	}

	session.Metadata.ExpiresAt = time.Now().Add(-time.Minute)
	if !session.Expired() {
		t.Error("session past its expiry not reported as expired")
	}
}

func TestSessionExpiresWithin(t *testing.T) {
	session := NewSession(testTokens(), testProfile())

	session.Metadata.ExpiresAt = time.Now().Add(2 * time.Minute)
	if !session.ExpiresWithin(5 * time.Minute) {
		t.Error("session expiring in 2m not reported within a 5m buffer")
	}
	if session.ExpiresWithin(time.Minute) {
		t.Error("session expiring in 2m reported within a 1m buffer")
	}

	// Already-expired sessions are inside every buffer.
	session.Metadata.ExpiresAt = time.Now().Add(-time.Minute)
	if !session.ExpiresWithin(time.Second) {
		t.Error("expired session not reported within the buffer")
	}
}

func TestFallbackProfile(t *testing.T) {
	profile := FallbackProfile()

	if profile.ID != "unknown" {
		t.Errorf("ID = %q, want %q", profile.ID, "unknown")
	}
	if profile.Name != "Unknown User" {
		t.Errorf("Name = %q, want %q", profile.Name, "Unknown User")
	}
	if profile.Email != "" {
		t.Errorf("Email = %q, want empty", profile.Email)
	}
}
