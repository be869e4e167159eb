package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagelens/pkg/oauth"
)

// SessionVersion is the schema version written into new sessions.
// Loaded blobs with an unrecognized version are treated as corrupt.
const SessionVersion = 1

// UserProfile describes the authenticated user, derived from the ID token
// at login time or synthesized when the provider issues no ID token.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Organization  string `json:"organization,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// SessionMetadata holds lifecycle bookkeeping for a session.
type SessionMetadata struct {
	// CreatedAt is when the session was created by a successful login.
	CreatedAt time.Time `json:"created_at"`

	// LastRefreshedAt is when the tokens were last replaced by a refresh.
	LastRefreshedAt time.Time `json:"last_refreshed_at,omitempty"`

	// ExpiresAt is the absolute expiry of the access token. It is always
	// recomputed from the token lifetime at creation and refresh time,
	// never copied forward. Zero means the token does not expire.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scopes are the granted OAuth scopes.
	Scopes []string `json:"scopes,omitempty"`

	// SessionID uniquely identifies this login for audit logging.
	SessionID string `json:"session_id,omitempty"`
}

// Session is the single unit of persisted authentication state: one set of
// tokens, the user they belong to, and expiry metadata. It is created by
// login, replaced wholesale by refresh, and deleted by logout.
type Session struct {
	Version  int             `json:"version"`
	User     UserProfile     `json:"user"`
	Tokens   oauth.TokenSet  `json:"tokens"`
	Metadata SessionMetadata `json:"metadata"`
}

// NewSession assembles a session from a fresh token response and the
// resolved user profile. The absolute expiry is computed here from the
// relative token lifetime.
func NewSession(tokens *oauth.TokenSet, user *UserProfile) *Session {
	now := time.Now()
	return &Session{
		Version: SessionVersion,
		User:    *user,
		Tokens:  *tokens,
		Metadata: SessionMetadata{
			CreatedAt: now,
			ExpiresAt: tokens.ExpiryAt(now),
			Scopes:    tokens.Scopes(),
			SessionID: uuid.NewString(),
		},
	}
}

// ApplyRefresh replaces the session's tokens with a refreshed set and
// recomputes the expiry metadata. The scope list is only replaced when the
// provider returned one, since providers may omit it on refresh.
func (s *Session) ApplyRefresh(tokens *oauth.TokenSet) {
	now := time.Now()
	s.Tokens = *tokens
	s.Metadata.LastRefreshedAt = now
	s.Metadata.ExpiresAt = tokens.ExpiryAt(now)
	if scopes := tokens.Scopes(); scopes != nil {
		s.Metadata.Scopes = scopes
	}
}

// Validate checks the structural integrity of a loaded session.
// A session that fails validation is indistinguishable from corruption and
// is purged by the session manager.
func (s *Session) Validate() error {
	if s.Version < 1 || s.Version > SessionVersion {
		return fmt.Errorf("unsupported session version %d", s.Version)
	}
	if s.Tokens.AccessToken == "" {
		return errors.New("session has no access token")
	}
	if s.User.ID == "" {
		return errors.New("session has no user identity")
	}
	if s.Metadata.CreatedAt.IsZero() {
		return errors.New("session has no creation timestamp")
	}
	return nil
}

// Expired reports whether the access token's absolute expiry has passed.
// Sessions without an expiry never expire.
func (s *Session) Expired() bool {
	if s.Metadata.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.Metadata.ExpiresAt)
}

// ExpiresWithin reports whether the session expires inside the given
// buffer, including sessions that are already expired.
func (s *Session) ExpiresWithin(buffer time.Duration) bool {
	if s.Metadata.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(buffer).After(s.Metadata.ExpiresAt)
}

// FallbackProfile returns the minimal synthesized profile used when the
// token response carries no ID token.
func FallbackProfile() *UserProfile {
	return &UserProfile{
		ID:   "unknown",
		Name: "Unknown User",
	}
}
