package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"pagelens/pkg/oauth"
)

// testLogger returns a logger that discards output, keeping test runs quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionManagerRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	manager := NewSessionManager(store, "", "", testLogger())

	session := NewSession(testTokens(), testProfile())
	if err := manager.Save(session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Empty service/account names fall back to the pagelens defaults.
	if _, err := store.Get(DefaultServiceName, DefaultAccountName); err != nil {
		t.Errorf("session not stored under default service/account: %v", err)
	}

	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil for a stored session")
	}

	if loaded.User.ID != session.User.ID {
		t.Errorf("User.ID = %q, want %q", loaded.User.ID, session.User.ID)
	}
	if loaded.Tokens.AccessToken != session.Tokens.AccessToken {
		t.Errorf("AccessToken = %q, want %q", loaded.Tokens.AccessToken, session.Tokens.AccessToken)
	}
	if loaded.Tokens.RefreshToken != session.Tokens.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", loaded.Tokens.RefreshToken, session.Tokens.RefreshToken)
	}
	if loaded.Metadata.SessionID != session.Metadata.SessionID {
		t.Errorf("SessionID = %q, want %q", loaded.Metadata.SessionID, session.Metadata.SessionID)
	}
	if !loaded.Metadata.ExpiresAt.Equal(session.Metadata.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.Metadata.ExpiresAt, session.Metadata.ExpiresAt)
	}
	if len(loaded.Metadata.Scopes) != len(session.Metadata.Scopes) {
		t.Errorf("Scopes = %v, want %v", loaded.Metadata.Scopes, session.Metadata.Scopes)
	}
}

func TestSessionManagerLoad_Absent(t *testing.T) {
	manager := NewSessionManager(NewMemoryStore(), "", "", testLogger())

	session, err := manager.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for an absent session", err)
	}
	if session != nil {
		t.Errorf("Load() = %+v, want nil for an absent session", session)
	}
}

func TestSessionManagerLoad_PurgesUnparseable(t *testing.T) {
	store := NewMemoryStore()
	manager := NewSessionManager(store, "", "", testLogger())

	if err := store.Set(DefaultServiceName, DefaultAccountName, []byte("{not json")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	session, err := manager.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want corruption treated as absence", err)
	}
	if session != nil {
		t.Errorf("Load() = %+v, want nil for a corrupted blob", session)
	}

	// The corrupted blob is purged so the next login starts clean.
	if store.Len() != 0 {
		t.Errorf("store holds %d blobs after purge, want 0", store.Len())
	}
}

func TestSessionManagerLoad_PurgesInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Session)
	}{
		{
			name:   "missing tokens",
			mutate: func(s *Session) { s.Tokens = oauth.TokenSet{} },
		},
		{
			name:   "missing user",
			mutate: func(s *Session) { s.User = UserProfile{} },
		},
		{
			name:   "missing metadata",
			mutate: func(s *Session) { s.Metadata = SessionMetadata{} },
		},
		{
			name:   "unknown version",
			mutate: func(s *Session) { s.Version = 99 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			manager := NewSessionManager(store, "", "", testLogger())

			session := NewSession(testTokens(), testProfile())
			tt.mutate(session)

			blob, err := json.Marshal(session)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if err := store.Set(DefaultServiceName, DefaultAccountName, blob); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			loaded, err := manager.Load()
			if err != nil {
				t.Fatalf("Load() error = %v, want structural corruption treated as absence", err)
			}
			if loaded != nil {
				t.Errorf("Load() = %+v, want nil", loaded)
			}
			if store.Len() != 0 {
				t.Errorf("store holds %d blobs after purge, want 0", store.Len())
			}
		})
	}
}

func TestSessionManagerDelete_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	manager := NewSessionManager(store, "", "", testLogger())

	if err := manager.Save(NewSession(testTokens(), testProfile())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := manager.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := manager.Delete(); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d blobs after delete, want 0", store.Len())
	}
}

func TestSessionManagerCustomSlot(t *testing.T) {
	store := NewMemoryStore()
	manager := NewSessionManager(store, "custom-svc", "work", testLogger())

	if err := manager.Save(NewSession(testTokens(), testProfile())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := store.Get("custom-svc", "work"); err != nil {
		t.Errorf("session not stored under the custom slot: %v", err)
	}
	if _, err := store.Get(DefaultServiceName, DefaultAccountName); err == nil {
		t.Error("session unexpectedly stored under the default slot")
	}
}

func TestSessionManagerRoundTrip_PreservesTimestamps(t *testing.T) {
	store := NewMemoryStore()
	manager := NewSessionManager(store, "", "", testLogger())

	session := NewSession(testTokens(), testProfile())
	session.ApplyRefresh(&oauth.TokenSet{AccessToken: "rotated", ExpiresIn: 1800})

	if err := manager.Save(session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil")
	}

	if !loaded.Metadata.CreatedAt.Equal(session.Metadata.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.Metadata.CreatedAt, session.Metadata.CreatedAt)
	}
	if loaded.Metadata.LastRefreshedAt.IsZero() {
		t.Error("LastRefreshedAt lost in the round trip")
	}
	if loaded.Expired() {
		t.Errorf("loaded session expired, ExpiresAt = %v, now = %v", loaded.Metadata.ExpiresAt, time.Now())
	}
}
