package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"pagelens/internal/auth"
	"pagelens/internal/config"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     auth.UserProfile
		expected string
	}{
		{
			name:     "email preferred",
			user:     auth.UserProfile{ID: "user-1", Email: "ada@example.com", Name: "Ada"},
			expected: "ada@example.com",
		},
		{
			name:     "name when no email",
			user:     auth.UserProfile{ID: "user-1", Name: "Ada"},
			expected: "Ada",
		},
		{
			name:     "id as last resort",
			user:     auth.UserProfile{ID: "user-1"},
			expected: "user-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := displayName(tt.user)
			if result != tt.expected {
				t.Errorf("displayName() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNewCredentialStore(t *testing.T) {
	t.Run("defaults to keyring", func(t *testing.T) {
		store, err := newCredentialStore(config.AuthConfig{})
		if err != nil {
			t.Fatalf("newCredentialStore() error: %v", err)
		}
		if _, ok := store.(*auth.KeyringStore); !ok {
			t.Errorf("expected *auth.KeyringStore, got %T", store)
		}
	})

	t.Run("file backend stores under the config directory", func(t *testing.T) {
		originalPath := authConfigPath
		defer func() { authConfigPath = originalPath }()
		authConfigPath = t.TempDir()

		store, err := newCredentialStore(config.AuthConfig{Storage: config.StorageFile})
		if err != nil {
			t.Fatalf("newCredentialStore() error: %v", err)
		}
		if _, ok := store.(*auth.FileStore); !ok {
			t.Errorf("expected *auth.FileStore, got %T", store)
		}

		credDir := filepath.Join(authConfigPath, "credentials")
		if _, err := os.Stat(credDir); err != nil {
			t.Errorf("expected credentials directory at %s: %v", credDir, err)
		}
	})
}

func TestNewIdentityFromConfig(t *testing.T) {
	originalPath := authConfigPath
	defer func() { authConfigPath = originalPath }()
	authConfigPath = t.TempDir()

	t.Run("builds identity from defaults", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Auth.Storage = config.StorageFile

		identity, err := newIdentityFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("newIdentityFromConfig() error: %v", err)
		}
		if identity == nil {
			t.Fatal("expected identity to be built")
		}
	})

	t.Run("rejects config without a provider", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Auth.BaseURL = ""

		if _, err := newIdentityFromConfig(cfg, nil); err == nil {
			t.Error("expected error for missing provider URL")
		}
	})
}

func TestLoadAuthConfigProviderOverride(t *testing.T) {
	originalPath := authConfigPath
	originalProvider := authProvider
	defer func() {
		authConfigPath = originalPath
		authProvider = originalProvider
	}()

	authConfigPath = t.TempDir()
	authProvider = "https://sso.corp.example"

	cfg, err := loadAuthConfig()
	if err != nil {
		t.Fatalf("loadAuthConfig() error: %v", err)
	}

	if cfg.Auth.BaseURL != "https://sso.corp.example" {
		t.Errorf("expected --provider to override base URL, got %q", cfg.Auth.BaseURL)
	}

	if got := resolvedProviderURL(); got != "https://sso.corp.example" {
		t.Errorf("resolvedProviderURL() = %q, want override", got)
	}
}
