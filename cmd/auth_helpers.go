package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"pagelens/internal/auth"
	"pagelens/internal/config"
	"pagelens/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/text"
)

// loadAuthConfig loads the configuration directory selected by --config-path
// and applies the --provider flag override.
func loadAuthConfig() (config.PagelensConfig, error) {
	cfg, err := config.LoadConfig(authConfigPath)
	if err != nil {
		return config.PagelensConfig{}, err
	}
	if authProvider != "" {
		cfg.Auth.BaseURL = authProvider
	}
	return cfg, nil
}

// resolvedProviderURL returns the provider base URL the auth commands will
// talk to, for display purposes.
func resolvedProviderURL() string {
	cfg, err := loadAuthConfig()
	if err != nil {
		return authProvider
	}
	return cfg.Auth.BaseURL
}

// newIdentityFromFlags builds the identity facade from the configuration
// selected by the auth command flags. A nil browser keeps the system
// browser default.
func newIdentityFromFlags(browser auth.Browser) (*auth.Identity, error) {
	cfg, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}
	return newIdentityFromConfig(cfg, browser)
}

func newIdentityFromConfig(cfg config.PagelensConfig, browser auth.Browser) (*auth.Identity, error) {
	store, err := newCredentialStore(cfg.Auth)
	if err != nil {
		return nil, err
	}

	opts := []auth.IdentityOption{auth.WithLogger(logging.Logger())}
	if browser != nil {
		opts = append(opts, auth.WithBrowser(browser))
	}

	return auth.NewIdentity(auth.Config{
		BaseURL:      cfg.Auth.BaseURL,
		ClientID:     cfg.Auth.ClientID,
		Scopes:       cfg.Auth.Scopes,
		CallbackPort: cfg.Auth.CallbackPort,
	}, store, opts...)
}

// newCredentialStore selects the storage backend configured for sessions.
// File storage lives under the configuration directory so that
// --config-path isolates sessions as well as settings.
func newCredentialStore(cfg config.AuthConfig) (auth.CredentialStore, error) {
	switch cfg.Storage {
	case config.StorageFile:
		return auth.NewFileStore(filepath.Join(authConfigPath, "credentials"))
	default:
		return auth.NewKeyringStore(), nil
	}
}

// displayName picks the most recognizable identifier for a user.
func displayName(user auth.UserProfile) string {
	if user.Email != "" {
		return user.Email
	}
	if user.Name != "" {
		return user.Name
	}
	return user.ID
}

// formatDuration formats a duration in human-friendly units.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	// Token is expired
	expiredAgo := -remaining
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(expiredAgo))
}
