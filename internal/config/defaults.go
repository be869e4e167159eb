package config

const (
	// DefaultBaseURL is the hosted pagelens identity provider.
	DefaultBaseURL = "https://auth.pagelens.io"
	// DefaultClientID is the public OAuth client registered for the CLI.
	DefaultClientID = "pagelens-cli"
	// DefaultCallbackPort is the preferred loopback port for login redirects.
	DefaultCallbackPort = 8765
)

// DefaultScopes are the OAuth scopes requested when none are configured.
// offline_access asks the provider for a refresh token.
func DefaultScopes() []string {
	return []string{"openid", "profile", "email", "offline_access"}
}

// GetDefaultConfig returns the built-in configuration used when no config
// file exists. Loaded files override these values field by field.
func GetDefaultConfig() PagelensConfig {
	return PagelensConfig{
		Auth: AuthConfig{
			BaseURL:      DefaultBaseURL,
			ClientID:     DefaultClientID,
			Scopes:       DefaultScopes(),
			CallbackPort: DefaultCallbackPort,
			Storage:      StorageKeyring,
		},
	}
}
