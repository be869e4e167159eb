package config

// PagelensConfig is the root configuration structure for pagelens.
type PagelensConfig struct {
	// Auth configures the identity provider connection and credential storage
	Auth AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig describes how pagelens authenticates against the cloud service.
type AuthConfig struct {
	// BaseURL is the identity provider base URL used for endpoint discovery
	BaseURL string `yaml:"baseUrl,omitempty"`
	// ClientID is the public OAuth client identifier registered for the CLI
	ClientID string `yaml:"clientId,omitempty"`
	// Scopes are the OAuth scopes requested during login
	Scopes []string `yaml:"scopes,omitempty"`
	// CallbackPort is the preferred local port for the login redirect listener.
	// Zero selects an ephemeral port.
	CallbackPort int `yaml:"callbackPort,omitempty"`
	// Storage selects where session credentials are persisted ("keyring" or "file")
	Storage StorageBackend `yaml:"storage,omitempty"`
}

// StorageBackend identifies a credential storage mechanism.
type StorageBackend string

const (
	// StorageKeyring stores credentials in the operating system keychain
	StorageKeyring StorageBackend = "keyring"
	// StorageFile stores credentials in files under the config directory
	StorageFile StorageBackend = "file"
)
