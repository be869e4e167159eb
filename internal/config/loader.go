package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pagelens/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/pagelens"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory.
// The directory is expected to contain config.yaml; values not present in
// the file keep their defaults. Environment variables override both.
func LoadConfig(configPath string) (PagelensConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			applyEnvOverrides(&config)
			return config, config.Validate()
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return PagelensConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		// config malformed
		return PagelensConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	applyEnvOverrides(&config)
	return config, config.Validate()
}

// applyEnvOverrides replaces configured values with PAGELENS_* environment
// variables when set. Empty variables are ignored.
func applyEnvOverrides(config *PagelensConfig) {
	if v := os.Getenv("PAGELENS_AUTH_BASE_URL"); v != "" {
		config.Auth.BaseURL = v
	}
	if v := os.Getenv("PAGELENS_AUTH_CLIENT_ID"); v != "" {
		config.Auth.ClientID = v
	}
	if v := os.Getenv("PAGELENS_AUTH_SCOPES"); v != "" {
		config.Auth.Scopes = strings.Fields(v)
	}
	if v := os.Getenv("PAGELENS_AUTH_CALLBACK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Auth.CallbackPort = port
		} else {
			logging.Warn("ConfigLoader", "Ignoring invalid PAGELENS_AUTH_CALLBACK_PORT %q: %s", v, err)
		}
	}
	if v := os.Getenv("PAGELENS_AUTH_STORAGE"); v != "" {
		config.Auth.Storage = StorageBackend(v)
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c PagelensConfig) Validate() error {
	if c.Auth.BaseURL == "" {
		return fmt.Errorf("auth.baseUrl must not be empty")
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.clientId must not be empty")
	}
	if c.Auth.CallbackPort < 0 || c.Auth.CallbackPort > 65535 {
		return fmt.Errorf("auth.callbackPort %d is outside the valid port range", c.Auth.CallbackPort)
	}
	switch c.Auth.Storage {
	case StorageKeyring, StorageFile, "":
	default:
		return fmt.Errorf("auth.storage %q is not supported (expected %q or %q)", c.Auth.Storage, StorageKeyring, StorageFile)
	}
	return nil
}
