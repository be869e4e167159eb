package cmd

import (
	"strings"

	"pagelens/internal/config"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the current authentication status.

This command displays whether a session is stored, who it belongs to,
when it expires, and whether it can be refreshed. It reads only local
state and never contacts the identity provider.

Examples:
  pagelens auth status                  # Show auth status
  pagelens auth status -q               # Suppress output, exit code only`,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadAuthConfig()
	if err != nil {
		return err
	}

	identity, err := newIdentityFromConfig(cfg, nil)
	if err != nil {
		return err
	}

	authPrintln("Pagelens Cloud")
	authPrint("  Provider:  %s\n", cfg.Auth.BaseURL)

	status, err := identity.Status()
	if err != nil {
		return err
	}

	if status == nil {
		authPrint("  Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
		authPrint("             Run: pagelens auth login\n")
		return nil
	}

	if status.Expired() {
		authPrint("  Status:    %s\n", text.FgYellow.Sprint("Session expired"))
	} else {
		authPrint("  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	}
	authPrint("  User:      %s\n", displayName(status.User))
	if !status.Metadata.ExpiresAt.IsZero() {
		authPrint("  Expires:   %s\n", formatExpiryWithDirection(status.Metadata.ExpiresAt))
	}
	if status.Tokens.RefreshToken != "" {
		authPrint("  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		authPrint("  Refresh:   %s\n", text.FgYellow.Sprint("Not available (re-auth required on expiry)"))
	}
	if len(status.Metadata.Scopes) > 0 {
		authPrint("  Scopes:    %s\n", strings.Join(status.Metadata.Scopes, " "))
	}
	authPrint("  Storage:   %s\n", storageLabel(cfg.Auth.Storage))

	if status.Expired() {
		if status.Tokens.RefreshToken != "" {
			authPrint("\n  Run: pagelens auth refresh\n")
		} else {
			authPrint("\n  Run: pagelens auth login\n")
		}
	}

	return nil
}

// storageLabel names the storage backend in effect, resolving the empty
// default to keyring.
func storageLabel(backend config.StorageBackend) string {
	if backend == "" {
		return string(config.StorageKeyring)
	}
	return string(backend)
}
