package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"pagelens/internal/config"
	"pagelens/pkg/oauth"

	"github.com/spf13/cobra"
)

var (
	authProvider   string
	authConfigPath string
	authQuiet      bool
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for pagelens",
	Long: `Manage authentication for pagelens CLI commands.

The auth command group provides subcommands to login, logout, check status,
and refresh the session the capture pipeline uses to talk to the pagelens
cloud service.

Examples:
  pagelens auth login                   # Sign in to the configured provider
  pagelens auth login --no-browser      # Print the sign-in URL instead of opening a browser
  pagelens auth status                  # Show authentication status
  pagelens auth logout                  # Sign out and clear the stored session
  pagelens auth logout --yes            # Sign out without confirmation
  pagelens auth refresh                 # Force a token refresh
  pagelens auth whoami                  # Show current identity`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Long: `Clear the stored session and its OAuth tokens.

This command removes the cached session, requiring you to sign in again
before the next capture upload.

Examples:
  pagelens auth logout                  # Sign out with confirmation
  pagelens auth logout --yes            # Sign out without confirmation`,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force token refresh",
	Long: `Force a refresh of the stored session tokens.

This command exchanges the stored refresh token for fresh tokens, which
can be useful if you're experiencing authentication issues. If the
refresh is rejected the session is cleared and you must sign in again.

Examples:
  pagelens auth refresh                 # Refresh the stored session`,
	RunE: runAuthRefresh,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show current authenticated identity",
	Long: `Show the currently authenticated identity and session information.

This command displays details about your current authentication state,
including the user identity, the provider, and token expiration. It
works even when the session has expired.

Examples:
  pagelens auth whoami                  # Show the signed-in identity`,
	RunE: runAuthWhoami,
}

// Logout-specific flags
var logoutYes bool

// authPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrint(format string, args ...interface{}) {
	if !authQuiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrintln(a ...interface{}) {
	if !authQuiet {
		fmt.Println(a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)

	// Common flags for auth commands (shared across subcommands)
	authCmd.PersistentFlags().StringVar(&authProvider, "provider", "", "Identity provider base URL (overrides config)")
	authCmd.PersistentFlags().StringVar(&authConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")

	// Logout-specific flags (only on logout subcommand)
	authLogoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip confirmation prompt")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	identity, err := newIdentityFromFlags(nil)
	if err != nil {
		return err
	}

	status, err := identity.Status()
	if err != nil {
		return err
	}
	if status == nil {
		authPrintln("Not logged in.")
		return nil
	}

	if !logoutYes {
		fmt.Printf("Sign out %s? [y/N]: ", displayName(status.User))

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := identity.Logout(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	authPrintln("Logged out.")
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	identity, err := newIdentityFromFlags(nil)
	if err != nil {
		return err
	}

	authPrintln("Refreshing session...")
	if err := identity.Refresh(ctx); err != nil {
		if oauth.HasCode(err, oauth.CodeNotAuthenticated) {
			fmt.Fprintln(os.Stderr, "No session to refresh. Run 'pagelens auth login' to sign in.")
		}
		if oauth.HasCode(err, oauth.CodeRefreshFailed) {
			fmt.Fprintln(os.Stderr, "The session could not be refreshed and has been cleared.")
			fmt.Fprintln(os.Stderr, "Run 'pagelens auth login' to sign in again.")
		}
		return err
	}

	authPrintln("Session refreshed.")
	if status, err := identity.Status(); err == nil && status != nil && !status.Metadata.ExpiresAt.IsZero() {
		authPrint("Expires:   %s\n", formatExpiryWithDirection(status.Metadata.ExpiresAt))
	}
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	identity, err := newIdentityFromFlags(nil)
	if err != nil {
		return err
	}

	status, err := identity.Status()
	if err != nil {
		return err
	}
	if status == nil {
		authPrintln("Not logged in.")
		authPrintln("\nTo sign in, run:")
		authPrintln("  pagelens auth login")
		return oauth.NewError(oauth.CodeNotAuthenticated, "not logged in")
	}

	// Display identity information - identity first, then session details
	if status.User.Email != "" {
		fmt.Printf("Identity:  %s\n", status.User.Email)
	} else {
		fmt.Printf("Identity:  %s\n", status.User.ID)
	}
	if status.User.Name != "" {
		fmt.Printf("Name:      %s\n", status.User.Name)
	}
	fmt.Printf("Provider:  %s\n", resolvedProviderURL())
	if status.Metadata.SessionID != "" {
		fmt.Printf("Session:   %s\n", status.Metadata.SessionID)
	}
	if !status.Metadata.ExpiresAt.IsZero() {
		fmt.Printf("Expires:   %s\n", formatExpiryWithDirection(status.Metadata.ExpiresAt))
	}

	return nil
}
