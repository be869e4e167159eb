package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"pagelens/internal/auth"
	"pagelens/pkg/oauth"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the pagelens cloud service",
	Long: `Sign in to the pagelens cloud service using your browser.

This command starts an OAuth authorization flow: it opens the provider's
sign-in page in your browser, waits for the redirect back to localhost,
and stores the resulting session. If a browser cannot be opened from this
environment, rerun with --no-browser to print the sign-in URL instead.

Examples:
  pagelens auth login                   # Sign in via the system browser
  pagelens auth login --no-browser      # Print the URL, do not open a browser
  pagelens auth login --provider <url>  # Sign in against a specific provider`,
	RunE: runAuthLogin,
}

// Login-specific flags
var loginNoBrowser bool

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var browser auth.Browser
	if loginNoBrowser {
		browser = auth.ManualBrowser{Out: cmd.OutOrStdout()}
	}

	identity, err := newIdentityFromFlags(browser)
	if err != nil {
		return err
	}

	// The spinner would garble the URL printed by --no-browser, so it only
	// runs when the browser is opened automatically.
	var s *spinner.Spinner
	if !authQuiet && !loginNoBrowser {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Waiting for the browser sign-in to complete..."
		s.Start()
	}

	session, err := identity.Login(ctx)
	if s != nil {
		s.Stop()
	}

	if err != nil {
		var authErr *oauth.Error
		if errors.As(err, &authErr) {
			switch authErr.Code {
			case oauth.CodeAlreadyAuthenticated:
				if status, serr := identity.Status(); serr == nil && status != nil {
					authPrint("Already logged in as %s.\n", displayName(status.User))
				} else {
					authPrintln("Already logged in.")
				}
				authPrintln("Run 'pagelens auth logout' to sign out first.")
			case oauth.CodeBrowserFailed:
				fmt.Fprintln(os.Stderr, "Could not open a browser from this environment.")
				if authErr.AuthURL != "" {
					fmt.Fprintf(os.Stderr, "\nThe sign-in URL was:\n  %s\n\n", authErr.AuthURL)
				}
				fmt.Fprintln(os.Stderr, "Rerun with --no-browser to complete the sign-in manually.")
			}
		}
		return err
	}

	authPrint("Logged in as %s.\n", displayName(session.User))
	if !session.Metadata.ExpiresAt.IsZero() {
		authPrint("Session expires %s.\n", formatExpiryWithDirection(session.Metadata.ExpiresAt))
	}
	return nil
}
