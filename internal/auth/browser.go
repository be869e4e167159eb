package auth

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// Browser opens an authorization URL for the user. Implementations must not
// block on the page being loaded; the callback listener is the only wait
// point of the login flow.
type Browser interface {
	Open(url string) error
}

// SystemBrowser opens URLs in the platform's default web browser.
// It supports Linux, macOS, and Windows.
type SystemBrowser struct{}

// Open launches the default browser for the given URL.
// Returns an error if the browser could not be started.
func (SystemBrowser) Open(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// Start the command but don't wait for it to complete.
	// The browser keeps running after the flow finishes.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// ManualBrowser prints the authorization URL instead of opening a browser.
// It backs the --no-browser login mode for headless or remote hosts.
type ManualBrowser struct {
	Out io.Writer
}

// Open writes navigation instructions for the URL to Out.
func (b ManualBrowser) Open(url string) error {
	_, err := fmt.Fprintf(b.Out, "Open the following URL in your browser to continue:\n\n  %s\n\n", url)
	return err
}
