package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"pagelens/pkg/oauth"
)

// DefaultCallbackPort is the default port for the local OAuth callback server.
const DefaultCallbackPort = 8765

// CallbackPath is the path component of the registered redirect URI.
const CallbackPath = "/callback"

const callbackSuccessHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Pagelens - Signed In</title>
  <style>
    body { font-family: -apple-system, system-ui, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; background: #f6f8fa; }
    .card { background: #fff; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,0.12); padding: 40px 48px; text-align: center; }
    h1 { color: #1a7f37; font-size: 22px; margin: 0 0 8px; }
    p { color: #57606a; margin: 0; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Signed in</h1>
    <p>You can close this window and return to the terminal.</p>
  </div>
</body>
</html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Pagelens - Sign In Failed</title>
  <style>
    body { font-family: -apple-system, system-ui, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; background: #f6f8fa; }
    .card { background: #fff; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,0.12); padding: 40px 48px; text-align: center; }
    h1 { color: #cf222e; font-size: 22px; margin: 0 0 8px; }
    p { color: #57606a; margin: 0; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Sign in failed</h1>
    <p>{{.Error}}{{if .Description}}: {{.Description}}{{end}}</p>
    <p>Close this window and try again from the terminal.</p>
  </div>
</body>
</html>`

var (
	successTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// CallbackResult represents the result of an OAuth callback.
type CallbackResult struct {
	// Code is the authorization code from the identity provider.
	Code string

	// State is the state parameter echoed back by the provider.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents a provider error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary loopback HTTP server for receiving the OAuth
// redirect. It accepts exactly one callback, validates the state parameter
// against the value supplied at construction, then shuts down.
type CallbackServer struct {
	port          int
	expectedState string
	server        *http.Server
	listener      net.Listener
	resultCh      chan *CallbackResult
	errorCh       chan error
	once          sync.Once
	stopOnce      sync.Once
	serverURL     string
}

// NewCallbackServer creates a callback server for one authorization attempt.
// If port is 0, an ephemeral port is chosen and can be read back via Port
// after Start. The expectedState is compared against the state parameter of
// the inbound redirect; a mismatch is rejected before any code is released.
func NewCallbackServer(port int, expectedState string) *CallbackServer {
	return &CallbackServer{
		port:          port,
		expectedState: expectedState,
		resultCh:      make(chan *CallbackResult, 1),
		errorCh:       make(chan error, 1),
	}
}

// Start binds the loopback listener and begins serving the callback route.
// The server stops automatically when the context is cancelled.
// Returns the redirect URI to use in the authorization request.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.serverURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.RedirectURI(), nil
}

// WaitForCallback blocks until the redirect arrives, the server fails, or
// the context expires. A deadline expiry is reported as NETWORK_ERROR since
// the provider never completed the round trip.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, oauth.WrapError(oauth.CodeNetworkError, ctx.Err(),
				"timed out waiting for authorization callback")
		}
		return nil, ctx.Err()
	}
}

// handleCallback handles the OAuth callback request.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	// Only handle once. A browser retry must not disturb the resolved result.
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback validates and delivers the callback parameters.
// This is called exactly once via sync.Once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	switch {
	case result.IsError():
		s.renderError(w, result.Error, result.ErrorDescription)
		s.deliverResult(result)

	case subtle.ConstantTimeCompare([]byte(result.State), []byte(s.expectedState)) != 1:
		// CSRF defense: the code is never released on a state mismatch.
		s.renderError(w, "state_mismatch", "the authorization response could not be verified")
		s.deliverError(oauth.NewError(oauth.CodeInvalidResponse,
			"state parameter mismatch in authorization callback"))

	case result.Code == "":
		s.renderError(w, "missing_code", "the authorization response contained no code")
		s.deliverError(oauth.NewError(oauth.CodeInvalidResponse,
			"authorization callback contained neither code nor error"))

	default:
		s.renderSuccess(w)
		s.deliverResult(result)
	}

	// Schedule shutdown after giving time for the response to be sent.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

func (s *CallbackServer) renderSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successTemplate.Execute(w, nil); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *CallbackServer) renderError(w http.ResponseWriter, errCode, description string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]string{"Error": errCode, "Description": description}
	if err := errorTemplate.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *CallbackServer) deliverResult(result *CallbackResult) {
	select {
	case s.resultCh <- result:
	default:
	}
}

func (s *CallbackServer) deliverError(err error) {
	select {
	case s.errorCh <- err:
	default:
	}
}

// Stop gracefully shuts down the callback server. It is safe to call
// multiple times and after a timeout or error.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// RedirectURI returns the redirect URI served by this listener.
func (s *CallbackServer) RedirectURI() string {
	return s.serverURL + CallbackPath
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}
