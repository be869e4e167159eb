package oauth

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one of the closed set of failure classes the
// authentication subsystem reports. Every error that crosses the subsystem
// boundary carries exactly one of these codes.
type ErrorCode string

const (
	// CodeAlreadyAuthenticated is returned by login when a valid session
	// already exists. The corrective action is to log out first.
	CodeAlreadyAuthenticated ErrorCode = "ALREADY_AUTHENTICATED"

	// CodeNotAuthenticated is returned by operations that require a session
	// when none exists.
	CodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"

	// CodeBrowserFailed indicates the system browser could not be launched.
	// The error carries the authorization URL so callers can present it for
	// manual navigation.
	CodeBrowserFailed ErrorCode = "BROWSER_FAILED"

	// CodeNetworkError covers transport-level failures: DNS, connection
	// refused, timeouts, including the callback wait timing out.
	CodeNetworkError ErrorCode = "NETWORK_ERROR"

	// CodeInvalidResponse covers protocol-level failures: OAuth error
	// responses during exchange or discovery, unparseable bodies, and
	// ID token verification failures.
	CodeInvalidResponse ErrorCode = "INVALID_RESPONSE"

	// CodeRefreshFailed marks a failed token refresh. Callers must treat the
	// stored session as gone; the identity client wipes it before returning
	// this code.
	CodeRefreshFailed ErrorCode = "REFRESH_FAILED"
)

// Error is the tagged error type for all authentication failures.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// AuthURL is set for CodeBrowserFailed so the caller can surface the
	// URL for manual opening. Empty otherwise.
	AuthURL string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. This lets
// callers match on sentinel instances, e.g. errors.Is(err,
// &oauth.Error{Code: oauth.CodeNotAuthenticated}).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewError creates an Error with the given code and formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// BrowserFailedError creates a CodeBrowserFailed error carrying the
// authorization URL the caller should surface for manual navigation.
func BrowserFailedError(authURL string, err error) *Error {
	return &Error{
		Code:    CodeBrowserFailed,
		Message: "failed to open browser for authentication",
		AuthURL: authURL,
		Err:     err,
	}
}

// HasCode reports whether err is (or wraps) an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
