package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultServiceName is the credential store service key for pagelens.
const DefaultServiceName = "pagelens"

// DefaultAccountName is the single account slot. Exactly one identity is
// stored at a time.
const DefaultAccountName = "default"

// SessionManager serializes sessions through a CredentialStore under a
// fixed service/account key.
//
// SECURITY: token values are never logged. Only session IDs, user IDs, and
// expiry timestamps appear in the audit trail.
type SessionManager struct {
	store   CredentialStore
	service string
	account string
	logger  *slog.Logger
}

// NewSessionManager creates a session manager over the given store.
// Empty service or account names fall back to the pagelens defaults; a nil
// logger falls back to slog.Default.
func NewSessionManager(store CredentialStore, service, account string, logger *slog.Logger) *SessionManager {
	if service == "" {
		service = DefaultServiceName
	}
	if account == "" {
		account = DefaultAccountName
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionManager{
		store:   store,
		service: service,
		account: account,
		logger:  logger,
	}
}

// Save persists the session as a JSON blob.
func (m *SessionManager) Save(session *Session) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if err := m.store.Set(m.service, m.account, blob); err != nil {
		m.logger.Warn("SECURITY_AUDIT: session storage failed",
			"event", "session_store_failed",
			"session_id", session.Metadata.SessionID,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.logger.Info("SECURITY_AUDIT: session stored",
		"event", "session_stored",
		"session_id", session.Metadata.SessionID,
		"user_id", session.User.ID,
		"expires_at", session.Metadata.ExpiresAt.Format(time.RFC3339),
		"has_refresh_token", session.Tokens.RefreshToken != "",
	)
	return nil
}

// Load reads the stored session. It returns (nil, nil) when no session is
// stored. A blob that fails to parse or validate is purged from the store
// and reported as absent, never as an error: corruption is equivalent to
// "never logged in".
func (m *SessionManager) Load() (*Session, error) {
	blob, err := m.store.Get(m.service, m.account)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(blob, &session); err != nil {
		m.purgeCorrupt("unparseable", err)
		return nil, nil
	}

	if err := session.Validate(); err != nil {
		m.purgeCorrupt("invalid", err)
		return nil, nil
	}

	return &session, nil
}

// purgeCorrupt removes a corrupted blob from the store.
func (m *SessionManager) purgeCorrupt(reason string, cause error) {
	m.logger.Warn("SECURITY_AUDIT: corrupted session purged",
		"event", "session_purged",
		"reason", reason,
		"error", cause.Error(),
	)
	if err := m.store.Delete(m.service, m.account); err != nil {
		m.logger.Warn("failed to purge corrupted session", "error", err.Error())
	}
}

// Delete removes the stored session. Deleting an absent session is not an
// error.
func (m *SessionManager) Delete() error {
	if err := m.store.Delete(m.service, m.account); err != nil {
		m.logger.Warn("SECURITY_AUDIT: session deletion failed",
			"event", "session_delete_failed",
			"error", err.Error(),
		)
		return err
	}

	m.logger.Info("SECURITY_AUDIT: session deleted",
		"event", "session_deleted",
	)
	return nil
}
