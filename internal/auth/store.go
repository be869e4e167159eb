package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by CredentialStore.Get when no blob is stored
// under the requested service/account pair.
var ErrNotFound = errors.New("no credential stored")

// CredentialStore is an opaque secret blob store keyed by service and
// account name. The auth package owns serialization; stores never interpret
// the blob contents.
//
// Delete is idempotent: removing an absent entry is not an error.
type CredentialStore interface {
	Get(service, account string) ([]byte, error)
	Set(service, account string, blob []byte) error
	Delete(service, account string) error
}

// KeyringStore persists blobs in the operating system keyring
// (Secret Service on Linux, Keychain on macOS, Credential Manager on
// Windows).
type KeyringStore struct{}

// NewKeyringStore creates a store backed by the system keyring.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Get(service, account string) ([]byte, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return []byte(secret), nil
}

func (s *KeyringStore) Set(service, account string, blob []byte) error {
	if err := keyring.Set(service, account, string(blob)); err != nil {
		return fmt.Errorf("failed to write to keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// FileStore persists blobs as files under a directory, one file per
// service/account pair. It is the fallback for hosts without a keyring
// daemon.
//
// SECURITY: files are written with 0600 permissions and the directory is
// created with 0700. Blob contents are never logged.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// blobPath derives a filesystem-safe file name from the service/account
// pair using a truncated SHA-256 hash.
func (s *FileStore) blobPath(service, account string) string {
	hash := sha256.Sum256([]byte(service + "\x00" + account))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:16])+".json")
}

func (s *FileStore) Get(service, account string) ([]byte, error) {
	path := s.blobPath(service, account)

	// #nosec G304 -- path is derived from a hash, not user input
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	return blob, nil
}

func (s *FileStore) Set(service, account string, blob []byte) error {
	if err := os.WriteFile(s.blobPath(service, account), blob, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(service, account string) error {
	err := os.Remove(s.blobPath(service, account))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory CredentialStore for tests and ephemeral use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

func memoryKey(service, account string) string {
	return service + "\x00" + account
}

func (s *MemoryStore) Get(service, account string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[memoryKey(service, account)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (s *MemoryStore) Set(service, account string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.blobs[memoryKey(service, account)] = stored
	return nil
}

func (s *MemoryStore) Delete(service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, memoryKey(service, account))
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
