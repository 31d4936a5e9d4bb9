// Package auth stores the static API secrets prompthunter needs: the source
// API bearer token and the classification service key. Secrets live in the
// system keyring when one is available, in an encrypted file otherwise, and
// can always be supplied through the environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Well-known secret names
const (
	SecretTwitterBearer   = "twitter_bearer_token"
	SecretAnthropicKey    = "anthropic_api_key"
	SecretClassifierToken = "classifier_token"
)

// KnownSecrets lists the names the CLI accepts
var KnownSecrets = []string{SecretTwitterBearer, SecretAnthropicKey, SecretClassifierToken}

// IsKnownSecret reports whether name is one of KnownSecrets
func IsKnownSecret(name string) bool {
	for _, k := range KnownSecrets {
		if k == name {
			return true
		}
	}
	return false
}

// Secret is one named credential
type Secret struct {
	Name         string    `json:"name"`
	Value        string    `json:"value"`
	Source       string    `json:"source,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// SecretStore is a backend that holds secrets
type SecretStore interface {
	// Store saves a secret, replacing any previous value
	Store(secret *Secret) error

	// Retrieve gets a secret by name
	Retrieve(name string) (*Secret, error)

	// List returns every secret the backend can enumerate
	List() ([]*Secret, error)

	// Delete removes a secret
	Delete(name string) error

	// Exists checks if a secret is present
	Exists(name string) bool
}

// Manager tries each backend in order
type Manager struct {
	stores []SecretStore
}

// NewManager creates a manager with keyring, encrypted file and environment backends.
// configDir holds the encrypted file; empty means the platform config directory.
func NewManager(configDir string) (*Manager, error) {
	var stores []SecretStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if configDir == "" {
		var err error
		configDir, err = getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "secrets.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit backends
func NewManagerWithStores(stores ...SecretStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the secret in the first backend that accepts it
func (m *Manager) Store(secret *Secret) error {
	if secret == nil || secret.Name == "" {
		return errors.New("secret name is required")
	}
	if secret.Value == "" {
		return errors.New("secret value is required")
	}

	secret.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(secret)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store secret: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the secret from the first backend that has it
func (m *Manager) Retrieve(name string) (*Secret, error) {
	for _, store := range m.stores {
		if secret, err := store.Retrieve(name); err == nil && secret != nil {
			return secret, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrSecretNotFound)
}

// Value returns the secret's value, or "" when it is not stored anywhere
func (m *Manager) Value(name string) string {
	secret, err := m.Retrieve(name)
	if err != nil {
		return ""
	}
	return secret.Value
}

// List returns the newest version of every secret across backends, sorted by name.
// The keyring cannot enumerate, so known names are probed individually.
func (m *Manager) List() ([]*Secret, error) {
	byName := make(map[string]*Secret)
	keep := func(s *Secret) {
		if existing, ok := byName[s.Name]; !ok || s.LastModified.After(existing.LastModified) {
			byName[s.Name] = s
		}
	}

	for _, store := range m.stores {
		secrets, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range secrets {
			keep(s)
		}
	}
	for _, name := range KnownSecrets {
		if _, ok := byName[name]; ok {
			continue
		}
		if s, err := m.Retrieve(name); err == nil {
			keep(s)
		}
	}

	result := make([]*Secret, 0, len(byName))
	for _, s := range byName {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the secret from every backend that holds it
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete(name)
		switch {
		case err == nil:
			deleted = true
		case !errors.Is(err, ErrSecretNotFound) && !errors.Is(err, ErrStoreUnavailable):
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete secret: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "prompthunter")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "prompthunter")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "prompthunter")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "prompthunter")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the secret with the value masked
func Sanitize(secret *Secret) *Secret {
	if secret == nil {
		return nil
	}
	masked := *secret
	masked.Value = MaskString(secret.Value)
	return &masked
}

// MaskString masks all but the first 4 and last 4 characters of a string
func MaskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSecretNotFound   = errors.New("secret not found")
	ErrInvalidSecret    = errors.New("invalid secret")
	ErrStoreUnavailable = errors.New("secret store unavailable")
)
