package auth

import (
	"sync"
)

// MemoryStore is an in-process SecretStore used in tests and dry runs
type MemoryStore struct {
	secrets map[string]*Secret
	mu      sync.RWMutex

	// Error injection for tests
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]*Secret)}
}

// Store saves a copy of secret
func (m *MemoryStore) Store(secret *Secret) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if secret == nil || secret.Name == "" {
		return ErrInvalidSecret
	}

	c := *secret
	c.Source = "memory"
	m.secrets[secret.Name] = &c
	return nil
}

// Retrieve returns a copy of the named secret
func (m *MemoryStore) Retrieve(name string) (*Secret, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, exists := m.secrets[name]
	if !exists {
		return nil, ErrSecretNotFound
	}
	c := *secret
	return &c, nil
}

// List returns copies of all secrets
func (m *MemoryStore) List() ([]*Secret, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	secrets := make([]*Secret, 0, len(m.secrets))
	for _, secret := range m.secrets {
		c := *secret
		secrets = append(secrets, &c)
	}
	return secrets, nil
}

// Delete removes the named secret
func (m *MemoryStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.secrets[name]; !exists {
		return ErrSecretNotFound
	}
	delete(m.secrets, name)
	return nil
}

// Exists checks if the secret is stored
func (m *MemoryStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.secrets[name]
	return exists
}

// Count returns the number of stored secrets
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.secrets)
}
