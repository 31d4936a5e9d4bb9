package auth

import (
	"os"
	"strings"
)

// envVars maps secret names to the variables checked, in order
var envVars = map[string][]string{
	SecretTwitterBearer:   {"PROMPTHUNTER_TWITTER_BEARER_TOKEN", "TWITTER_BEARER_TOKEN"},
	SecretAnthropicKey:    {"PROMPTHUNTER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	SecretClassifierToken: {"PROMPTHUNTER_CLASSIFIER_TOKEN"},
}

// EnvironmentStore reads secrets from environment variables. It is read-only.
type EnvironmentStore struct {
	lookup func(string) string
}

// NewEnvironmentStore creates a store over the process environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.Getenv}
}

// EnvVarsFor lists the variables consulted for name
func EnvVarsFor(name string) []string {
	if vars, ok := envVars[name]; ok {
		return vars
	}
	return []string{"PROMPTHUNTER_" + strings.ToUpper(name)}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(secret *Secret) error {
	return ErrStoreUnavailable
}

// Retrieve gets a secret from the first set variable
func (e *EnvironmentStore) Retrieve(name string) (*Secret, error) {
	for _, v := range EnvVarsFor(name) {
		if value := e.lookup(v); value != "" {
			return &Secret{Name: name, Value: value, Source: "env:" + v}, nil
		}
	}
	return nil, ErrSecretNotFound
}

// List returns the known secrets present in the environment
func (e *EnvironmentStore) List() ([]*Secret, error) {
	var secrets []*Secret
	for _, name := range KnownSecrets {
		if s, err := e.Retrieve(name); err == nil {
			secrets = append(secrets, s)
		}
	}
	return secrets, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the secret is set in the environment
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
