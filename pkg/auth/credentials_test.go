package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	err := manager.Store(&Secret{Name: SecretTwitterBearer, Value: "AAAA-bearer-token-1234"})
	require.NoError(t, err)

	secret, err := manager.Retrieve(SecretTwitterBearer)
	require.NoError(t, err)
	assert.Equal(t, "AAAA-bearer-token-1234", secret.Value)
	assert.False(t, secret.LastModified.IsZero())
	assert.Equal(t, "AAAA-bearer-token-1234", manager.Value(SecretTwitterBearer))

	_, err = manager.Retrieve(SecretAnthropicKey)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Empty(t, manager.Value(SecretAnthropicKey))
}

func TestManagerRejectsEmptySecrets(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	assert.Error(t, manager.Store(nil))
	assert.Error(t, manager.Store(&Secret{Value: "x"}))
	assert.Error(t, manager.Store(&Secret{Name: SecretTwitterBearer}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keyring locked")
	broken.RetrieveError = errors.New("keyring locked")
	working := NewMemoryStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Secret{Name: SecretAnthropicKey, Value: "sk-ant-123456789"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	secret, err := manager.Retrieve(SecretAnthropicKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123456789", secret.Value)
}

func TestManagerStoreAllFail(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("disk full")

	err := NewManagerWithStores(broken).Store(&Secret{Name: SecretTwitterBearer, Value: "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestManagerListAndDelete(t *testing.T) {
	first := NewMemoryStore()
	second := NewMemoryStore()
	manager := NewManagerWithStores(first, second)

	require.NoError(t, first.Store(&Secret{Name: SecretTwitterBearer, Value: "one"}))
	require.NoError(t, second.Store(&Secret{Name: SecretTwitterBearer, Value: "two"}))
	require.NoError(t, second.Store(&Secret{Name: SecretAnthropicKey, Value: "key"}))

	secrets, err := manager.List()
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	assert.Equal(t, SecretAnthropicKey, secrets[0].Name)
	assert.Equal(t, SecretTwitterBearer, secrets[1].Name)

	require.NoError(t, manager.Delete(SecretTwitterBearer))
	assert.False(t, first.Exists(SecretTwitterBearer))
	assert.False(t, second.Exists(SecretTwitterBearer))

	assert.ErrorIs(t, manager.Delete(SecretTwitterBearer), ErrSecretNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	path := filepath.Join(t.TempDir(), "secrets.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	assert.False(t, store.Exists(SecretTwitterBearer))
	_, err = store.Retrieve(SecretTwitterBearer)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, store.Store(&Secret{Name: SecretTwitterBearer, Value: "bearer-value"}))
	require.NoError(t, store.Store(&Secret{Name: SecretAnthropicKey, Value: "anthropic-value"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "bearer-value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// a second store reads the generated passphrase file
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	secret, err := reopened.Retrieve(SecretTwitterBearer)
	require.NoError(t, err)
	assert.Equal(t, "bearer-value", secret.Value)
	assert.Equal(t, "file", secret.Source)

	secrets, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, secrets, 2)

	require.NoError(t, reopened.Delete(SecretTwitterBearer))
	require.NoError(t, reopened.Delete(SecretAnthropicKey))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is removed once empty")
	assert.ErrorIs(t, reopened.Delete(SecretAnthropicKey), ErrSecretNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")

	t.Setenv(PassphraseEnv, "correct horse")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Secret{Name: SecretTwitterBearer, Value: "v"}))

	t.Setenv(PassphraseEnv, "battery staple")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve(SecretTwitterBearer)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("PROMPTHUNTER_TWITTER_BEARER_TOKEN", "")
	t.Setenv("TWITTER_BEARER_TOKEN", "from-env")
	t.Setenv("PROMPTHUNTER_ANTHROPIC_API_KEY", "prefixed")
	t.Setenv("ANTHROPIC_API_KEY", "plain")
	t.Setenv("PROMPTHUNTER_CLASSIFIER_TOKEN", "")

	store := NewEnvironmentStore()

	secret, err := store.Retrieve(SecretTwitterBearer)
	require.NoError(t, err)
	assert.Equal(t, "from-env", secret.Value)
	assert.Equal(t, "env:TWITTER_BEARER_TOKEN", secret.Source)

	secret, err = store.Retrieve(SecretAnthropicKey)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", secret.Value)

	assert.False(t, store.Exists(SecretClassifierToken))
	assert.ErrorIs(t, store.Store(&Secret{Name: "x", Value: "y"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(SecretTwitterBearer), ErrStoreUnavailable)

	secrets, err := store.List()
	require.NoError(t, err)
	assert.Len(t, secrets, 2)
}

func TestDeleteIgnoresReadOnlyStores(t *testing.T) {
	t.Setenv("PROMPTHUNTER_TWITTER_BEARER_TOKEN", "")
	t.Setenv("TWITTER_BEARER_TOKEN", "env-token")
	mem := NewMemoryStore()
	require.NoError(t, mem.Store(&Secret{Name: SecretTwitterBearer, Value: "stored"}))

	manager := NewManagerWithStores(mem, NewEnvironmentStore())
	require.NoError(t, manager.Delete(SecretTwitterBearer))

	// the environment still supplies a value
	assert.Equal(t, "env-token", manager.Value(SecretTwitterBearer))
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "********", MaskString("short"))
	assert.Equal(t, "AAAA...wxyz", MaskString("AAAAbcdefghijklmnopqrstuvwxyz"))

	masked := Sanitize(&Secret{Name: SecretTwitterBearer, Value: "AAAAbcdefghijklmnopqrstuvwxyz"})
	assert.Equal(t, "AAAA...wxyz", masked.Value)
	assert.Nil(t, Sanitize(nil))
}

func TestIsKnownSecret(t *testing.T) {
	assert.True(t, IsKnownSecret(SecretTwitterBearer))
	assert.False(t, IsKnownSecret("password"))
	assert.Equal(t, []string{"PROMPTHUNTER_CUSTOM"}, EnvVarsFor("custom"))
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf)

	out := buf.String()
	assert.Contains(t, out, "prompthunter auth set "+SecretTwitterBearer)
	assert.Contains(t, out, "ANTHROPIC_API_KEY")
}

func TestReadSecretFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("  token-value \n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	defer r.Close()

	var out bytes.Buffer
	value, err := ReadSecret(r, &out, "Bearer token")
	require.NoError(t, err)
	assert.Equal(t, "token-value", value)
	assert.Equal(t, "Bearer token: ", out.String())
}
