package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Email:    "arkivar@example.dk",
		Password: "hemmeligt-kodeord",
	}

	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero(), "Store should stamp LastModified")

	retrieved, err := manager.Retrieve("arkivar@example.dk")
	require.NoError(t, err)
	assert.Equal(t, account.Email, retrieved.Email)
	assert.Equal(t, account.Password, retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("arkivar@example.dk"))

	_, err = manager.Retrieve("arkivar@example.dk")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, mockStore.Count())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.ErrorIs(t, manager.Store(nil), ErrInvalidCredentials)
	assert.Error(t, manager.Store(&Account{Password: "x"}))
	assert.Error(t, manager.Store(&Account{Email: "a@b.dk"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	working := NewMockStore()

	manager := NewManagerWithStores(failing, working)
	require.NoError(t, manager.Store(&Account{Email: "a@b.dk", Password: "pw"}))

	assert.Equal(t, 0, failing.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerRetrieveDefault(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")

	dir := t.TempDir()
	envStore := NewEnvFileStore(filepath.Join(dir, "hf_creds.env"))
	mockStore := NewMockStore()
	require.NoError(t, mockStore.Store(&Account{Email: "second@example.dk", Password: "pw2"}))

	manager := NewManagerWithStores(envStore, mockStore)

	account, err := manager.RetrieveDefault("")
	require.NoError(t, err)
	assert.Equal(t, "second@example.dk", account.Email)

	require.NoError(t, envStore.Store(&Account{Email: "first@example.dk", Password: "pw1"}))
	account, err = manager.RetrieveDefault("")
	require.NoError(t, err)
	assert.Equal(t, "first@example.dk", account.Email)

	account, err = manager.RetrieveDefault("second@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "pw2", account.Password)
}

func TestManagerDeleteMissing(t *testing.T) {
	manager, _ := NewMockManager()
	assert.ErrorIs(t, manager.Delete("nobody@example.dk"), ErrCredentialsNotFound)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Email: "a@b.dk", Password: "a-long-password"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, account.Email, sanitized.Email)
	assert.Equal(t, "a-...rd", sanitized.Password)
	assert.Equal(t, "********", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEnvFileStore(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")

	path := filepath.Join(t.TempDir(), "data", "hf_creds.env")
	store := NewEnvFileStore(path)

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Email: "a@b.dk", Password: "p@ss word"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "a@b.dk", account.Email)
	assert.Equal(t, "p@ss word", account.Password)

	assert.True(t, store.Exists("a@b.dk"))
	assert.False(t, store.Exists("other@b.dk"))

	assert.ErrorIs(t, store.Delete("other@b.dk"), ErrCredentialsNotFound)
	require.NoError(t, store.Delete("a@b.dk"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEnvFileStoreReadsHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hf_creds.env")
	require.NoError(t, os.WriteFile(path, []byte("EMAIL=hand@example.dk\nPASSWORD=\"quoted\"\n"), 0600))

	account, err := NewEnvFileStore(path).Retrieve("hand@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "quoted", account.Password)
}

func TestEnvFileStoreFallsBackToEnvironment(t *testing.T) {
	t.Setenv("EMAIL", "env@example.dk")
	t.Setenv("PASSWORD", "from-env")

	store := NewEnvFileStore(filepath.Join(t.TempDir(), "missing.env"))
	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "env@example.dk", accounts[0].Email)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "test-passphrase")
	require.NoError(t, err)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.Store(&Account{Email: "b@example.dk", Password: "pw-b", LastModified: time.Now()}))
	require.NoError(t, store.Store(&Account{Email: "a@example.dk", Password: "pw-a", LastModified: time.Now()}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "pw-a", "password must not be stored in clear text")

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a@example.dk", accounts[0].Email)

	reopened, err := NewEncryptedFileStoreWithPassphrase(path, "test-passphrase")
	require.NoError(t, err)
	account, err := reopened.Retrieve("b@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "pw-b", account.Password)

	wrong, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	require.NoError(t, err)
	_, err = wrong.Retrieve("b@example.dk")
	assert.ErrorIs(t, err, ErrVaultLocked)

	require.NoError(t, store.Delete("a@example.dk"))
	require.NoError(t, store.Delete("b@example.dk"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should be removed with the last account")
}

func TestEncryptedFileStoreRejectsEmptyPassphrase(t *testing.T) {
	_, err := NewEncryptedFileStoreWithPassphrase(filepath.Join(t.TempDir(), "c.enc"), "")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Email: "k@example.dk", Password: "pw"}))
	assert.True(t, store.Exists("k@example.dk"))

	account, err := store.Retrieve("k@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "pw", account.Password)

	require.NoError(t, store.Delete("k@example.dk"))
	_, err = store.Retrieve("k@example.dk")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Delete("k@example.dk"), ErrCredentialsNotFound)
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	store.ListError = errors.New("boom")

	manager := NewManagerWithStores(store)
	accounts, err := manager.List()
	require.NoError(t, err, "manager skips stores that fail to list")
	assert.Empty(t, accounts)
}
