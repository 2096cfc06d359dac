package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	envKeyEmail    = "EMAIL"
	envKeyPassword = "PASSWORD"
)

// EnvFileStore keeps a single account in a dot-env file with EMAIL and
// PASSWORD keys. When the file is missing it falls back to the process
// environment.
type EnvFileStore struct {
	path string
}

// NewEnvFileStore creates a store for the given dot-env file
func NewEnvFileStore(path string) *EnvFileStore {
	return &EnvFileStore{path: path}
}

// Path returns the backing file
func (e *EnvFileStore) Path() string {
	return e.path
}

// Store writes the account to the file, replacing any previous one
func (e *EnvFileStore) Store(account *Account) error {
	if account == nil || account.Email == "" {
		return ErrInvalidCredentials
	}
	if e.path == "" {
		return ErrStoreUnavailable
	}

	if dir := filepath.Dir(e.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	values := map[string]string{
		envKeyEmail:    account.Email,
		envKeyPassword: account.Password,
	}
	if err := godotenv.Write(values, e.path); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return os.Chmod(e.path, 0600)
}

// Retrieve returns the stored account; an empty email matches any account
func (e *EnvFileStore) Retrieve(email string) (*Account, error) {
	account, err := e.read()
	if err != nil {
		return nil, err
	}
	if email != "" && account.Email != email {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns the single stored account, if any
func (e *EnvFileStore) List() ([]*Account, error) {
	account, err := e.read()
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete removes the credentials file when it holds the given account
func (e *EnvFileStore) Delete(email string) error {
	values, err := godotenv.Read(e.path)
	if err != nil {
		return ErrCredentialsNotFound
	}
	if values[envKeyEmail] != email {
		return ErrCredentialsNotFound
	}
	return os.Remove(e.path)
}

// Exists checks if the store holds credentials for email
func (e *EnvFileStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}

func (e *EnvFileStore) read() (*Account, error) {
	var email, password string
	modified := time.Now()

	if values, err := godotenv.Read(e.path); err == nil {
		email = values[envKeyEmail]
		password = values[envKeyPassword]
		if info, statErr := os.Stat(e.path); statErr == nil {
			modified = info.ModTime()
		}
	} else {
		email = os.Getenv(envKeyEmail)
		password = os.Getenv(envKeyPassword)
	}

	if email == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{Email: email, Password: password, LastModified: modified}, nil
}
