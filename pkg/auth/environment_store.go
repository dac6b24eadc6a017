package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a cookie from environment variables. Read-only;
// it mainly serves CI and one-off runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds an account from WBARCHIVE_COOKIE and friends.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	cookie := os.Getenv("WBARCHIVE_COOKIE")
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = "default"
	}

	return &Account{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv("WBARCHIVE_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the single environment account when one is set.
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks whether the environment carries a cookie.
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("WBARCHIVE_COOKIE") != ""
}
