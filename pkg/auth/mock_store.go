package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory CredentialStore for tests. StoreError and
// ListError make the matching calls fail.
type MockStore struct {
	mu       sync.Mutex
	accounts map[string]Account

	StoreError error
	ListError  error
}

func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]Account)}
}

// NewMockManager returns a Manager whose only store is a fresh MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Email == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Email] = *account
	return nil
}

func (m *MockStore) Retrieve(email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[email]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		account := account
		list = append(list, &account)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list, nil
}

func (m *MockStore) Delete(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[email]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, email)
	return nil
}

func (m *MockStore) Exists(email string) bool {
	_, err := m.Retrieve(email)
	return err == nil
}

// Count returns how many accounts the store holds
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
