package identity

import (
	"context"
	"sort"
	"sync"
)

// Memory implements Provider in process and remembers passwords for inspection.
type Memory struct {
	mu        sync.Mutex
	accounts  map[string]Account
	passwords map[string]string
}

var _ Provider = (*Memory)(nil)

// NewMemory returns an empty provider.
func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[string]Account),
		passwords: make(map[string]string),
	}
}

// CreateUser stores the account. An existing email fails with ErrAccountExists.
func (m *Memory) CreateUser(_ context.Context, acc Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.Email]; ok {
		return ErrAccountExists
	}
	m.accounts[acc.Email] = acc
	return nil
}

// DeleteUser removes the account.
func (m *Memory) DeleteUser(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, email)
	delete(m.passwords, email)
	return nil
}

// UpdateEmail renames the account.
func (m *Memory) UpdateEmail(_ context.Context, oldEmail, newEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[oldEmail]
	if !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, oldEmail)
	acc.Email = newEmail
	m.accounts[newEmail] = acc
	if pw, ok := m.passwords[oldEmail]; ok {
		delete(m.passwords, oldEmail)
		m.passwords[newEmail] = pw
	}
	return nil
}

// SetPassword records the password.
func (m *Memory) SetPassword(_ context.Context, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; !ok {
		return ErrAccountNotFound
	}
	m.passwords[email] = password
	return nil
}

// ListUsers returns every account ordered by email.
func (m *Memory) ListUsers(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Account returns the account for email.
func (m *Memory) Account(email string) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[email]
	return acc, ok
}

// Password returns the last password set for email.
func (m *Memory) Password(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.passwords[email]
	return pw, ok
}
