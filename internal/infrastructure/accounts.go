package infrastructure

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"adlens/internal/domain"
)

// implements domain.AccountStore over a JSON registry file
type FileAccountStore struct {
	accounts map[string]domain.Account
}

// loads the registry; the file holds either a bare array of accounts
// or an object with an "accounts" key
func NewFileAccountStore(path string) (*FileAccountStore, error) {
	store := &FileAccountStore{accounts: make(map[string]domain.Account)}
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		var wrapped struct {
			Accounts []domain.Account `json:"accounts"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse accounts file: %w", err)
		}
		accounts = wrapped.Accounts
	}

	for _, a := range accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("account entry without id in %s", path)
		}
		store.accounts[a.ID] = a
	}
	return store, nil
}

func (s *FileAccountStore) Get(id string) (*domain.Account, bool) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return &a, true
}

func (s *FileAccountStore) List() []domain.Account {
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
