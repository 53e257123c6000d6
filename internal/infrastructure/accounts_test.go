package infrastructure_test

import (
	"os"
	"path/filepath"
	"testing"

	"adlens/internal/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileAccountStoreBareArray(t *testing.T) {
	path := writeAccountsFile(t, `[
		{"id": "shop", "name": "Shop", "client_login": "shop-login", "counter_id": "100"},
		{"id": "blog", "name": "Blog", "counter_id": "200"}
	]`)

	store, err := infrastructure.NewFileAccountStore(path)
	require.NoError(t, err)

	a, ok := store.Get("shop")
	require.True(t, ok)
	assert.Equal(t, "shop-login", a.ClientLogin)
	assert.Equal(t, "100", a.CounterID)

	_, ok = store.Get("missing")
	assert.False(t, ok)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "blog", list[0].ID)
	assert.Equal(t, "shop", list[1].ID)
}

func TestFileAccountStoreWrappedObject(t *testing.T) {
	path := writeAccountsFile(t, `{"accounts": [{"id": "shop", "counter_id": "100"}]}`)

	store, err := infrastructure.NewFileAccountStore(path)
	require.NoError(t, err)
	assert.Len(t, store.List(), 1)
}

func TestFileAccountStoreMissingID(t *testing.T) {
	path := writeAccountsFile(t, `[{"name": "No ID"}]`)

	_, err := infrastructure.NewFileAccountStore(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without id")
}

func TestFileAccountStoreInvalidJSON(t *testing.T) {
	path := writeAccountsFile(t, `not json`)

	_, err := infrastructure.NewFileAccountStore(path)
	assert.Error(t, err)
}

func TestFileAccountStoreEmptyPath(t *testing.T) {
	store, err := infrastructure.NewFileAccountStore("")
	require.NoError(t, err)
	assert.Empty(t, store.List())
}

func TestFileAccountStoreMissingFile(t *testing.T) {
	_, err := infrastructure.NewFileAccountStore(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
