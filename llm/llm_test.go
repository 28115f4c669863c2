package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAPIKeyFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, APIKeyFile)

	_, err := LoadAPIKeyFrom(path)
	require.ErrorIs(t, err, ErrAPIKeyNotFound)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0600))
	_, err = LoadAPIKeyFrom(path)
	require.ErrorIs(t, err, ErrAPIKeyNotFound)

	require.NoError(t, os.WriteFile(path, []byte("AIza-test-key\n"), 0600))
	key, err := LoadAPIKeyFrom(path)
	require.NoError(t, err)
	require.Equal(t, "AIza-test-key", key)
}

func TestLoadAPIKeyUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := LoadAPIKey()
	require.ErrorIs(t, err, ErrAPIKeyNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(home, APIKeyFile), []byte("key"), 0600))
	key, err := LoadAPIKey()
	require.NoError(t, err)
	require.Equal(t, "key", key)
}
