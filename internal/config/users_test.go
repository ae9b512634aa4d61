package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadUserData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,role\n1,admin\n2,viewer\n"), 0o600))

	users, err := LoadUserData(path)
	require.NoError(t, err)
	require.Len(t, users, 2)

	v, ok := users[0].Value("role")
	require.True(t, ok)
	require.Equal(t, "admin", v)

	_, ok = users[1].Value("missing")
	require.False(t, ok)
}

func TestLoadUserData_MissingFile(t *testing.T) {
	_, err := LoadUserData(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestUserColumns_SortedAndDeduped(t *testing.T) {
	users := []UserData{
		{Columns: map[string]string{"id": "1", "role": "admin"}},
		{Columns: map[string]string{"role": "viewer", "team": "ops"}},
	}
	require.Equal(t, []string{"id", "role", "team"}, UserColumns(users))
}
