package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope", "identity.yaml"))

	id, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, &Identity{}, id)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xoxo", "identity.yaml")
	store := NewFileStore(path)

	require.NoError(t, store.Save(&Identity{DeviceID: "dev-1", UserID: "user-1", Username: "alice"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "device_id: dev-1")

	id, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id.DeviceID)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "alice", id.Username)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_id: [unclosed"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(Identity{DeviceID: "d"})
	id, err := store.Load()
	require.NoError(t, err)

	id.UserID = "changed"
	again, _ := store.Load()
	assert.Empty(t, again.UserID)

	require.NoError(t, store.Save(id))
	again, _ = store.Load()
	assert.Equal(t, "changed", again.UserID)
}
