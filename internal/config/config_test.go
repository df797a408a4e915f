package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestInitializeAndLoad(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Initialize(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.FileExists(t, filepath.Join(cfg.Path(), ConfigFile))

	// A second init in the same place fails
	_, err = Initialize(BackendSQLite)
	assert.Error(t, err)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, loaded.Backend)
	assert.Equal(t, cfg.DatabasePath(), loaded.DatabasePath())
}

func TestInitialize_UnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Initialize("postgres")
	assert.Error(t, err)
}

func TestFindRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)
	_, err := Initialize(BackendBolt)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	found, err := FindRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, OVCDir), found)
}

func TestExpiry(t *testing.T) {
	cfg := &Config{}
	d, err := cfg.Expiry()
	require.NoError(t, err)
	assert.Equal(t, DefaultExpiry, d)

	cfg.GCExpiry = "48h"
	d, err = cfg.Expiry()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, d)

	cfg.GCExpiry = "not-a-duration"
	_, err = cfg.Expiry()
	assert.Error(t, err)
}
