package pathing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// second call is a no-op
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(""))
}

func TestGetConfigPathFromEnv(t *testing.T) {
	t.Setenv("LINKY_CONFIG", "/tmp/custom.yml")
	assert.Equal(t, "/tmp/custom.yml", GetConfigPath())

	t.Setenv("LINKY_CONFIG", "")
	assert.Equal(t, "/etc/linky_meter/linky.toml", GetConfigPath())
}
