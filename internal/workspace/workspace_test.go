package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	base := filepath.Join(t.TempDir(), "scratch")
	mgr := NewManager(base)
	assert.Empty(t, mgr.Path())

	require.NoError(t, mgr.Create())
	dir := mgr.Path()
	assert.True(t, strings.HasPrefix(filepath.Base(dir), "buildbot-"))
	assert.DirExists(t, dir)

	sub, err := mgr.CreateSubdir("workers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "workers"), sub)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "out"), []byte("x"), 0o600))

	require.NoError(t, mgr.Cleanup())
	assert.NoDirExists(t, dir)
	assert.Empty(t, mgr.Path())
	assert.NoError(t, mgr.Cleanup())
}

func TestManagersDoNotCollide(t *testing.T) {
	base := t.TempDir()
	a, b := NewManager(base), NewManager(base)
	require.NoError(t, a.Create())
	require.NoError(t, b.Create())
	assert.NotEqual(t, a.Path(), b.Path())
}

func TestCreateSubdirBeforeCreate(t *testing.T) {
	_, err := NewManager(t.TempDir()).CreateSubdir("x")
	assert.Error(t, err)
}
