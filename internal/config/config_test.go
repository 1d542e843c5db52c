package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "razor", "ops.json")
	m := NewManager(path)

	require.NoError(t, m.Load())
	assert.FileExists(t, path)
	assert.NoError(t, m.ParseError())
	assert.Equal(t, *DefaultConfig(), m.Get())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"operations":{"errorPolicy":"continue","maxWorkers":4}}`), 0o644))

	m := NewManager(path)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "continue", cfg.Operations.ErrorPolicy)
	assert.Equal(t, 4, cfg.Operations.MaxWorkers)
	assert.Equal(t, "copy", cfg.Operations.CopyLabel)
	assert.Equal(t, 200*time.Millisecond, cfg.Watcher.Debounce())
}

func TestLoadParseErrorFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"operations":`), 0o644))

	m := NewManager(path)
	require.NoError(t, m.Load())
	assert.Error(t, m.ParseError())
	assert.Equal(t, *DefaultConfig(), m.Get())
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.json")
	m := NewManager(path)
	require.NoError(t, m.Load())

	require.NoError(t, m.SetErrorPolicy("continue"))
	require.NoError(t, m.SetTrashPath("/tmp/trash"))
	require.NoError(t, m.SetDeleteAfterExtract(true))

	reloaded := NewManager(path)
	require.NoError(t, reloaded.Load())
	cfg := reloaded.Get()
	assert.Equal(t, "continue", cfg.Operations.ErrorPolicy)
	assert.Equal(t, "/tmp/trash", cfg.Trash.Path)
	assert.True(t, cfg.Archive.DeleteAfterExtract)
}

func TestGenerateConfigBacksUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.json")

	backup, err := GenerateConfig(path)
	require.NoError(t, err)
	assert.Empty(t, backup)
	assert.FileExists(t, path)

	backup, err = GenerateConfig(path)
	require.NoError(t, err)
	assert.FileExists(t, backup)
}

func TestDefaultTrashPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "Trash"), DefaultTrashPath())
}
