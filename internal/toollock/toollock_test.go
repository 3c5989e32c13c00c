package toollock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.lock")
	artifact := Artifact{
		HomeDir:    "/home/user",
		ConfigDir:  "/home/user/.config/sprocket",
		DataDir:    "/home/user/.local/share/sprocket",
		ConfigFile: "/home/user/.config/sprocket/plugins.toml",
		Shell:      "zsh",
		Templates:  map[string]string{"source": `source "{{ file }}"`},
		Plugins: []LockedPlugin{
			{Name: "example", SourceDir: "/data/repos/example", Files: []string{"/data/repos/example/init.zsh"}, Apply: []string{"source"}},
		},
	}
	require.NoError(t, Write(path, artifact))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, currentVersion, loaded.Version)
	assert.Equal(t, artifact.Shell, loaded.Shell)
	require.Len(t, loaded.Plugins, 1)
	assert.Equal(t, "example", loaded.Plugins[0].Name)
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.lock")
	require.NoError(t, Write(path, Artifact{Shell: "bash"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files after a successful write")
}

func TestVerifyFreshWhenLockNewerThanConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plugins.toml")
	lockPath := filepath.Join(dir, "plugins.lock")
	require.NoError(t, os.WriteFile(configPath, []byte("shell = \"zsh\"\n"), 0o644))
	artifact := Artifact{Shell: "zsh"}
	require.NoError(t, Write(lockPath, artifact))

	assert.True(t, Verify(configPath, lockPath, &artifact))
}

func TestVerifyStaleWhenConfigNewerThanLock(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plugins.toml")
	lockPath := filepath.Join(dir, "plugins.lock")
	artifact := Artifact{Shell: "zsh"}
	require.NoError(t, Write(lockPath, artifact))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(configPath, []byte("shell = \"zsh\"\n"), 0o644))
	require.NoError(t, os.Chtimes(configPath, future, future))

	assert.False(t, Verify(configPath, lockPath, &artifact))
}

func TestVerifyFalseWhenLockMissing(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plugins.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("shell = \"zsh\"\n"), 0o644))

	assert.False(t, Verify(configPath, filepath.Join(dir, "missing.lock"), &Artifact{}))
}

func TestVerifyFalseWhenSourceDirMissing(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plugins.toml")
	lockPath := filepath.Join(dir, "plugins.lock")
	require.NoError(t, os.WriteFile(configPath, []byte("shell = \"zsh\"\n"), 0o644))
	artifact := Artifact{
		Shell: "zsh",
		Plugins: []LockedPlugin{
			{Name: "example", SourceDir: filepath.Join(dir, "gone")},
		},
	}
	require.NoError(t, Write(lockPath, artifact))

	assert.False(t, Verify(configPath, lockPath, &artifact))
}

func TestVerifyTrueWhenSourceDirPresent(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plugins.toml")
	lockPath := filepath.Join(dir, "plugins.lock")
	require.NoError(t, os.WriteFile(configPath, []byte("shell = \"zsh\"\n"), 0o644))
	sourceDir := filepath.Join(dir, "present")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	artifact := Artifact{
		Shell: "zsh",
		Plugins: []LockedPlugin{
			{Name: "example", SourceDir: sourceDir},
		},
	}
	require.NoError(t, Write(lockPath, artifact))

	assert.True(t, Verify(configPath, lockPath, &artifact))
}
