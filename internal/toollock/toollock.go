// Package toollock (de)serializes the lock artifact: the fully resolved snapshot the Renderer
// needs to produce output without re-running the Acquirer or Resolver (the "warm path").
package toollock

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/sprocket-run/sprocket/pkg/fs"
)

// currentVersion is the lock artifact schema version stamped into every artifact this package
// writes, so a future incompatible schema change can refuse to warm-path off an old one.
const currentVersion = 1

// Artifact is the persisted, fully resolved snapshot: directories, the config file path, the
// ordered plugin list, and the final templates map. Every path field is absolute.
type Artifact struct {
	Version    int               `toml:"version"`
	HomeDir    string            `toml:"home_dir"`
	ConfigDir  string            `toml:"config_dir"`
	DataDir    string            `toml:"data_dir"`
	ConfigFile string            `toml:"config_file"`
	Shell      string            `toml:"shell"`
	Templates  map[string]string `toml:"templates"`
	Plugins    []LockedPlugin    `toml:"plugins"`
}

// LockedPlugin is one plugin's fully resolved state.
type LockedPlugin struct {
	Name string `toml:"name"`
	// SourceDir is the absolute root of the acquired source (empty for inline plugins).
	SourceDir string `toml:"source_dir,omitempty"`
	// PluginDir is the absolute subdirectory within SourceDir the plugin is rooted at, if any.
	PluginDir string `toml:"plugin_dir,omitempty"`
	// Files holds absolute paths, in match order.
	Files []string          `toml:"files,omitempty"`
	Apply []string          `toml:"apply,omitempty"`
	Hooks map[string]string `toml:"hooks,omitempty"`
	// SourceCommit is the canonical 40-character commit hash checked out for a git source; see
	// sheldon's LockedPlugin.precise_reference for the prior art this mirrors.
	SourceCommit string `toml:"source_commit,omitempty"`
	// Inline carries an inline plugin's literal snippet; set instead of SourceDir/Files.
	Inline string `toml:"inline,omitempty"`
}

// Write serializes artifact to path, writing to a temp file in the same directory first and
// renaming it into place, so a process killed mid-write never leaves a corrupt lock artifact
// behind. Grounded on forklift's DownloadFile atomic-commit pattern
// (internal/app/forklift/caching-downloads-files.go), applied here to a marshaled buffer instead
// of a network response body.
func Write(path string, artifact Artifact) error {
	artifact.Version = currentVersion
	data, err := toml.Marshal(artifact)
	if err != nil {
		return errors.Wrap(err, "couldn't serialize lock artifact")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sprocket-lock-*")
	if err != nil {
		return errors.Wrapf(err, "couldn't create temporary lock file in %s", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "couldn't write temporary lock file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "couldn't finalize temporary lock file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "couldn't commit lock file from %s to %s", tmpPath, path)
	}
	return nil
}

// Read loads and parses the lock artifact at path.
func Read(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read lock file %s", path)
	}
	var artifact Artifact
	if err := toml.Unmarshal(data, &artifact); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse lock file %s", path)
	}
	return &artifact, nil
}

// Verify reports whether artifact (already read from lockPath) can be trusted for the warm path:
// the lock file must exist with a modification time no older than configPath's (mirroring
// sheldon's LockedConfig::verify / newer_than check in main.rs, the original implementation this
// staleness check is supplemented from, since spec.md's distillation doesn't spell it out), and
// every source_dir the artifact names must still exist on disk — a cache wipe or manual cleanup
// between runs must not let a stale artifact stand in for a fresh resolve.
func Verify(configPath, lockPath string, artifact *Artifact) bool {
	lockInfo, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	configInfo, err := os.Stat(configPath)
	if err != nil {
		return false
	}
	if lockInfo.ModTime().Before(configInfo.ModTime()) {
		return false
	}

	if artifact == nil {
		return false
	}
	for _, p := range artifact.Plugins {
		if p.SourceDir != "" && !fs.DirExists(p.SourceDir) {
			return false
		}
	}
	return true
}

// StaleBy reports how far out of date the lock artifact is relative to the config file; a
// non-positive duration means the lock artifact is current. It also returns 0 when either file
// can't be stat'ed, so a missing lock file is not reported as stale. Useful for diagnostic messages.
func StaleBy(configPath, lockPath string) time.Duration {
	lockInfo, err := os.Stat(lockPath)
	if err != nil {
		return 0
	}
	configInfo, err := os.Stat(configPath)
	if err != nil {
		return 0
	}
	return configInfo.ModTime().Sub(lockInfo.ModTime())
}
