// Package context builds sprocket's immutable process context: the resolved config/data
// directories, file paths, and active profile set, read once at startup and threaded explicitly
// through the rest of the program rather than consulted as ambient global state (spec.md §9).
// Adapted from agent-sync's directory-discovery precedence
// (internal/config/discover.go), generalized from config-file layering to sprocket's flag > env >
// OS-default directory precedence.
package context

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	appName        = "sprocket"
	configFileName = "plugins.toml"
	lockFileName   = "plugins.lock"

	envConfigDir  = "SPROCKET_CONFIG_DIR"
	envDataDir    = "SPROCKET_DATA_DIR"
	envConfigFile = "SPROCKET_CONFIG_FILE"
	envLockFile   = "SPROCKET_LOCK_FILE"
	envProfile    = "SPROCKET_PROFILE"
)

// Context bundles every directory/file path and the active profile set sprocket's stages need.
// It is constructed once per invocation and never mutated afterward.
type Context struct {
	ConfigDir  string
	DataDir    string
	ConfigFile string
	LockFile   string
	Profiles   []string
}

// Overrides carries explicit CLI flag values, which take precedence over environment variables,
// which in turn take precedence over OS defaults.
type Overrides struct {
	ConfigDir  string
	DataDir    string
	ConfigFile string
	LockFile   string
	Profiles   string // comma-separated, matching SPROCKET_PROFILE's format
}

// Discover resolves a Context using the flag > env > OS-default precedence spec.md §6 specifies.
func Discover(overrides Overrides) (*Context, error) {
	configDir, err := resolveDir(overrides.ConfigDir, envConfigDir, userConfigDir)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't determine config directory")
	}
	dataDir, err := resolveDir(overrides.DataDir, envDataDir, userDataDir)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't determine data directory")
	}

	configFile := firstNonEmpty(overrides.ConfigFile, os.Getenv(envConfigFile), filepath.Join(configDir, configFileName))
	lockFile := firstNonEmpty(overrides.LockFile, os.Getenv(envLockFile), filepath.Join(dataDir, lockFileName))

	profiles := parseProfiles(firstNonEmpty(overrides.Profiles, os.Getenv(envProfile)))

	return &Context{
		ConfigDir:  configDir,
		DataDir:    dataDir,
		ConfigFile: configFile,
		LockFile:   lockFile,
		Profiles:   profiles,
	}, nil
}

func resolveDir(flagValue, envVar string, fallback func() (string, error)) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	return fallback()
}

func userConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

func userDataDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseProfiles(raw string) []string {
	if raw == "" {
		return nil
	}
	var profiles []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles
}
