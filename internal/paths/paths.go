// Package paths resolves the configuration, data and bundle directories.
//
// Precedence, highest first:
//
//	config dir: --config-dir flag, CMDB_CONFIG_DIR, platform default
//	data dir:   --data-dir flag, config.yaml data_dir, CMDB_DATA_DIR, $(CWD)/.cmdb-db
//	bundles:    flag, config.yaml value, <data dir>/packs or <data dir>/store
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appDir is the per-user directory name on every platform.
const appDir = "cmdb"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".cmdb"
	DefaultDataDirName   = ".cmdb-db"
)

// Bundle directory names under the data directory.
const (
	PacksDirName = "packs"
	StoreDirName = "store"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CMDB_CONFIG_DIR"
	EnvDataDir   = "CMDB_DATA_DIR"
)

// platform holds platform lookups that tests override.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/cmdb (fallback ~/.config/cmdb)
// macOS:   ~/Library/Application Support/cmdb
// Windows: %APPDATA%/cmdb
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/cmdb (fallback ~/.local/share/cmdb)
// macOS and Windows: same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// userDir follows the XDG variable xdgEnv on Linux, falling back to
// ~/homeRel. Other platforms use os.UserConfigDir.
func userDir(xdgEnv, homeRel string) (string, error) {
	if platform.goos != "linux" {
		dir, err := platform.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDir), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appDir), nil
}

// ResolveConfigDir returns flag, else CMDB_CONFIG_DIR, else the platform
// default. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns flag, else the config.yaml value, else
// CMDB_DATA_DIR, else .cmdb-db in the working directory.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir := firstSet(flag, configValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveBundleDir returns flag, else the config.yaml value, else name
// under dataDir.
func ResolveBundleDir(dataDir, name, flag, configValue string) (string, error) {
	if dir := firstSet(flag, configValue); dir != "" {
		return filepath.Abs(dir)
	}
	return filepath.Join(dataDir, name), nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
