package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// GetDataDir resolves the base directory for local state. It checks TEXTREPO_DIR
// first, then XDG paths, and finally falls back to the user's home directory.
func GetDataDir() string {
	if explicit := os.Getenv("TEXTREPO_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "textrepo")
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "textrepo")
}

// GetDBPath returns the absolute path to the SQLite journal database.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "index.db")
}

// GetSnapshotPath returns the path of the persisted index snapshot.
func GetSnapshotPath() string {
	return filepath.Join(GetDataDir(), "index.snapshot")
}

// GetSettingsPath returns the settings file location. TEXTREPO_CONFIG wins over
// the XDG config directory.
func GetSettingsPath() string {
	if explicit := os.Getenv("TEXTREPO_CONFIG"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "textrepo", "config.toml")
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "textrepo", "config.toml")
}

// RelativeRepoPath normalises a repository path to the slash-separated,
// root-relative form used as index and commit keys.
func RelativeRepoPath(p string) string {
	p = filepath.ToSlash(p)
	return strings.TrimLeft(p, "/")
}

// GetClobberDir returns the directory that keeps segment text replaced by
// conflicting writes.
func GetClobberDir() string {
	return filepath.Join(GetDataDir(), "clobbered")
}
