package xdg

import (
	"os"
	"path/filepath"
)

// Dirs resolves the XDG base directories fnjudge keeps its state in.
type Dirs struct {
	configHome string
	cacheHome  string
}

// New reads XDG_CONFIG_HOME and XDG_CACHE_HOME, falling back to the
// defaults under the home directory.
func New() *Dirs {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			home = os.TempDir()
		}
	}

	d := &Dirs{
		configHome: os.Getenv("XDG_CONFIG_HOME"),
		cacheHome:  os.Getenv("XDG_CACHE_HOME"),
	}
	if d.configHome == "" {
		d.configHome = filepath.Join(home, ".config")
	}
	if d.cacheHome == "" {
		d.cacheHome = filepath.Join(home, ".cache")
	}
	return d
}

func (d *Dirs) ConfigHome() string {
	return d.configHome
}

// AppConfigDir returns the application-specific config directory
func (d *Dirs) AppConfigDir(appName string) string {
	return filepath.Join(d.configHome, appName)
}

// AppCacheDir returns the application-specific cache directory
func (d *Dirs) AppCacheDir(appName string) string {
	return filepath.Join(d.cacheHome, appName)
}
