package app

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "goscrape"

// DefaultCacheDir is where page records live when no cache dir is configured.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, appName, "pages")
}

// DefaultSettingsPath returns the first existing settings file in the XDG
// config dirs, or "" when there is none.
func DefaultSettingsPath() string {
	for _, name := range []string{"settings.yaml", "settings.yml", "settings.json"} {
		if p, err := xdg.SearchConfigFile(filepath.Join(appName, name)); err == nil {
			return p
		}
	}
	return ""
}
