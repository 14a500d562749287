package app

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v3"
)

// LoadSettingsFile reads YAML or JSON settings on top of DefaultSettings, so
// keys the file omits keep their defaults.
func LoadSettingsFile(fs afero.Fs, path string) (Settings, error) {
	s := DefaultSettings()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return s, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &s); err != nil {
			s = DefaultSettings()
			if jerr := json.Unmarshal(b, &s); jerr != nil {
				return s, fmt.Errorf("parse settings: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return s, s.Validate()
}

// SaveSettingsFile writes s as YAML, or JSON for a .json path.
func SaveSettingsFile(fs afero.Fs, path string, s Settings) error {
	var (
		b   []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err = json.MarshalIndent(s, "", "  ")
	} else {
		b, err = yaml.Marshal(s)
	}
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, b, 0o644)
}
