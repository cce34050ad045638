// Package settings manages persistent user settings for the sotboard CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultConfigPath is used when neither a flag, the environment nor the
// settings name a configuration file.
const DefaultConfigPath = "/etc/sotboard/config.yaml"

// Settings holds persistent user preferences
type Settings struct {
	// ConfigPath is the onboarding configuration used when --config is not given
	ConfigPath string `json:"config_path,omitempty"`

	// DefaultProfile is the login profile used when --profile is not given
	DefaultProfile string `json:"default_profile,omitempty"`

	// LastJournal is the journal of the most recent onboarding run
	LastJournal string `json:"last_journal,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sotboard_settings.json"
	}
	return filepath.Join(home, ".sotboard", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields empty
// settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Set assigns a setting by its JSON name and reports whether the name is known.
func (s *Settings) Set(key, value string) bool {
	switch key {
	case "config_path", "config":
		s.ConfigPath = value
	case "default_profile", "profile":
		s.DefaultProfile = value
	case "last_journal":
		s.LastJournal = value
	default:
		return false
	}
	return true
}

// Get returns a setting by its JSON name.
func (s *Settings) Get(key string) (string, bool) {
	switch key {
	case "config_path", "config":
		return s.ConfigPath, true
	case "default_profile", "profile":
		return s.DefaultProfile, true
	case "last_journal":
		return s.LastJournal, true
	}
	return "", false
}

// GetConfigPath returns the configuration path (with fallback)
func (s *Settings) GetConfigPath() string {
	if s.ConfigPath != "" {
		return s.ConfigPath
	}
	return DefaultConfigPath
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
