// Package settings manages persistent user settings for the albinos CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/raven-os/albinos/pkg/protocol"
)

// Settings holds persistent user preferences
type Settings struct {
	// Socket overrides the well-known service socket path
	Socket string `json:"socket,omitempty"`

	// DefaultKey is the access key to use when --key is not specified
	DefaultKey string `json:"default_key,omitempty"`

	// Keys maps user-chosen names to saved access keys
	Keys map[string]string `json:"keys,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "albinos_settings.json"
	}
	return filepath.Join(home, ".albinos", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
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
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetSocket returns the service socket path (with fallback)
func (s *Settings) GetSocket() string {
	if s.Socket != "" {
		return s.Socket
	}
	return protocol.DefaultSocketPath()
}

// SetSocket sets the service socket path
func (s *Settings) SetSocket(path string) {
	s.Socket = path
}

// SetDefaultKey sets the access key used when none is given
func (s *Settings) SetDefaultKey(key string) {
	s.DefaultKey = key
}

// SetKey saves an access key under a user-chosen name
func (s *Settings) SetKey(name, key string) {
	if s.Keys == nil {
		s.Keys = make(map[string]string)
	}
	s.Keys[name] = key
}

// GetKey resolves a saved key by name; a name with no entry resolves to
// itself, so raw keys can be used wherever a name is accepted
func (s *Settings) GetKey(name string) string {
	if key, ok := s.Keys[name]; ok {
		return key
	}
	return name
}

// DeleteKey removes a saved key
func (s *Settings) DeleteKey(name string) {
	delete(s.Keys, name)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
