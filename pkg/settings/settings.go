// Package settings manages persistent user settings for the mgmtctl CLI.
// Passwords are never stored.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mender-qa/mgmtctl/pkg/util"
)

// Settings holds persistent user preferences
type Settings struct {
	// ServerURL is the backend used when --url / URL is not given
	ServerURL string `json:"server_url,omitempty"`

	// Username is the login used when --username / USERNAME is not given
	Username string `json:"username,omitempty"`

	// PerPage overrides the page size of full listings
	PerPage int `json:"per_page,omitempty"`

	// Concurrency bounds bulk fan-out
	Concurrency int `json:"concurrency,omitempty"`

	// Insecure skips TLS verification
	Insecure bool `json:"insecure,omitempty"`

	// ArtifactName is the default artifact of new deployments
	ArtifactName string `json:"artifact_name,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mgmtctl_settings.json"
	}
	return filepath.Join(home, ".mgmtctl", "settings.json")
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
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Keys lists the names accepted by Set and Get.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

var fields = map[string]field{
	"server_url": {
		get: func(s *Settings) string { return s.ServerURL },
		set: func(s *Settings, v string) error { s.ServerURL = v; return nil },
	},
	"username": {
		get: func(s *Settings) string { return s.Username },
		set: func(s *Settings, v string) error { s.Username = v; return nil },
	},
	"per_page": {
		get: func(s *Settings) string { return intString(s.PerPage) },
		set: func(s *Settings, v string) error { return setPositive(&s.PerPage, "per_page", v) },
	},
	"concurrency": {
		get: func(s *Settings) string { return intString(s.Concurrency) },
		set: func(s *Settings, v string) error { return setPositive(&s.Concurrency, "concurrency", v) },
	},
	"insecure": {
		get: func(s *Settings) string {
			if !s.Insecure {
				return ""
			}
			return "true"
		},
		set: func(s *Settings, v string) error {
			if v == "" {
				s.Insecure = false
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: insecure must be true or false", util.ErrInvalidArgument)
			}
			s.Insecure = b
			return nil
		},
	},
	"artifact_name": {
		get: func(s *Settings) string { return s.ArtifactName },
		set: func(s *Settings, v string) error { s.ArtifactName = v; return nil },
	},
}

func intString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func setPositive(dst *int, name, v string) error {
	if v == "" {
		*dst = 0
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: %s must be a positive integer, got %q", util.ErrInvalidArgument, name, v)
	}
	*dst = n
	return nil
}

// Set assigns a setting by key; an empty value clears it.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q (valid: %v)", util.ErrInvalidArgument, key, Keys())
	}
	return f.set(s, value)
}

// Get returns a setting by key; unset values are "".
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q (valid: %v)", util.ErrInvalidArgument, key, Keys())
	}
	return f.get(s), nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
