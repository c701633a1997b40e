package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mender-qa/mgmtctl/pkg/util"
)

func TestSettings_SetGet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"server_url", "https://hosted.example.com", "https://hosted.example.com"},
		{"username", "ops@example.com", "ops@example.com"},
		{"per_page", "250", "250"},
		{"concurrency", "8", "8"},
		{"insecure", "true", "true"},
		{"insecure", "false", ""},
		{"artifact_name", "release-2", "release-2"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := &Settings{}
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error: %v", tt.key, tt.value, err)
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSettings_SetInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"per_page", "zero"},
		{"per_page", "-1"},
		{"concurrency", "0"},
		{"insecure", "maybe"},
		{"password", "secret"},
	}
	for _, tt := range tests {
		s := &Settings{}
		err := s.Set(tt.key, tt.value)
		if err == nil {
			t.Errorf("Set(%q, %q) should fail", tt.key, tt.value)
			continue
		}
		if !errors.Is(err, util.ErrInvalidArgument) {
			t.Errorf("Set(%q, %q) error %v should wrap ErrInvalidArgument", tt.key, tt.value, err)
		}
	}
}

func TestSettings_EmptyValueClears(t *testing.T) {
	s := &Settings{PerPage: 100, Username: "u"}
	if err := s.Set("per_page", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("username", ""); err != nil {
		t.Fatal(err)
	}
	if s.PerPage != 0 || s.Username != "" {
		t.Errorf("values not cleared: %+v", s)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		ServerURL:   "https://x",
		Username:    "u",
		PerPage:     10,
		Concurrency: 2,
		Insecure:    true,
	}

	s.Clear()

	if *s != (Settings{}) {
		t.Errorf("Clear() should reset all fields, got %+v", s)
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := &Settings{
		ServerURL:   "https://hosted.example.com",
		Username:    "ops@example.com",
		PerPage:     250,
		Concurrency: 8,
		Insecure:    true,
	}
	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("settings file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("loaded %+v, want %+v", loaded, original)
	}
}

func TestSettings_LoadMissingFile(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom() on missing file: %v", err)
	}
	if *s != (Settings{}) {
		t.Errorf("expected empty settings, got %+v", s)
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid JSON")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 6 {
		t.Fatalf("Keys() = %v", keys)
	}
	if keys[0] != "artifact_name" {
		t.Errorf("Keys() not sorted: %v", keys)
	}
}
