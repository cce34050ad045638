package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetConfigPath(); got != DefaultConfigPath {
		t.Errorf("GetConfigPath() default = %q, want %q", got, DefaultConfigPath)
	}
	if s.DefaultProfile != "" {
		t.Errorf("DefaultProfile should be empty, got %q", s.DefaultProfile)
	}
}

func TestSettings_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		ok    bool
		check func(*Settings) string
	}{
		{"config", "/tmp/a.yaml", true, func(s *Settings) string { return s.GetConfigPath() }},
		{"config_path", "/tmp/b.yaml", true, func(s *Settings) string { return s.ConfigPath }},
		{"profile", "lab", true, func(s *Settings) string { return s.DefaultProfile }},
		{"last_journal", "0190", true, func(s *Settings) string { return s.LastJournal }},
		{"colour", "red", false, nil},
	}
	for _, tt := range tests {
		s := &Settings{}
		if got := s.Set(tt.key, tt.value); got != tt.ok {
			t.Errorf("Set(%q) = %v, want %v", tt.key, got, tt.ok)
			continue
		}
		if tt.check != nil && tt.check(s) != tt.value {
			t.Errorf("Set(%q) stored %q, want %q", tt.key, tt.check(s), tt.value)
		}
		if got, ok := s.Get(tt.key); ok != tt.ok || (ok && got != tt.value) {
			t.Errorf("Get(%q) = %q, %v", tt.key, got, ok)
		}
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		ConfigPath:     "/path",
		DefaultProfile: "lab",
		LastJournal:    "last",
	}

	s.Clear()

	if s.ConfigPath != "" || s.DefaultProfile != "" || s.LastJournal != "" {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := &Settings{
		ConfigPath:     "/etc/sotboard/lab.yaml",
		DefaultProfile: "lab",
		LastJournal:    "0190f1e0-0000-7000-8000-000000000000",
	}
	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("LoadFrom() = %+v, want %+v", loaded, original)
	}
}

func TestSettings_LoadMissing(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom() missing file error = %v", err)
	}
	if s.ConfigPath != "" {
		t.Errorf("LoadFrom() missing file should give empty settings, got %+v", s)
	}
}

func TestSettings_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid JSON")
	}
}
