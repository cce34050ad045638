package version

import "testing"

func TestInfo(t *testing.T) {
	if !IsDev() || Info() != "dev build" {
		t.Errorf("Info() = %q, want dev build", Info())
	}

	old := Version
	defer func() { Version = old }()
	Version = "v0.3.0"
	if got, want := Info(), "v0.3.0 (unknown) built unknown"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	if got := UserAgent(); got != "sotboard/v0.3.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
