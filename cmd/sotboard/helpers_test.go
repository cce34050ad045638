package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sotboard/pkg/config"
	"github.com/newtron-network/sotboard/pkg/onboarding"
	"github.com/newtron-network/sotboard/pkg/settings"
	"github.com/newtron-network/sotboard/pkg/util"
)

// useConfig installs a parsed configuration as the global one.
func useConfig(t *testing.T, data string) {
	t.Helper()
	c, err := config.Parse([]byte(data))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	oldCfg, oldSettings := cfg, userSettings
	cfg, userSettings = c, &settings.Settings{}
	t.Cleanup(func() { cfg, userSettings = oldCfg, oldSettings })
}

func TestParseRow(t *testing.T) {
	row, err := parseRow([]string{"role=core", "site=hq=1"})
	if err != nil {
		t.Fatalf("parseRow() error = %v", err)
	}
	if row["role"] != "core" || row["site"] != "hq=1" {
		t.Errorf("parseRow() = %v", row)
	}
	for _, bad := range []string{"role", "=core"} {
		if _, err := parseRow([]string{bad}); err == nil {
			t.Errorf("parseRow(%q) should fail", bad)
		}
	}
}

func TestSkipsConfig(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		want bool
	}{
		{settingsShowCmd, true},
		{versionCmd, true},
		{onboardCmd, false},
		{journalShowCmd, false},
		{defaultsPushCmd, false},
	}
	for _, tt := range tests {
		if got := skipsConfig(tt.cmd); got != tt.want {
			t.Errorf("skipsConfig(%s) = %v, want %v", tt.cmd.CommandPath(), got, tt.want)
		}
	}
}

func TestInventoryRows(t *testing.T) {
	dir := t.TempDir()
	inv := filepath.Join(dir, "hosts.csv")
	if err := os.WriteFile(inv, []byte("Hostname;ip\nsw1;10.0.0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	mapping := filepath.Join(dir, "mapping.yaml")
	if err := os.WriteFile(mapping, []byte("mappings:\n  columns:\n    Hostname: host\n"), 0644); err != nil {
		t.Fatal(err)
	}
	useConfig(t, "defaults: {path: d}\njournal: {driver: none}\n"+
		"inventory:\n  mapping: "+mapping+"\n  csv: {delimiter: \";\"}\n")

	rows, err := inventoryRows(nil, inv)
	if err != nil || len(rows) != 1 || rows[0]["host"] != "sw1" {
		t.Errorf("inventoryRows(file) = %v, %v", rows, err)
	}
	rows, err = inventoryRows([]string{"sw1", " ", "10.0.0.2"}, "")
	if err != nil || len(rows) != 2 {
		t.Errorf("inventoryRows(devices) = %v, %v", rows, err)
	}
	if _, err := inventoryRows([]string{"sw1"}, inv); err == nil {
		t.Error("inventoryRows(both) should fail")
	}
	if _, err := inventoryRows(nil, ""); err == nil {
		t.Error("inventoryRows(none) should fail")
	}
}

func TestPrintResults(t *testing.T) {
	ok := onboarding.NewResult("sw1")
	ok.Record(onboarding.StepDevice, "sw1", nil)

	partial := onboarding.NewResult("sw2")
	partial.Record(onboarding.StepDevice, "sw2", nil)
	partial.Record(onboarding.StepAddress, "10.0.0.2/24", errors.New("duplicate"))

	aborted := onboarding.NewResult("sw3")
	aborted.Abort(onboarding.StepResolve, "sw3", errors.New("no such host"))

	if err := printResults([]*onboarding.Result{ok}); err != nil {
		t.Errorf("printResults(ok) error = %v", err)
	}
	err := printResults([]*onboarding.Result{ok, partial, aborted})
	if err == nil || err.Error() != "2 of 3 devices failed" {
		t.Errorf("printResults() error = %v, want 2 of 3 devices failed", err)
	}
}

func TestOpenSoTAndSession(t *testing.T) {
	useConfig(t, "defaults: {path: d}\njournal: {driver: none}\n"+
		"onboarding: {port: 2222, primary_interfaces: [Loopback0], default_profile: lab}\n"+
		"profiles: {lab: {username: admin, password: secret}}\n")

	client, closeSoT, err := openSoT(context.Background())
	if err != nil {
		t.Fatalf("openSoT() error = %v", err)
	}
	defer closeSoT()

	s, err := newSession(client, sessionFlags{port: 22}, true)
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}
	if s.Port != 22 || s.Profile.Username != "admin" || len(s.Candidates) != 1 || s.Registry == nil {
		t.Errorf("newSession() = %+v", s)
	}
	if _, err := newSession(client, sessionFlags{profile: "prod"}, false); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("newSession(unknown profile) error = %v, want ErrNotFound", err)
	}

	rec, finish, err := openRecorder(context.Background(), "onboard", false)
	if err != nil || rec != nil {
		t.Errorf("openRecorder(driver none) = %v, %v", rec, err)
	}
	finish()
}
