package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newtron-network/sotboard/pkg/defaults"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/journal"
	"github.com/newtron-network/sotboard/pkg/util"
)

const sampleConfig = `sot:
  backend: nautobot
  url: https://sot.example.net
  token: abc
  ssl_verify: false
  timeout: 10s
  retries: 2
defaults:
  path: /etc/sotboard/defaults.yaml
onboarding:
  primary_interfaces: [Loopback0, Vlan99]
  add_prefix: false
  replace_tags: true
  port: 2222
  default_profile: lab
  import_dir: /var/lib/sotboard/export
inventory:
  csv:
    delimiter: ";"
    quotechar: "|"
profiles:
  lab:
    username: admin
    password: secret
snmp:
  community: public
journal:
  driver: sqlite
  dsn: /var/lib/sotboard/journal.db
tags:
  - name: core
    match__c: "router bgp"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.SoT.Backend != BackendNautobot || cfg.SoT.Token != "abc" {
		t.Errorf("SoT = %+v", cfg.SoT)
	}
	if cfg.SSLVerify() {
		t.Error("SSLVerify() = true, want false")
	}

	p := cfg.RetryPolicy()
	if p.Timeout != 10*time.Second || p.Attempts != 3 {
		t.Errorf("RetryPolicy() = %+v", p)
	}

	opts := cfg.Options()
	if opts.AddPrefix || !opts.AssignIP || !opts.Bulk || !opts.UseIPIfExists || !opts.ReplaceTags {
		t.Errorf("Options() = %+v", opts)
	}

	if src, ok := cfg.DefaultsSource().(*defaults.FileSource); !ok || src.Path != "/etc/sotboard/defaults.yaml" {
		t.Errorf("DefaultsSource() = %#v", cfg.DefaultsSource())
	}

	prof, err := cfg.Profile("")
	if err != nil || prof.Username != "admin" {
		t.Errorf("Profile(\"\") = %+v, %v", prof, err)
	}
	if _, err := cfg.Profile("prod"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Profile(prod) error = %v, want ErrNotFound", err)
	}

	if fp, ok := cfg.Importer().(*device.FileProvider); !ok || fp.Dir != "/var/lib/sotboard/export" {
		t.Errorf("Importer() = %#v", cfg.Importer())
	}
	if cfg.Provider() == nil {
		t.Error("Provider() = nil")
	}

	rules, err := cfg.TagRules()
	if err != nil || len(rules) != 1 || rules[0].Name != "core" {
		t.Errorf("TagRules() = %v, %v", rules, err)
	}

	inv, err := cfg.InventoryOptions()
	if err != nil || inv.CSV.Delimiter != ";" || inv.CSV.QuoteChar != "|" || inv.Mapping != nil {
		t.Errorf("InventoryOptions() = %+v, %v", inv, err)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("defaults:\n  path: d.yaml\njournal:\n  dsn: j.jsonl\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.SoT.Backend != BackendMemory || cfg.Journal.Driver != "file" {
		t.Errorf("defaults not applied: %+v %+v", cfg.SoT, cfg.Journal)
	}
	if !cfg.SSLVerify() {
		t.Error("SSLVerify() default should be true")
	}
	opts := cfg.Options()
	if !opts.AddPrefix || !opts.UseDeviceIfExists || !opts.UseInterfaceIfExists || opts.ReplaceTags {
		t.Errorf("Options() default = %+v", opts)
	}
	if cfg.Importer() != nil {
		t.Error("Importer() without import_dir should be nil")
	}
	if prof, err := cfg.Profile(""); err != nil || prof != (device.Profile{}) {
		t.Errorf("Profile(\"\") = %+v, %v", prof, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "sot: {backend: mongo}\ndefaults: {path: d}\njournal: {dsn: j}\n"},
		{"redis without addr", "sot: {backend: redis}\ndefaults: {path: d}\njournal: {dsn: j}\n"},
		{"nautobot without token", "sot: {backend: nautobot, url: http://x}\ndefaults: {path: d}\njournal: {dsn: j}\n"},
		{"file defaults without path", "journal: {dsn: j}\n"},
		{"etcd without endpoints", "defaults: {source: etcd}\njournal: {dsn: j}\n"},
		{"unknown source", "defaults: {source: http}\njournal: {dsn: j}\n"},
		{"journal without dsn", "defaults: {path: d}\njournal: {driver: sqlite}\n"},
		{"unknown journal", "defaults: {path: d}\njournal: {driver: mongo, dsn: j}\n"},
		{"undefined profile", "defaults: {path: d}\njournal: {dsn: j}\nonboarding: {default_profile: x}\n"},
		{"bad port", "defaults: {path: d}\njournal: {dsn: j}\nonboarding: {port: 70000}\n"},
		{"bad snmp version", "defaults: {path: d}\njournal: {dsn: j}\nsnmp: {version: v1}\n"},
		{"snmpv3 without user", "defaults: {path: d}\njournal: {dsn: j}\nsnmp: {version: v3}\n"},
		{"bad tag rule", "defaults: {path: d}\njournal: {dsn: j}\ntags: [{scope: dcim.interface, name: x}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Parse() error = %v, want ErrValidationFailed", err)
			}
		})
	}

	if _, err := Parse([]byte("sot: [")); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Parse(bad yaml) error = %v, want ErrInvalidConfig", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSoTToken, "from-env")
	cfg, err := Parse([]byte("sot: {backend: nautobot, url: http://x}\ndefaults: {path: d}\njournal: {driver: none}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.SoT.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.SoT.Token)
	}

	t.Setenv(EnvConfig, "/env/config.yaml")
	if got := Path("", "/fallback.yaml"); got != "/env/config.yaml" {
		t.Errorf("Path() = %q, want env value", got)
	}
	if got := Path("/flag.yaml", "/fallback.yaml"); got != "/flag.yaml" {
		t.Errorf("Path(flag) = %q", got)
	}
	t.Setenv(EnvConfig, "")
	if got := Path("", "/fallback.yaml"); got != "/fallback.yaml" {
		t.Errorf("Path() = %q, want fallback", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	mapping := filepath.Join(dir, "mapping.yaml")
	os.WriteFile(mapping, []byte("mappings:\n  columns:\n    Hostname: host\n"), 0644)

	path := filepath.Join(dir, "config.yaml")
	data := "defaults:\n  source: etcd\n  endpoints: [127.0.0.1:2379]\n" +
		"journal:\n  dsn: j.jsonl\n  max_size: 1024\n  max_backups: 3\n" +
		"inventory:\n  mapping: " + mapping + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src, ok := cfg.DefaultsSource().(*defaults.EtcdSource); !ok || len(src.Endpoints) != 1 {
		t.Errorf("DefaultsSource() = %#v", cfg.DefaultsSource())
	}
	if r := cfg.JournalRotation(); r.MaxSize != 1024 || r.MaxBackups != 3 {
		t.Errorf("JournalRotation() = %+v", r)
	}
	inv, err := cfg.InventoryOptions()
	if err != nil || inv.Mapping == nil || inv.Mapping.Columns["Hostname"] != "host" {
		t.Errorf("InventoryOptions() = %+v, %v", inv, err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestOpenJournal(t *testing.T) {
	cfg, err := Parse([]byte("defaults: {path: d}\njournal: {driver: none}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if j, err := cfg.OpenJournal(context.Background()); j != nil || err != nil {
		t.Errorf("OpenJournal(none) = %v, %v, want nil, nil", j, err)
	}

	dsn := filepath.Join(t.TempDir(), "journal.jsonl")
	cfg, err = Parse([]byte("defaults: {path: d}\njournal: {dsn: " + dsn + "}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	j, err := cfg.OpenJournal(context.Background())
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	defer j.Close()
	if _, ok := j.(*journal.FileJournal); !ok {
		t.Errorf("OpenJournal() = %T, want *journal.FileJournal", j)
	}
}
