// Package config loads the onboarding configuration: which source of truth
// to write to, where the prefix defaults live, how inventories are read and
// which login profiles, SNMP settings, journal and tag rules apply.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sotboard/pkg/defaults"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/inventory"
	"github.com/newtron-network/sotboard/pkg/journal"
	"github.com/newtron-network/sotboard/pkg/onboarding"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Environment overrides.
const (
	EnvConfig   = "SOTBOARD_CONFIG"
	EnvSoTToken = "SOTBOARD_SOT_TOKEN"
)

// SoT backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNautobot = "nautobot"
)

// Defaults sources.
const (
	SourceFile = "file"
	SourceEtcd = "etcd"
)

// Config is the onboarding configuration file.
type Config struct {
	SoT        SoTConfig                 `yaml:"sot"`
	Defaults   DefaultsConfig            `yaml:"defaults"`
	Onboarding OnboardingConfig          `yaml:"onboarding"`
	Inventory  InventoryConfig           `yaml:"inventory"`
	Profiles   map[string]device.Profile `yaml:"profiles"`
	SNMP       *SNMPConfig               `yaml:"snmp,omitempty"`
	Journal    JournalConfig             `yaml:"journal"`
	Tags       []map[string]interface{}  `yaml:"tags"`
}

// SoTConfig selects and reaches the source of truth.
type SoTConfig struct {
	Backend   string        `yaml:"backend"`
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	SSLVerify *bool         `yaml:"ssl_verify"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	Backoff   time.Duration `yaml:"backoff"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig is used by the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultsConfig locates the prefix defaults document.
type DefaultsConfig struct {
	Source    string        `yaml:"source"`
	Path      string        `yaml:"path"`
	Endpoints []string      `yaml:"endpoints"`
	Key       string        `yaml:"key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// OnboardingConfig tunes the reconciler and the session.
type OnboardingConfig struct {
	PrimaryInterfaces    []string `yaml:"primary_interfaces"`
	AddPrefix            *bool    `yaml:"add_prefix"`
	AssignIP             *bool    `yaml:"assign_ip"`
	Bulk                 *bool    `yaml:"bulk"`
	UseDeviceIfExists    *bool    `yaml:"use_device_if_exists"`
	UseInterfaceIfExists *bool    `yaml:"use_interface_if_exists"`
	UseIPIfExists        *bool    `yaml:"use_ip_if_exists"`
	ReplaceTags          bool     `yaml:"replace_tags"`
	ExportDir            string   `yaml:"export_dir"`
	ImportDir            string   `yaml:"import_dir"`
	Port                 int      `yaml:"port"`
	DefaultProfile       string   `yaml:"default_profile"`
}

// InventoryConfig controls how inventory files are read.
type InventoryConfig struct {
	Mapping string               `yaml:"mapping"`
	CSV     inventory.CSVOptions `yaml:"csv"`
}

// SNMPConfig enables SNMP facts collection.
type SNMPConfig struct {
	Version   string        `yaml:"version"`
	Community string        `yaml:"community"`
	V3        device.SNMPv3 `yaml:"v3"`
	Port      uint16        `yaml:"port"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Path returns the configuration path: flag wins over the environment,
// the environment over fallback.
func Path(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	return fallback
}

// Load reads, applies environment overrides to and validates the
// configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found: %w", path, util.ErrNotFound)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	util.WithField("path", path).Debug("Loaded onboarding config")
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %v: %w", err, util.ErrInvalidConfig)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SoT.Backend == "" {
		c.SoT.Backend = BackendMemory
	}
	c.SoT.Backend = strings.ToLower(c.SoT.Backend)
	if c.Defaults.Source == "" {
		c.Defaults.Source = SourceFile
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "file"
	}
}

func (c *Config) applyEnv() {
	if token := os.Getenv(EnvSoTToken); token != "" {
		c.SoT.Token = token
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var vb util.ValidationBuilder

	switch c.SoT.Backend {
	case BackendMemory:
	case BackendRedis:
		vb.Add(c.SoT.Redis.Addr != "", "sot.redis.addr is required for the redis backend")
	case BackendNautobot:
		vb.Add(c.SoT.URL != "", "sot.url is required for the nautobot backend")
		vb.Add(c.SoT.Token != "", "sot.token (or "+EnvSoTToken+") is required for the nautobot backend")
	default:
		vb.AddErrorf("unknown sot.backend '%s'", c.SoT.Backend)
	}
	vb.Add(c.SoT.Retries >= 0, "sot.retries must not be negative")

	switch c.Defaults.Source {
	case SourceFile:
		vb.Add(c.Defaults.Path != "", "defaults.path is required for the file source")
	case SourceEtcd:
		vb.Add(len(c.Defaults.Endpoints) > 0, "defaults.endpoints is required for the etcd source")
	default:
		vb.AddErrorf("unknown defaults.source '%s'", c.Defaults.Source)
	}

	vb.Add(c.Onboarding.Port >= 0 && c.Onboarding.Port < 65536, "onboarding.port out of range")
	if p := c.Onboarding.DefaultProfile; p != "" {
		_, ok := c.Profiles[p]
		vb.Add(ok, fmt.Sprintf("onboarding.default_profile '%s' is not defined", p))
	}

	switch strings.ToLower(c.Journal.Driver) {
	case "file", journal.DriverSQLite, journal.DriverPostgres:
		vb.Add(c.Journal.DSN != "", "journal.dsn is required")
	case "none":
	default:
		vb.AddErrorf("unknown journal.driver '%s'", c.Journal.Driver)
	}

	if c.SNMP != nil {
		v := strings.ToLower(c.SNMP.Version)
		vb.Add(v == "" || v == "v2c" || v == "v3", fmt.Sprintf("unknown snmp.version '%s'", c.SNMP.Version))
		if v == "v3" {
			vb.Add(c.SNMP.V3.User != "", "snmp.v3.user is required for SNMPv3")
		}
	}

	if _, err := onboarding.ParseTagRules(c.Tags); err != nil {
		vb.AddErrorf("tags: %v", err)
	}

	return vb.Build()
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Options returns the reconciler options. Unset switches default to on,
// except replace_tags.
func (c *Config) Options() onboarding.Options {
	o := c.Onboarding
	return onboarding.Options{
		AddPrefix:            boolOr(o.AddPrefix, true),
		AssignIP:             boolOr(o.AssignIP, true),
		Bulk:                 boolOr(o.Bulk, true),
		UseDeviceIfExists:    boolOr(o.UseDeviceIfExists, true),
		UseInterfaceIfExists: boolOr(o.UseInterfaceIfExists, true),
		UseIPIfExists:        boolOr(o.UseIPIfExists, true),
		ReplaceTags:          o.ReplaceTags,
	}
}

// SSLVerify reports whether TLS certificates of the SoT are verified.
func (c *Config) SSLVerify() bool {
	return boolOr(c.SoT.SSLVerify, true)
}

// RetryPolicy returns the SoT round-trip policy.
func (c *Config) RetryPolicy() sot.RetryPolicy {
	p := sot.DefaultRetryPolicy
	if c.SoT.Timeout > 0 {
		p.Timeout = c.SoT.Timeout
	}
	if c.SoT.Retries > 0 {
		p.Attempts = c.SoT.Retries + 1
	}
	if c.SoT.Backoff > 0 {
		p.Backoff = c.SoT.Backoff
	}
	return p
}

// DefaultsSource returns the configured defaults document source.
func (c *Config) DefaultsSource() defaults.Source {
	if c.Defaults.Source == SourceEtcd {
		return &defaults.EtcdSource{
			Endpoints:   c.Defaults.Endpoints,
			Key:         c.Defaults.Key,
			DialTimeout: c.Defaults.Timeout,
		}
	}
	return &defaults.FileSource{Path: c.Defaults.Path}
}

// InventoryOptions returns the inventory reader options, loading the
// mapping file when one is configured.
func (c *Config) InventoryOptions() (inventory.Options, error) {
	opts := inventory.Options{CSV: c.Inventory.CSV}
	if c.Inventory.Mapping != "" {
		m, err := inventory.LoadMapping(c.Inventory.Mapping)
		if err != nil {
			return opts, err
		}
		opts.Mapping = m
	}
	return opts, nil
}

// Profile returns the named login profile, or the default profile when
// name is empty.
func (c *Config) Profile(name string) (device.Profile, error) {
	if name == "" {
		name = c.Onboarding.DefaultProfile
	}
	if name == "" {
		return device.Profile{}, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return device.Profile{}, fmt.Errorf("profile '%s': %w", name, util.ErrNotFound)
	}
	return p, nil
}

// Provider returns the live configuration provider: SSH, with SNMP facts
// filling the gaps when snmp is configured.
func (c *Config) Provider() device.Provider {
	var p device.Provider = device.NewSSHProvider()
	if c.SNMP != nil {
		p = device.WithSNMP(p, &device.SNMPCollector{
			Version:   strings.ToLower(c.SNMP.Version),
			Community: c.SNMP.Community,
			V3:        c.SNMP.V3,
			Port:      c.SNMP.Port,
			Timeout:   c.SNMP.Timeout,
			Retries:   c.SNMP.Retries,
		})
	}
	return p
}

// Importer returns the provider used in import mode, or nil.
func (c *Config) Importer() device.Provider {
	if c.Onboarding.ImportDir == "" {
		return nil
	}
	return &device.FileProvider{Dir: c.Onboarding.ImportDir}
}

// TagRules returns the parsed tag rules.
func (c *Config) TagRules() ([]onboarding.TagRule, error) {
	return onboarding.ParseTagRules(c.Tags)
}

// JournalRotation returns the rotation of the file journal.
func (c *Config) JournalRotation() journal.RotationConfig {
	return journal.RotationConfig{MaxSize: c.Journal.MaxSize, MaxBackups: c.Journal.MaxBackups}
}

// OpenJournal opens the configured journal, or returns nil when the driver
// is none.
func (c *Config) OpenJournal(ctx context.Context) (journal.Journal, error) {
	switch strings.ToLower(c.Journal.Driver) {
	case "none":
		return nil, nil
	case "", "file":
		return journal.NewFileJournal(c.Journal.DSN, c.JournalRotation())
	}
	return journal.New(ctx, c.Journal.Driver, c.Journal.DSN)
}
