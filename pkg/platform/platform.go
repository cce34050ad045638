// Package platform maps device platforms to the plugins that know how to
// fetch, parse and describe them.
package platform

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Platform identifies a device operating system family.
type Platform string

// Built-in platforms.
const (
	IOS   Platform = "ios"
	IOSXR Platform = "iosxr"
	NXOS  Platform = "nxos"
)

// Custom returns a user-defined platform.
func Custom(id string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(id)))
}

// aliases are the names inventories commonly use for built-in platforms.
var aliases = map[string]Platform{
	"ios":        IOS,
	"cisco_ios":  IOS,
	"ios-xe":     IOS,
	"iosxe":      IOS,
	"cisco_xe":   IOS,
	"iosxr":      IOSXR,
	"ios-xr":     IOSXR,
	"cisco_xr":   IOSXR,
	"nxos":       NXOS,
	"nx-os":      NXOS,
	"cisco_nxos": NXOS,
}

// Parse maps a platform name, or a {name: ...} reference, to a Platform.
// Unknown names become custom platforms.
func Parse(v interface{}) Platform {
	name := strings.ToLower(strings.TrimSpace(sot.RefName(v)))
	if p, ok := aliases[name]; ok {
		return p
	}
	return Custom(name)
}

func (p Platform) String() string {
	return string(p)
}

var reLagName = regexp.MustCompile(`(?i)^(port-?channel|bundle-ether|lag|ae)\s*\d`)

// IsLagName reports whether name is a link aggregation interface, on any
// platform.
func IsLagName(name string) bool {
	return reLagName.MatchString(strings.TrimSpace(name))
}

// Plugin is the set of platform-specific capabilities onboarding needs.
type Plugin struct {
	Platform Platform

	// Provider fetches configuration and facts from the device.
	Provider device.Provider

	// NewParser parses a running configuration.
	NewParser func(config string) (configparser.Parser, error)

	// DeviceProperties adds platform-specific device properties to props.
	DeviceProperties func(props sot.Properties, facts device.Facts, parser configparser.Parser) error

	// InterfaceProperties returns one record per interface.
	InterfaceProperties func(parser configparser.Parser, defaults map[string]interface{}) ([]sot.Properties, error)

	// VlanProperties returns the VLANs to create for a device.
	VlanProperties func(parser configparser.Parser, deviceProps sot.Properties) []sot.Properties
}

// Registry holds the plugins of a process. It is built once at startup and
// passed to whatever needs to resolve a platform.
type Registry struct {
	mu      sync.RWMutex
	plugins map[Platform]*Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[Platform]*Plugin)}
}

// Register adds or replaces the plugin of p.Platform.
func (r *Registry) Register(p *Plugin) error {
	if p == nil || p.Platform == "" {
		return fmt.Errorf("plugin without platform: %w", util.ErrInvalidConfig)
	}
	if p.NewParser == nil || p.DeviceProperties == nil || p.InterfaceProperties == nil || p.VlanProperties == nil {
		return fmt.Errorf("plugin %s is incomplete: %w", p.Platform, util.ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[p.Platform]; ok {
		util.WithField("platform", p.Platform).Debug("replacing plugin")
	}
	r.plugins[p.Platform] = p
	return nil
}

// Lookup returns the plugin of a platform, or an UnknownPlatformError.
func (r *Registry) Lookup(p Platform) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.plugins[p]
	if !ok {
		return nil, util.NewUnknownPlatformError(string(p))
	}
	return plugin, nil
}

// Platforms lists the registered platforms in sorted order.
func (r *Registry) Platforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Platform, 0, len(r.plugins))
	for p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Builtin returns a registry holding the IOS, IOS-XR and NX-OS plugins, all
// fetching through provider.
func Builtin(provider device.Provider) *Registry {
	r := NewRegistry()
	for _, p := range []Platform{IOS, IOSXR, NXOS} {
		// built-in plugins are complete, Register cannot fail
		_ = r.Register(CiscoPlugin(p, provider))
	}
	return r
}
