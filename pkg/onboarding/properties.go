// Package onboarding turns merged device defaults and a parsed device
// configuration into source-of-truth records and reconciles them.
package onboarding

import (
	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/platform"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Keys rewritten from a bare value to a {name: value} reference.
var nameRefKeys = []string{"role", "manufacturer", "platform", "status"}

// KeyDeviceType is rewritten to a {model: value} reference.
const KeyDeviceType = "device_type"

// NormalizeDeviceProperties rewrites scalar references into reference
// objects and splits a comma separated tags string. Values that already are
// mappings are left alone, so normalizing twice changes nothing.
func NormalizeDeviceProperties(props sot.Properties) {
	for _, key := range nameRefKeys {
		wrapRef(props, key, "name")
	}
	wrapRef(props, KeyDeviceType, "model")

	if s, ok := props[sot.KeyTags].(string); ok {
		props[sot.KeyTags] = util.SplitCommaSeparated(s)
	}
}

func wrapRef(props sot.Properties, key, field string) {
	v, ok := props[key]
	if !ok || v == nil {
		return
	}
	switch v.(type) {
	case map[string]interface{}, sot.Properties:
		return
	}
	props[key] = map[string]interface{}{field: v}
}

// BuildDeviceProperties copies the defaults, lets the platform plugin add
// its properties and normalizes the result.
func BuildDeviceProperties(plugin *platform.Plugin, defaults map[string]interface{}, facts device.Facts, parser configparser.Parser) (sot.Properties, error) {
	if plugin == nil {
		return nil, util.NewUnknownPlatformError(sot.RefName(defaults["platform"]))
	}
	props := sot.Properties(util.CloneMap(defaults))
	if err := plugin.DeviceProperties(props, facts, parser); err != nil {
		return nil, err
	}
	NormalizeDeviceProperties(props)
	return props, nil
}

// BuildDevicePropertiesFor resolves the plugin of the defaults' platform in
// registry before building.
func BuildDevicePropertiesFor(registry *platform.Registry, defaults map[string]interface{}, facts device.Facts, parser configparser.Parser) (sot.Properties, error) {
	plugin, err := registry.Lookup(platform.Parse(defaults["platform"]))
	if err != nil {
		return nil, err
	}
	return BuildDeviceProperties(plugin, defaults, facts, parser)
}
