package platform

import (
	"regexp"
	"strings"

	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

var reVirtualName = regexp.MustCompile(`(?i)^(vlan|loopback|tunnel|bvi|nve|mgmt)`)

// CiscoPlugin returns the plugin for a Cisco platform. IOS, IOS-XR and
// NX-OS share the IOS-style configuration parser.
func CiscoPlugin(p Platform, provider device.Provider) *Plugin {
	return &Plugin{
		Platform: p,
		Provider: provider,
		NewParser: func(config string) (configparser.Parser, error) {
			return configparser.Parse(config)
		},
		DeviceProperties:    ciscoDeviceProperties,
		InterfaceProperties: ciscoInterfaceProperties,
		VlanProperties:      ciscoVlanProperties,
	}
}

// ciscoDeviceProperties names the device after its FQDN and fills the
// hardware properties the defaults did not set.
func ciscoDeviceProperties(props sot.Properties, facts device.Facts, parser configparser.Parser) error {
	name := facts.FQDN
	if name == "" {
		name = strings.ToLower(parser.FQDN())
	}
	if name != "" {
		props[sot.KeyName] = name
	}
	setIfAbsent := func(key, value string) {
		if _, ok := props[key]; !ok && value != "" {
			props[key] = value
		}
	}
	setIfAbsent("serial", facts.SerialNumber)
	setIfAbsent("device_type", facts.Model)
	setIfAbsent("manufacturer", facts.Manufacturer)
	if facts.OSVersion != "" {
		cf, _ := props["custom_fields"].(map[string]interface{})
		if cf == nil {
			cf = make(map[string]interface{})
		}
		if _, ok := cf["software_version"]; !ok {
			cf["software_version"] = facts.OSVersion
		}
		props["custom_fields"] = cf
	}
	return nil
}

func interfaceType(name string) string {
	switch {
	case IsLagName(name):
		return "lag"
	case reVirtualName.MatchString(name):
		return "virtual"
	}
	return "other"
}

// AddressRecord returns the record of one interface address with its
// parent prefix.
func AddressRecord(cidr, namespace, role string) sot.Properties {
	rec := sot.Properties{
		sot.KeyAddress: cidr,
		"status":       map[string]interface{}{"name": "Active"},
	}
	if role != "" {
		rec["role"] = role
	}
	if pfx, err := util.NetworkPrefix(cidr); err == nil {
		rec["parent"] = map[string]interface{}{
			sot.KeyPrefix:    pfx,
			sot.KeyNamespace: map[string]interface{}{"name": namespace},
		}
	}
	return rec
}

// ciscoInterfaceProperties turns each parsed interface into a record with
// its addresses, LAG membership and switchport mode.
func ciscoInterfaceProperties(parser configparser.Parser, defaults map[string]interface{}) ([]sot.Properties, error) {
	namespace := sot.RefName(defaults[sot.KeyNamespace])
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}

	var out []sot.Properties
	for _, name := range parser.InterfaceNames() {
		intf := parser.Interface(name)
		if intf == nil {
			continue
		}
		rec := sot.Properties{
			sot.KeyName: name,
			"type":      interfaceType(name),
			"enabled":   !intf.Shutdown,
			"status":    map[string]interface{}{"name": "Active"},
		}
		if intf.Description != "" {
			rec["description"] = intf.Description
		}
		if intf.MACAddress != "" {
			rec["mac_address"] = intf.MACAddress
		}
		if intf.ChannelGroup != "" {
			rec["lag"] = map[string]interface{}{"name": intf.ChannelGroup}
		}
		switch intf.Mode {
		case "access":
			rec["mode"] = "access"
			if intf.AccessVLAN > 0 {
				rec["untagged_vlan"] = intf.AccessVLAN
			}
		case "trunk":
			rec["mode"] = "tagged"
			if len(intf.VlansAllowed) > 0 {
				rec["tagged_vlans"] = util.CompactRange(intf.VlansAllowed)
			}
		}

		var addrs []sot.Properties
		if cidr := intf.CIDR(); cidr != "" {
			addrs = append(addrs, AddressRecord(cidr, namespace, ""))
		}
		for _, sec := range intf.Secondary {
			addrs = append(addrs, AddressRecord(sec, namespace, "secondary"))
		}
		if len(addrs) > 0 {
			rec["ip_addresses"] = addrs
		}
		out = append(out, rec)
	}
	return out, nil
}

// ciscoVlanProperties returns the global, SVI and trunk VLANs, first
// occurrence of a VID winning, located where the device is.
func ciscoVlanProperties(parser configparser.Parser, deviceProps sot.Properties) []sot.Properties {
	location := sot.RefName(deviceProps[sot.KeyLocation])
	global, svi, trunk := parser.Vlans()

	seen := make(map[int]bool)
	var out []sot.Properties
	for _, group := range [][]configparser.Vlan{global, svi, trunk} {
		for _, v := range group {
			if seen[v.VID] {
				continue
			}
			seen[v.VID] = true
			rec := sot.Properties{
				sot.KeyVID:  v.VID,
				sot.KeyName: v.Name,
				"status":    map[string]interface{}{"name": "Active"},
			}
			if location != "" {
				rec[sot.KeyLocation] = location
			}
			out = append(out, rec)
		}
	}
	return out
}
