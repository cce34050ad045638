package onboarding

import (
	"fmt"

	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Names used when the primary address is on no configured interface.
const (
	FallbackInterfaceName        = "primaryInterface"
	FallbackInterfaceDescription = "primary interface"
)

// KeyPrimaryInterface lets defaults or the inventory name the primary
// interface, either as a bare name or as a full interface record.
const KeyPrimaryInterface = "primary_interface"

// ResolvePrimaryAddress returns the address of the first candidate
// interface that has one, or "" when none does.
func ResolvePrimaryAddress(candidates []string, parser configparser.Parser) string {
	for _, name := range candidates {
		if addr := parser.InterfaceIPAddress(name); addr != "" {
			return addr
		}
		util.Debugf("no ip address on %s", name)
	}
	return ""
}

// ResolvePrimaryInterface returns the primary interface record. An explicit
// primary_interface in props wins: a record gets address filled in when it
// has none, a bare name becomes {name, address}. Otherwise the interface is
// derived from the configuration.
func ResolvePrimaryInterface(props sot.Properties, address string, parser configparser.Parser) sot.Properties {
	switch v := props[KeyPrimaryInterface].(type) {
	case map[string]interface{}:
		if _, ok := v[sot.KeyAddress]; !ok {
			v[sot.KeyAddress] = address
		}
		return sot.Properties(v)
	case sot.Properties:
		if _, ok := v[sot.KeyAddress]; !ok {
			v[sot.KeyAddress] = address
		}
		return v
	case string:
		if v != "" {
			return sot.Properties{sot.KeyName: v, sot.KeyAddress: address}
		}
	}
	return PrimaryInterfaceByAddress(address, parser)
}

// PrimaryInterfaceByAddress looks up the interface holding address. When no
// interface holds it, a /32 interface named primaryInterface is returned.
func PrimaryInterfaceByAddress(address string, parser configparser.Parser) sot.Properties {
	name := parser.InterfaceNameByAddress(address)
	intf := parser.Interface(name)
	if intf == nil {
		util.Debug("primary address is on no interface, using defaults")
		return sot.Properties{
			sot.KeyName:    FallbackInterfaceName,
			"description":  FallbackInterfaceDescription,
			"cidr":         fmt.Sprintf("%s/32", address),
			sot.KeyAddress: address,
		}
	}

	rec := sot.Properties{
		sot.KeyName:    name,
		sot.KeyAddress: intf.IP,
		"description":  intf.Description,
	}
	if ones, err := util.MaskToPrefixLen(intf.Mask); err == nil {
		rec["cidr"] = fmt.Sprintf("%s/%d", intf.IP, ones)
	} else {
		util.Warnf("interface %s has an invalid mask %q", name, intf.Mask)
		rec["cidr"] = util.HostCIDR(intf.IP)
	}
	if intf.Description == "" {
		util.Infof("primary interface %s has no description, using '%s'", name, FallbackInterfaceDescription)
		rec["description"] = FallbackInterfaceDescription
	}
	return rec
}
