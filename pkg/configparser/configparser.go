// Package configparser extracts interfaces, addresses and VLANs from a
// device running-config.
package configparser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/sotboard/pkg/util"
)

// Interface is one parsed interface block.
type Interface struct {
	Name         string
	Description  string
	IP           string // primary address, no mask
	Mask         string // dotted netmask or prefix length as written
	Secondary    []string
	Shutdown     bool
	MACAddress   string
	ChannelGroup string // LAG the interface is a member of
	Mode         string // "access" or "trunk"
	AccessVLAN   int
	VlansAllowed []int
	VRF          string
}

// CIDR returns "ip/len" for the primary address, or "" when the interface
// has no address or an unparsable mask.
func (i *Interface) CIDR() string {
	if i == nil || i.IP == "" {
		return ""
	}
	cidr, err := util.FormatCIDR(i.IP, i.Mask)
	if err != nil {
		return ""
	}
	return cidr
}

// Vlan is a VLAN seen in the configuration.
type Vlan struct {
	VID  int
	Name string
}

// Parser is the read-only view onboarding needs of a parsed configuration.
type Parser interface {
	Hostname() string
	FQDN() string
	Interface(name string) *Interface
	InterfaceNames() []string
	InterfaceIPAddress(name string) string
	InterfaceNameByAddress(address string) string
	Vlans() (global, svi, trunk []Vlan)
	GlobalConfig() []string
	Section(name string) []string
	FindInGlobal(m Match) bool
	FindInInterfaces(m Match) []string
}

// Config is a parsed IOS-style configuration (IOS, IOS-XE, NX-OS, IOS-XR
// share enough syntax for the fields onboarding reads).
type Config struct {
	raw        string
	lines      []string
	hostname   string
	domain     string
	vlans      map[int]string
	interfaces map[string]*Interface
	order      []string
}

var _ Parser = (*Config)(nil)

// Parse parses a running-config. An empty configuration is a parse error.
func Parse(raw string) (*Config, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty configuration: %w", util.ErrParseFailed)
	}
	c := &Config{
		raw:        raw,
		lines:      strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n"),
		vlans:      make(map[int]string),
		interfaces: make(map[string]*Interface),
	}

	var (
		intf      *Interface
		vlanBlock []int
	)
	for _, line := range c.lines {
		if line == "" || strings.HasPrefix(line, "!") {
			intf, vlanBlock = nil, nil
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if indented {
			switch {
			case intf != nil:
				c.parseInterfaceLine(intf, fields)
			case vlanBlock != nil && fields[0] == "name" && len(fields) > 1:
				for _, vid := range vlanBlock {
					c.vlans[vid] = strings.Join(fields[1:], " ")
				}
			}
			continue
		}

		intf, vlanBlock = nil, nil
		switch strings.ToLower(fields[0]) {
		case "hostname":
			if len(fields) > 1 {
				c.hostname = strings.Trim(fields[1], "\"")
			}
		case "ip":
			// ip domain name X | ip domain-name X
			if len(fields) >= 4 && fields[1] == "domain" && fields[2] == "name" {
				c.domain = fields[3]
			} else if len(fields) >= 3 && fields[1] == "domain-name" {
				c.domain = fields[2]
			}
		case "domain":
			// IOS-XR: domain name X
			if len(fields) >= 3 && fields[1] == "name" {
				c.domain = fields[2]
			}
		case "vlan":
			if len(fields) > 1 {
				vids, err := util.ExpandVLANRange(fields[1])
				if err != nil {
					continue
				}
				for _, vid := range vids {
					if _, ok := c.vlans[vid]; !ok {
						c.vlans[vid] = ""
					}
				}
				vlanBlock = vids
			}
		case "interface":
			if len(fields) > 1 {
				name := strings.Join(fields[1:], "")
				intf = &Interface{Name: name}
				if _, dup := c.interfaces[name]; !dup {
					c.order = append(c.order, name)
				}
				c.interfaces[name] = intf
			}
		}
	}
	return c, nil
}

func (c *Config) parseInterfaceLine(intf *Interface, f []string) {
	switch f[0] {
	case "description":
		intf.Description = strings.Join(f[1:], " ")
	case "shutdown":
		intf.Shutdown = true
	case "mac-address":
		if len(f) > 1 {
			intf.MACAddress = f[1]
		}
	case "channel-group":
		if len(f) > 1 {
			intf.ChannelGroup = "Port-channel" + f[1]
		}
	case "bundle":
		// IOS-XR: bundle id 10 mode active
		if len(f) > 2 && f[1] == "id" {
			intf.ChannelGroup = "Bundle-Ether" + f[2]
		}
	case "vrf":
		// vrf forwarding X (IOS-XE) | vrf member X (NX-OS) | vrf X (IOS-XR)
		intf.VRF = f[len(f)-1]
	case "ip", "ipv4":
		c.parseAddressLine(intf, f)
	case "switchport":
		parseSwitchport(intf, f[1:])
	}
}

func (c *Config) parseAddressLine(intf *Interface, f []string) {
	if len(f) >= 4 && f[1] == "vrf" && f[2] == "forwarding" {
		intf.VRF = f[3]
		return
	}
	if len(f) < 3 || f[1] != "address" {
		return
	}
	var ip, mask string
	switch {
	case strings.Contains(f[2], "/"):
		var ones int
		ip, ones = util.SplitIPMask(f[2])
		mask = strconv.Itoa(ones)
	case len(f) >= 4:
		ip, mask = f[2], f[3]
	default:
		return
	}
	if !util.IsValidIP(ip) {
		return
	}
	if f[len(f)-1] == "secondary" {
		if cidr, err := util.FormatCIDR(ip, mask); err == nil {
			intf.Secondary = append(intf.Secondary, cidr)
		}
		return
	}
	intf.IP, intf.Mask = ip, mask
}

func parseSwitchport(intf *Interface, f []string) {
	if len(f) < 2 {
		return
	}
	switch {
	case f[0] == "mode":
		intf.Mode = f[1]
	case f[0] == "access" && len(f) >= 3 && f[1] == "vlan":
		intf.AccessVLAN, _ = strconv.Atoi(f[2])
	case f[0] == "trunk" && len(f) >= 4 && f[1] == "allowed" && f[2] == "vlan":
		spec := f[3]
		if spec == "add" && len(f) >= 5 {
			spec = f[4]
		} else if spec == "add" {
			return
		} else {
			intf.VlansAllowed = nil
		}
		vids, err := util.ExpandVLANRange(spec)
		if err != nil {
			return
		}
		intf.VlansAllowed = append(intf.VlansAllowed, vids...)
	}
}

// Raw returns the configuration text.
func (c *Config) Raw() string {
	return c.raw
}

// Hostname returns the configured hostname.
func (c *Config) Hostname() string {
	return c.hostname
}

// FQDN returns hostname.domain, or the hostname when no domain is set.
func (c *Config) FQDN() string {
	if c.domain == "" {
		return c.hostname
	}
	return c.hostname + "." + c.domain
}

// Interface returns the parsed interface, or nil.
func (c *Config) Interface(name string) *Interface {
	return c.interfaces[name]
}

// InterfaceNames returns interface names in configuration order.
func (c *Config) InterfaceNames() []string {
	return append([]string(nil), c.order...)
}

// InterfaceIPAddress returns the primary address of an interface, or "".
func (c *Config) InterfaceIPAddress(name string) string {
	if intf := c.interfaces[name]; intf != nil {
		return intf.IP
	}
	return ""
}

// InterfaceNameByAddress returns the interface whose primary address
// equals address (a mask on address is ignored), or "".
func (c *Config) InterfaceNameByAddress(address string) string {
	ip := util.StripMask(address)
	for _, name := range c.order {
		if c.interfaces[name].IP == ip {
			return name
		}
	}
	return ""
}

// Vlans returns the VLANs defined globally, the SVIs, and the VLANs allowed
// on trunks.
func (c *Config) Vlans() (global, svi, trunk []Vlan) {
	vids := make([]int, 0, len(c.vlans))
	for vid := range c.vlans {
		vids = append(vids, vid)
	}
	sort.Ints(vids)
	for _, vid := range vids {
		name := c.vlans[vid]
		if name == "" {
			name = "unknown"
		}
		global = append(global, Vlan{VID: vid, Name: name})
	}

	for _, name := range c.order {
		intf := c.interfaces[name]
		if strings.HasPrefix(strings.ToLower(name), "vlan") {
			if vid, err := strconv.Atoi(name[4:]); err == nil {
				desc := intf.Description
				if desc == "" {
					desc = "unknown"
				}
				svi = append(svi, Vlan{VID: vid, Name: desc})
			}
		}
		for _, vid := range intf.VlansAllowed {
			trunk = append(trunk, Vlan{VID: vid, Name: "trunked VLAN"})
		}
	}
	return global, svi, trunk
}

func isInterfaceLine(line string) bool {
	return strings.HasPrefix(strings.ToLower(line), "interface ")
}

// GlobalConfig returns every line outside interface blocks.
func (c *Config) GlobalConfig() []string {
	var out []string
	inInterface := false
	for _, line := range c.lines {
		if isInterfaceLine(line) {
			inInterface = true
			continue
		}
		if inInterface && line != "" && (line[0] == ' ' || line[0] == '\t') {
			continue
		}
		inInterface = false
		out = append(out, line)
	}
	return out
}

// Section returns the lines of a section. "interfaces" returns every
// interface block; any other name returns the top-level lines starting
// with it.
func (c *Config) Section(name string) []string {
	var out []string
	if name == "interfaces" {
		found := false
		for _, line := range c.lines {
			if isInterfaceLine(line) {
				found = true
				out = append(out, line)
				continue
			}
			if found && line != "" && (line[0] == ' ' || line[0] == '\t') {
				out = append(out, line)
			} else {
				found = false
			}
		}
		return out
	}
	for _, line := range c.lines {
		if strings.HasPrefix(strings.ToLower(line), strings.ToLower(name)) {
			out = append(out, line)
		}
	}
	return out
}
