package device

import (
	"regexp"
	"strings"
)

// Facts describes a device as reported by the device itself.
type Facts struct {
	Hostname      string `json:"hostname"`
	FQDN          string `json:"fqdn"`
	Manufacturer  string `json:"manufacturer"`
	Model         string `json:"model"`
	OSVersion     string `json:"os_version"`
	SoftwareImage string `json:"software_image"`
	SerialNumber  string `json:"serial_number"`
}

// Map returns the facts as a property map, omitting empty values.
func (f Facts) Map() map[string]interface{} {
	m := map[string]interface{}{}
	for k, v := range map[string]string{
		"hostname":       f.Hostname,
		"fqdn":           f.FQDN,
		"manufacturer":   f.Manufacturer,
		"model":          f.Model,
		"os_version":     f.OSVersion,
		"software_image": f.SoftwareImage,
		"serial_number":  f.SerialNumber,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// Fill copies every non-empty field of other into empty fields of f.
func (f *Facts) Fill(other Facts) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&f.Hostname, other.Hostname)
	fill(&f.FQDN, other.FQDN)
	fill(&f.Manufacturer, other.Manufacturer)
	fill(&f.Model, other.Model)
	fill(&f.OSVersion, other.OSVersion)
	fill(&f.SoftwareImage, other.SoftwareImage)
	fill(&f.SerialNumber, other.SerialNumber)
}

// normalize lowercases names and derives the FQDN.
func (f *Facts) normalize(domain string) {
	f.Hostname = strings.ToLower(f.Hostname)
	if f.FQDN == "" && f.Hostname != "" {
		f.FQDN = f.Hostname
		if domain != "" {
			f.FQDN += "." + domain
		}
	}
	f.FQDN = strings.ToLower(f.FQDN)
}

var (
	reIOSVersion   = regexp.MustCompile(`(?m)^Cisco IOS.*Version ([^ ,]+)`)
	reNXOSVersion  = regexp.MustCompile(`(?m)^\s*(?:NXOS|system):\s+version\s+(\S+)`)
	reXRVersion    = regexp.MustCompile(`(?m)^Cisco IOS XR Software, Version (\S+)`)
	reImage        = regexp.MustCompile(`(?m)^System image file is "([^"]+)"`)
	reNXOSImage    = regexp.MustCompile(`(?m)^\s*(?:NXOS|system) image file is:\s+(\S+)`)
	reSerial       = regexp.MustCompile(`(?m)^(?:Processor [Bb]oard ID|System [Ss]erial [Nn]umber\s*:)\s*(\S+)`)
	reIOSModel     = regexp.MustCompile(`(?m)^[Cc]isco (\S+) .*(?:processor|bytes of memory)`)
	reModelNumber  = regexp.MustCompile(`(?m)^Model [Nn]umber\s*:\s*(\S+)`)
	reNXOSChassis  = regexp.MustCompile(`(?m)^\s*cisco (?:Nexus\d*\s+)?(\S+).*[Cc]hassis`)
	reUptime       = regexp.MustCompile(`(?m)^(\S+) uptime is`)
	reDeviceName   = regexp.MustCompile(`(?m)^\s*Device name:\s*(\S+)`)
	reHostDomain   = regexp.MustCompile(`(?m)^Default domain is (\S+)`)
)

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}

// ParseShowVersion extracts facts from "show version" output and the
// default domain from "show hosts" output. Missing fields stay empty.
func ParseShowVersion(version, hosts string) Facts {
	f := Facts{Manufacturer: "cisco"}

	f.OSVersion = firstGroup(reXRVersion, version)
	if f.OSVersion == "" {
		f.OSVersion = firstGroup(reIOSVersion, version)
	}
	if f.OSVersion == "" {
		f.OSVersion = firstGroup(reNXOSVersion, version)
	}

	f.SoftwareImage = firstGroup(reImage, version)
	if f.SoftwareImage == "" {
		f.SoftwareImage = firstGroup(reNXOSImage, version)
	}
	f.SerialNumber = firstGroup(reSerial, version)

	f.Model = firstGroup(reModelNumber, version)
	if f.Model == "" {
		f.Model = firstGroup(reIOSModel, version)
	}
	if f.Model == "" {
		if chassis := firstGroup(reNXOSChassis, version); chassis != "" {
			f.Model = "nexus-" + chassis
		}
	}

	f.Hostname = firstGroup(reDeviceName, version)
	if f.Hostname == "" {
		f.Hostname = firstGroup(reUptime, version)
	}

	f.normalize(firstGroup(reHostDomain, hosts))
	return f
}
