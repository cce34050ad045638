package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/newtron-network/sotboard/pkg/util"
)

// System group OIDs.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
)

// enterprise numbers under .1.3.6.1.4.1 mapped to manufacturers.
var enterprises = map[string]string{
	"9":     "cisco",
	"2636":  "juniper",
	"30065": "arista",
	"6527":  "nokia",
	"2011":  "huawei",
}

// SNMPv3 holds user security parameters.
type SNMPv3 struct {
	User     string `yaml:"user"`
	AuthPass string `yaml:"auth_pass"`
	PrivPass string `yaml:"priv_pass"`
}

// SNMPCollector reads the system group of a device.
type SNMPCollector struct {
	Version   string // "v2c" (default) or "v3"
	Community string
	V3        SNMPv3
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

func (c *SNMPCollector) openSession(ctx context.Context, target string) (*gosnmp.GoSNMP, error) {
	port := c.Port
	if port == 0 {
		port = 161
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	cfg := &gosnmp.GoSNMP{
		Target:  target,
		Port:    port,
		Timeout: timeout,
		Retries: c.Retries,
		Context: ctx,
	}

	switch strings.ToLower(c.Version) {
	case "v3", "3":
		cfg.Version = gosnmp.Version3
		cfg.SecurityModel = gosnmp.UserSecurityModel
		cfg.MsgFlags = gosnmp.NoAuthNoPriv
		u := &gosnmp.UsmSecurityParameters{UserName: c.V3.User}
		if c.V3.AuthPass != "" {
			u.AuthenticationPassphrase = c.V3.AuthPass
			u.AuthenticationProtocol = gosnmp.SHA
			cfg.MsgFlags = gosnmp.AuthNoPriv
		}
		if c.V3.PrivPass != "" {
			u.PrivacyPassphrase = c.V3.PrivPass
			u.PrivacyProtocol = gosnmp.AES
			cfg.MsgFlags = gosnmp.AuthPriv
		}
		cfg.SecurityParameters = u
	default:
		cfg.Version = gosnmp.Version2c
		cfg.Community = c.Community
		if cfg.Community == "" {
			cfg.Community = "public"
		}
	}

	if err := cfg.Connect(); err != nil {
		return nil, fmt.Errorf("SNMP connect %s: %w", target, err)
	}
	return cfg, nil
}

// Collect reads sysName, sysDescr and sysObjectID and derives facts.
func (c *SNMPCollector) Collect(ctx context.Context, target string) (Facts, error) {
	sn, err := c.openSession(ctx, target)
	if err != nil {
		return Facts{}, err
	}
	defer sn.Conn.Close()

	p, err := sn.Get([]string{oidSysName, oidSysDescr, oidSysObjectID})
	if err != nil {
		return Facts{}, fmt.Errorf("SNMP get %s: %w", target, err)
	}
	values := make(map[string]string, len(p.Variables))
	for _, v := range p.Variables {
		values[v.Name] = pduString(v)
	}
	return SystemFacts(values[oidSysName], values[oidSysDescr], values[oidSysObjectID]), nil
}

func pduString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// SystemFacts derives facts from the SNMP system group. sysName may carry
// the domain; the hostname is its first label.
func SystemFacts(sysName, sysDescr, sysObjectID string) Facts {
	var f Facts
	name := strings.ToLower(strings.TrimSpace(sysName))
	if name != "" {
		f.Hostname, _, _ = strings.Cut(name, ".")
		if strings.Contains(name, ".") {
			f.FQDN = name
		}
	}

	oid := strings.TrimPrefix(sysObjectID, ".")
	if rest, ok := strings.CutPrefix(oid, "1.3.6.1.4.1."); ok {
		num, _, _ := strings.Cut(rest, ".")
		f.Manufacturer = enterprises[num]
	}

	if sysDescr != "" {
		parsed := ParseShowVersion(sysDescr, "")
		f.OSVersion = parsed.OSVersion
		if f.Manufacturer == "" && strings.Contains(strings.ToLower(sysDescr), "cisco") {
			f.Manufacturer = "cisco"
		}
	}
	f.normalize("")
	return f
}

// WithSNMP returns a Provider that fills facts missing from the wrapped
// provider's result with SNMP facts. SNMP failures are logged, not returned.
func WithSNMP(p Provider, c *SNMPCollector) Provider {
	return ProviderFunc(func(ctx context.Context, req Request) (*Result, error) {
		res, err := p.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		f := res.Facts
		if f.Hostname != "" && f.Model != "" && f.OSVersion != "" && f.Manufacturer != "" {
			return res, nil
		}
		extra, err := c.Collect(ctx, req.IP)
		if err != nil {
			util.WithDevice(req.IP).Warnf("SNMP facts: %v", err)
			return res, nil
		}
		res.Facts.Fill(extra)
		return res, nil
	})
}
