package onboarding

import (
	"context"
	"fmt"
	"net"

	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/defaults"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/platform"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Inventory row keys the session reads.
const (
	KeyHost   = "host"
	KeyIP     = "ip"
	KeyIgnore = "ignore"
)

// Recorder stores the result of every onboarded device.
type Recorder interface {
	RecordResult(ctx context.Context, res *Result) error
}

// Mode selects what a run does with devices.
type Mode struct {
	// Update refreshes devices that already exist instead of skipping them.
	Update bool
	// Interfaces updates every interface of an existing device.
	Interfaces bool
	// PrimaryOnly refreshes only the primary interface of an existing device.
	// It is what an update does when Interfaces is unset.
	PrimaryOnly bool
	// Import reads exported configurations instead of logging in.
	Import bool
}

// Session onboards devices one after the other. Its collaborators are set
// up once and shared by every device of the run.
type Session struct {
	Client   sot.Client
	Registry *platform.Registry
	Defaults *defaults.Merger
	Options  Options

	// Candidates are the interfaces tried in order for the primary address.
	Candidates []string
	TagRules   []TagRule

	Profile device.Profile
	Port    int

	// Importer reads exported configurations in import mode.
	Importer device.Provider
	// ExportDir, when set, receives the fetched configuration and facts.
	ExportDir string

	Recorder Recorder

	// Resolve maps a hostname to an address; net.DefaultResolver when nil.
	Resolve func(ctx context.Context, host string) (string, error)
}

// prepared is everything known about a device before writing it.
type prepared struct {
	host     string
	ip       string
	defaults defaults.DeviceDefaults
	plugin   *platform.Plugin
	existing *sot.Device
	fetched  *device.Result
	parser   configparser.Parser
}

func (s *Session) resolve(ctx context.Context, host string) (string, error) {
	if util.IsValidIP(host) {
		return host, nil
	}
	if s.Resolve != nil {
		return s.Resolve(ctx, host)
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%s has no address: %w", host, util.ErrNotFound)
	}
	return addrs[0], nil
}

func rowHost(row map[string]interface{}) string {
	for _, k := range []string{KeyHost, KeyIP, sot.KeyName} {
		if h := util.StringValue(row[k]); h != "" {
			return h
		}
	}
	return ""
}

// prepare resolves, merges defaults, looks the device up and fetches and
// parses its configuration. Any error aborts the device.
func (s *Session) prepare(ctx context.Context, row map[string]interface{}, mode Mode, res *Result) (*prepared, error) {
	p := &prepared{host: rowHost(row)}
	if p.host == "" {
		return nil, res.Abort(StepResolve, "", fmt.Errorf("row has no host: %w", util.ErrInvalidConfig))
	}
	log := util.WithDevice(p.host)

	ip, err := s.resolve(ctx, p.host)
	if err != nil {
		return nil, res.Abort(StepResolve, p.host, err)
	}
	p.ip = ip

	p.defaults, err = s.Defaults.Merge(ctx, ip, row)
	if err != nil {
		log.Errorf("could not get device defaults: %v", err)
		return nil, res.Abort(StepDefaults, p.host, util.NewConfigError(p.host, "device defaults", err))
	}
	res.Record(StepDefaults, p.host, nil)

	p.plugin, err = s.Registry.Lookup(platform.Parse(p.defaults["platform"]))
	if err != nil {
		log.Errorf("no plugin for device: %v", err)
		return nil, res.Abort(StepPlatform, p.host, err)
	}

	if p.host == ip {
		p.existing, err = s.Client.GetDeviceByIP(ctx, ip)
	} else {
		p.existing, err = s.Client.GetDevice(ctx, p.host)
	}
	if err != nil {
		return nil, res.Abort(StepLookup, p.host, err)
	}

	provider := p.plugin.Provider
	if mode.Import {
		provider = s.Importer
	}
	if provider == nil {
		return nil, res.Abort(StepFetch, p.host, fmt.Errorf("no config provider for %s: %w", p.plugin.Platform, util.ErrInvalidConfig))
	}
	req := device.Request{IP: ip, Defaults: p.defaults, Profile: s.Profile, Port: s.Port}
	if p.host != ip {
		req.Hostname = p.host
	}
	p.fetched, err = provider.Fetch(ctx, req)
	if err != nil {
		log.Errorf("could not get config and facts: %v", err)
		return nil, res.Abort(StepFetch, p.host, err)
	}
	res.Record(StepFetch, p.host, nil)

	if s.ExportDir != "" {
		name := p.fetched.Facts.Hostname
		if name == "" {
			name = p.host
		}
		res.Record(StepExport, name, device.Export(s.ExportDir, name, p.fetched))
	}

	p.parser, err = p.plugin.NewParser(p.fetched.Config)
	if err != nil {
		return nil, res.Abort(StepParse, p.host, err)
	}
	return p, nil
}

// Onboard adds one inventory row to the source of truth, or updates the
// device when it exists and mode.Update is set.
func (s *Session) Onboard(ctx context.Context, row map[string]interface{}, mode Mode) *Result {
	res := NewResult(rowHost(row))
	defer s.record(ctx, res)

	if ignore, _ := row[KeyIgnore].(bool); ignore {
		res.Note(StepLookup, res.Device, "ignored")
		return res
	}

	p, err := s.prepare(ctx, row, mode, res)
	if err != nil {
		return res
	}
	log := util.WithDevice(p.host)

	if p.existing != nil && !mode.Update {
		log.Infof("device already in SoT as %s, skipping", p.existing.Name)
		res.Note(StepLookup, p.existing.Name, "already in SoT")
		return res
	}

	props, err := BuildDeviceProperties(p.plugin, p.defaults, p.fetched.Facts, p.parser)
	if err != nil {
		res.Abort(StepProperties, p.host, err)
		return res
	}
	res.Device = props.String(sot.KeyName)

	primaryAddress := ResolvePrimaryAddress(s.Candidates, p.parser)
	if primaryAddress == "" {
		log.Debugf("no candidate interface has an address, using %s", p.ip)
		primaryAddress = p.ip
	}
	primary := ResolvePrimaryInterface(props, primaryAddress, p.parser)
	primaryName := primary.String(sot.KeyName)

	interfaces, err := p.plugin.InterfaceProperties(p.parser, p.defaults)
	if err != nil {
		res.Abort(StepProperties, p.host, err)
		return res
	}
	interfaces = withPrimaryInterface(interfaces, primary, p.defaults)
	vlans := p.plugin.VlanProperties(p.parser, props)
	res.Record(StepProperties, res.Device, nil)

	rec := NewReconciler(s.Client, s.Options.WithPrimaryInterface(primaryName))
	dev := p.existing
	if dev == nil {
		var addRes *Result
		dev, addRes, err = rec.AddDevice(ctx, props, interfaces, vlans)
		res.Merge(addRes)
		if err != nil {
			return res
		}
	} else {
		// an update without Interfaces still refreshes the primary interface
		desired, primaryOnly := interfaces, mode.PrimaryOnly || !mode.Interfaces
		if primaryOnly {
			desired = selectInterface(interfaces, primaryName)
		}
		res.Merge(rec.UpdateDevice(ctx, dev, primaryAddress, desired, mode.Interfaces, primaryOnly))
	}
	res.DeviceID = dev.ID

	s.applyTagRules(ctx, rec, dev, p.parser, res)
	return res
}

// Tag evaluates the tag rules against a device's configuration and applies
// the resulting tags. The device must exist.
func (s *Session) Tag(ctx context.Context, row map[string]interface{}, mode Mode) *Result {
	res := NewResult(rowHost(row))
	defer s.record(ctx, res)

	p, err := s.prepare(ctx, row, mode, res)
	if err != nil {
		return res
	}
	if p.existing == nil {
		res.Abort(StepLookup, p.host, &UnknownDeviceError{Name: p.host})
		return res
	}
	res.Device, res.DeviceID = p.existing.Name, p.existing.ID
	s.applyTagRules(ctx, NewReconciler(s.Client, s.Options), p.existing, p.parser, res)
	return res
}

func (s *Session) applyTagRules(ctx context.Context, rec *Reconciler, dev *sot.Device, parser configparser.Parser, res *Result) {
	tags := EvaluateTagRules(s.TagRules, parser)
	if len(tags) == 0 {
		return
	}
	_, tagRes := rec.ApplyTags(ctx, dev, tags)
	res.Merge(tagRes)
}

// Run onboards rows one after the other. It stops early only when ctx is
// done.
func (s *Session) Run(ctx context.Context, rows []map[string]interface{}, mode Mode) []*Result {
	results := make([]*Result, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			util.Warnf("onboarding cancelled: %v", err)
			break
		}
		res := s.Onboard(ctx, row, mode)
		if res.OK() {
			util.WithDevice(res.Device).Info("onboarded")
		} else {
			util.WithDevice(res.Device).Warn(res.String())
		}
		results = append(results, res)
	}
	return results
}

func (s *Session) record(ctx context.Context, res *Result) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.RecordResult(ctx, res); err != nil {
		util.WithDevice(res.Device).Errorf("could not write journal: %v", err)
	}
}

// withPrimaryInterface appends the primary interface when the
// configuration has no interface of that name.
func withPrimaryInterface(interfaces []sot.Properties, primary sot.Properties, dd map[string]interface{}) []sot.Properties {
	name := primary.String(sot.KeyName)
	if name == "" {
		return interfaces
	}
	for _, intf := range interfaces {
		if intf.String(sot.KeyName) == name {
			return interfaces
		}
	}

	cidr := primary.String("cidr")
	if cidr == "" {
		cidr = util.HostCIDR(primary.String(sot.KeyAddress))
	}
	namespace := sot.RefName(dd[sot.KeyNamespace])
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}
	rec := sot.Properties{
		sot.KeyName:   name,
		"type":        "virtual",
		"description": primary.String("description"),
	}
	if cidr != "" {
		rec[KeyIPAddresses] = []sot.Properties{platform.AddressRecord(cidr, namespace, "")}
	}
	return append(interfaces, rec)
}

func selectInterface(interfaces []sot.Properties, name string) []sot.Properties {
	for _, intf := range interfaces {
		if intf.String(sot.KeyName) == name {
			return []sot.Properties{intf}
		}
	}
	return nil
}
