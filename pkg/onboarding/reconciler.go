package onboarding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/sotboard/pkg/platform"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Interface record keys the reconciler reads.
const (
	KeyIPAddresses = "ip_addresses"
	KeyLag         = "lag"
	KeyParent      = "parent"
)

// Options control reconciliation. DefaultOptions matches the usual
// onboarding run.
type Options struct {
	AddPrefix            bool
	AssignIP             bool
	Bulk                 bool
	UseDeviceIfExists    bool
	UseInterfaceIfExists bool
	UseIPIfExists        bool
	PrimaryInterface     string
	// ReplaceTags writes the evaluated tags in place of the current ones
	// instead of adding them.
	ReplaceTags bool
}

// DefaultOptions returns options with every feature enabled. Tags are
// added to the existing ones.
func DefaultOptions() Options {
	return Options{
		AddPrefix:            true,
		AssignIP:             true,
		Bulk:                 true,
		UseDeviceIfExists:    true,
		UseInterfaceIfExists: true,
		UseIPIfExists:        true,
	}
}

// WithAddPrefix returns a copy of o with AddPrefix set.
func (o Options) WithAddPrefix(v bool) Options { o.AddPrefix = v; return o }

// WithAssignIP returns a copy of o with AssignIP set.
func (o Options) WithAssignIP(v bool) Options { o.AssignIP = v; return o }

// WithBulk returns a copy of o with Bulk set.
func (o Options) WithBulk(v bool) Options { o.Bulk = v; return o }

// WithUseDeviceIfExists returns a copy of o with UseDeviceIfExists set.
func (o Options) WithUseDeviceIfExists(v bool) Options { o.UseDeviceIfExists = v; return o }

// WithUseInterfaceIfExists returns a copy of o with UseInterfaceIfExists set.
func (o Options) WithUseInterfaceIfExists(v bool) Options { o.UseInterfaceIfExists = v; return o }

// WithUseIPIfExists returns a copy of o with UseIPIfExists set.
func (o Options) WithUseIPIfExists(v bool) Options { o.UseIPIfExists = v; return o }

// WithPrimaryInterface returns a copy of o with PrimaryInterface set.
func (o Options) WithPrimaryInterface(name string) Options { o.PrimaryInterface = name; return o }

// WithReplaceTags returns a copy of o with ReplaceTags set.
func (o Options) WithReplaceTags(v bool) Options { o.ReplaceTags = v; return o }

// Reconciler writes devices and their interfaces, addresses and VLANs to a
// source of truth. Every step is create-or-get, so rerunning after a
// partial failure completes the device.
type Reconciler struct {
	client sot.Client
	opts   Options
}

// NewReconciler returns a reconciler with fixed options.
func NewReconciler(client sot.Client, opts Options) *Reconciler {
	return &Reconciler{client: client, opts: opts}
}

// Options returns the reconciler's options.
func (r *Reconciler) Options() Options {
	return r.opts
}

// With returns a reconciler on the same client with other options.
func (r *Reconciler) With(opts Options) *Reconciler {
	return &Reconciler{client: r.client, opts: opts}
}

// ============================================================================
// Devices
// ============================================================================

// keys of a device record that are not device fields
var nonDeviceKeys = []string{"interfaces", KeyPrimaryInterface, "host", "ip", "profile", "ignore"}

// AddDevice creates the device (or reuses it), then its VLANs and
// interfaces. The error is non-nil only when no device is available;
// failures of VLANs, interfaces or addresses are recorded in the result.
func (r *Reconciler) AddDevice(ctx context.Context, props sot.Properties, interfaces, vlans []sot.Properties) (*sot.Device, *Result, error) {
	name := props.String(sot.KeyName)
	res := NewResult(name)
	log := util.WithStep(name, string(StepDevice))

	body := props.Clone()
	for _, k := range nonDeviceKeys {
		delete(body, k)
	}
	if tags, ok := body[sot.KeyTags]; ok {
		body[sot.KeyTags] = r.knownTags(ctx, name, tags)
	}

	log.Info("adding device to SoT")
	dev, err := r.client.CreateDevice(ctx, body)
	switch {
	case err == nil:
		res.Record(StepDevice, name, nil)
	case sot.IsKind(err, sot.KindAlreadyExists) && r.opts.UseDeviceIfExists:
		log.Debug("a device with this name already exists, reusing it")
		dev, err = r.client.GetDevice(ctx, name)
		if err != nil {
			return nil, res, res.Abort(StepDevice, name, err)
		}
		if dev == nil {
			return nil, res, res.Abort(StepDevice, name, &UnknownDeviceError{Name: name})
		}
		res.Note(StepDevice, name, "reused existing device")
	default:
		log.Errorf("could not add device: %v", err)
		return nil, res, res.Abort(StepDevice, name, &DeviceConflictError{Name: name, Err: err})
	}
	res.DeviceID = dev.ID

	if len(vlans) > 0 {
		r.addVlans(ctx, dev, vlans, res)
	}

	_, ifRes := r.AddInterfaces(ctx, dev, interfaces)
	res.Merge(ifRes)
	return dev, res, nil
}

// knownTags drops tag names the source of truth does not know.
func (r *Reconciler) knownTags(ctx context.Context, object string, v interface{}) []map[string]interface{} {
	names := sot.TagNames(v)
	out := make([]map[string]interface{}, 0, len(names))
	for _, n := range names {
		tag, err := r.client.GetTag(ctx, n)
		if err != nil || tag == nil {
			util.WithDevice(object).Warnf("unknown tag '%s' dropped", n)
			continue
		}
		out = append(out, map[string]interface{}{sot.KeyName: tag.Name})
	}
	return out
}

// addVlans creates the VLANs not yet present at their location.
func (r *Reconciler) addVlans(ctx context.Context, dev *sot.Device, vlans []sot.Properties, res *Result) {
	log := util.WithStep(dev.Name, string(StepVlans))

	var missing []sot.Properties
	for _, v := range vlans {
		vid, ok := intValue(v[sot.KeyVID])
		location := sot.RefName(v[sot.KeyLocation])
		object := fmt.Sprintf("%v@%s", v[sot.KeyVID], location)
		if !ok {
			res.Record(StepVlans, object, fmt.Errorf("invalid vid %v: %w", v[sot.KeyVID], util.ErrInvalidConfig))
			continue
		}
		existing, err := r.client.GetVlan(ctx, vid, location)
		if err != nil {
			log.Errorf("lookup of vlan %s failed: %v", object, err)
			res.Record(StepVlans, object, err)
			continue
		}
		if existing != nil {
			log.Debugf("vlan %s already exists", object)
			continue
		}
		missing = append(missing, v)
	}
	if len(missing) == 0 {
		return
	}
	created, err := r.client.CreateVlans(ctx, missing)
	if err != nil {
		log.Errorf("could not add vlans: %v", err)
		res.Record(StepVlans, dev.Name, err)
		return
	}
	res.Note(StepVlans, dev.Name, fmt.Sprintf("added %d vlans", len(created)))
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// SetPrimaryAddress makes address the primary IPv4 address of dev. The
// address is looked up among those assigned to the device, whatever their
// namespace, before the global namespace is tried. It returns false without
// an error when the address is unknown or not assigned to the device.
func (r *Reconciler) SetPrimaryAddress(ctx context.Context, dev *sot.Device, address string) (bool, error) {
	log := util.WithStep(dev.Name, string(StepPrimary))
	ip, err := r.assignedAddress(ctx, dev, address)
	if err != nil {
		return false, err
	}
	if ip == nil {
		if ip, err = r.client.GetIPAddress(ctx, address, ""); err != nil {
			return false, err
		}
	}
	if ip == nil {
		log.Errorf("no valid ip address %s found", address)
		return false, nil
	}
	if err := r.setPrimary(ctx, dev, ip); err != nil {
		if sot.IsKind(err, sot.KindNotAssigned) {
			log.Errorf("the address %s is not assigned to %s", ip.Address, dev.Name)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// assignedAddress finds address on the primary interface of dev, then on
// its other interfaces.
func (r *Reconciler) assignedAddress(ctx context.Context, dev *sot.Device, address string) (*sot.IPAddress, error) {
	want := util.StripMask(address)
	match := func(name string) (*sot.IPAddress, error) {
		ips, err := r.client.FilterIPAddresses(ctx, dev.ID, name)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if util.StripMask(ip.Address) == want {
				return ip, nil
			}
		}
		return nil, nil
	}

	primary := r.opts.PrimaryInterface
	if primary != "" {
		if ip, err := match(primary); ip != nil || err != nil {
			return ip, err
		}
	}
	current, err := r.client.FilterInterfaces(ctx, dev.ID)
	if err != nil {
		return nil, err
	}
	for _, intf := range current {
		if intf.Name == primary {
			continue
		}
		if ip, err := match(intf.Name); ip != nil || err != nil {
			return ip, err
		}
	}
	return nil, nil
}

func (r *Reconciler) setPrimary(ctx context.Context, dev *sot.Device, ip *sot.IPAddress) error {
	if err := r.client.UpdateDevice(ctx, dev.ID, sot.Properties{sot.KeyPrimaryIP4: ip.ID}); err != nil {
		return err
	}
	dev.PrimaryIP4ID, dev.PrimaryIP4 = ip.ID, ip.Address
	return nil
}

// ============================================================================
// Interfaces
// ============================================================================

// AddInterfaces creates the interfaces of dev, LAGs first, then their
// addresses and assignments. It returns true when every step succeeded;
// a failed item does not stop the others.
func (r *Reconciler) AddInterfaces(ctx context.Context, dev *sot.Device, interfaces []sot.Properties) (bool, *Result) {
	if dev == nil {
		res := NewResult("")
		res.Record(StepInterfaces, "", &UnknownDeviceError{})
		return false, res
	}
	res := NewResult(dev.Name)
	res.DeviceID = dev.ID
	if len(interfaces) == 0 {
		return true, res
	}

	var virtual, physical []sot.Properties
	for _, intf := range interfaces {
		if intf == nil {
			continue
		}
		if platform.IsLagName(intf.String(sot.KeyName)) {
			virtual = append(virtual, intf)
		} else {
			physical = append(physical, intf)
		}
	}
	util.WithStep(dev.Name, string(StepInterfaces)).
		Debugf("adding %d virtual and %d physical interfaces", len(virtual), len(physical))

	vOK := r.createInterfaces(ctx, dev, virtual, res)
	pOK := r.createInterfaces(ctx, dev, physical, res)

	ok := vOK && pOK
	for _, intf := range append(virtual, physical...) {
		if !r.addAddresses(ctx, dev, nil, intf, res) {
			ok = false
		}
	}
	return ok, res
}

// interfaceBody is the record written for an interface: addresses are
// written separately and LAG references point at the device.
func interfaceBody(dev *sot.Device, intf sot.Properties) sot.Properties {
	body := intf.Clone()
	delete(body, KeyIPAddresses)
	if _, ok := body[sot.KeyDevice]; !ok {
		body[sot.KeyDevice] = map[string]interface{}{"id": dev.ID}
	}
	if lag, ok := body[KeyLag].(map[string]interface{}); ok {
		ref := util.CloneMap(lag)
		ref[sot.KeyDevice] = dev.ID
		body[KeyLag] = ref
	}
	return body
}

func (r *Reconciler) createInterfaces(ctx context.Context, dev *sot.Device, items []sot.Properties, res *Result) bool {
	if len(items) == 0 {
		return true
	}
	log := util.WithStep(dev.Name, string(StepInterfaces))
	bodies := make([]sot.Properties, 0, len(items))
	for _, intf := range items {
		bodies = append(bodies, interfaceBody(dev, intf))
	}

	if r.opts.Bulk {
		_, err := r.client.CreateInterfaces(ctx, dev.ID, bodies)
		if err == nil {
			res.Note(StepInterfaces, dev.Name, fmt.Sprintf("added %d interfaces", len(bodies)))
			return true
		}
		if !sot.IsKind(err, sot.KindUniqueViolation) || !r.opts.UseInterfaceIfExists {
			log.Errorf("could not add interfaces: %v", err)
			res.Record(StepInterfaces, dev.Name, err)
			return false
		}
		log.Debug("one or more interfaces already exist, adding one by one")
	}

	ok := true
	for _, body := range bodies {
		name := body.String(sot.KeyName)
		_, err := r.client.CreateInterfaces(ctx, dev.ID, []sot.Properties{body})
		switch {
		case err == nil:
			res.Record(StepInterfaces, name, nil)
		case sot.IsKind(err, sot.KindUniqueViolation) && r.opts.UseInterfaceIfExists:
			log.Debugf("interface %s already exists", name)
		default:
			log.Errorf("could not add interface %s: %v", name, err)
			res.Record(StepInterfaces, name, err)
			ok = false
		}
	}
	return ok
}

// UpdateInterfaces updates each interface in place, removes all of its
// address assignments and assigns the desired addresses again, so the
// interface ends with exactly the listed addresses.
func (r *Reconciler) UpdateInterfaces(ctx context.Context, dev *sot.Device, interfaces []sot.Properties) (bool, *Result) {
	if dev == nil || len(interfaces) == 0 {
		res := NewResult("")
		if dev != nil {
			res = NewResult(dev.Name)
		}
		util.Debug("either no device or no interfaces to update")
		return false, res
	}
	res := NewResult(dev.Name)
	res.DeviceID = dev.ID
	log := util.WithStep(dev.Name, string(StepInterfaces))

	ok := true
	for _, intf := range interfaces {
		name := intf.String(sot.KeyName)
		existing, err := r.client.GetInterface(ctx, dev.ID, name)
		if err == nil && existing == nil {
			err = fmt.Errorf("interface %s: %w", name, util.ErrNotFound)
		}
		if err != nil {
			log.Errorf("could not get interface %s: %v", name, err)
			res.Record(StepInterfaces, name, err)
			ok = false
			continue
		}

		body := interfaceBody(dev, intf)
		delete(body, sot.KeyName)
		if err := r.client.UpdateInterface(ctx, existing.ID, body); err != nil {
			log.Errorf("could not update interface %s: %v", name, err)
			res.Record(StepInterfaces, name, err)
			ok = false
			continue
		}
		res.Record(StepInterfaces, name, nil)

		if !r.removeAllAssignments(ctx, dev, existing, res) {
			ok = false
		}
		if !r.addAddresses(ctx, dev, existing, intf, res) {
			ok = false
		}
	}
	return ok, res
}

func (r *Reconciler) removeAllAssignments(ctx context.Context, dev *sot.Device, intf *sot.Interface, res *Result) bool {
	log := util.WithStep(dev.Name, string(StepAssignment))
	log.Debugf("removing all assignments on %s", intf.Display)

	addrs, err := r.client.FilterIPAddresses(ctx, dev.ID, intf.Display)
	if err != nil {
		res.Record(StepAssignment, intf.Display, err)
		return false
	}
	ok := true
	for _, ip := range addrs {
		assignments, err := r.client.FilterAssignments(ctx, intf.ID, ip.ID)
		if err != nil {
			res.Record(StepAssignment, ip.Address, err)
			ok = false
			continue
		}
		for _, a := range assignments {
			if err := r.client.DeleteAssignment(ctx, a.ID); err != nil {
				log.Errorf("could not remove assignment %s: %v", a.ID, err)
				res.Record(StepAssignment, ip.Address, err)
				ok = false
			}
		}
	}
	return ok
}

// ============================================================================
// Addresses
// ============================================================================

// addressRecords reads the ip_addresses of an interface record.
func addressRecords(v interface{}) []sot.Properties {
	switch val := v.(type) {
	case []sot.Properties:
		return val
	case []map[string]interface{}:
		out := make([]sot.Properties, 0, len(val))
		for _, m := range val {
			out = append(out, sot.Properties(m))
		}
		return out
	case []interface{}:
		out := make([]sot.Properties, 0, len(val))
		for _, item := range val {
			switch m := item.(type) {
			case map[string]interface{}:
				out = append(out, sot.Properties(m))
			case sot.Properties:
				out = append(out, m)
			case string:
				out = append(out, sot.Properties{sot.KeyAddress: m})
			}
		}
		return out
	}
	return nil
}

// parentOf returns the parent prefix and namespace of an address record.
func parentOf(addr sot.Properties) (string, string) {
	parent, _ := addr[KeyParent].(map[string]interface{})
	pfx := sot.RefName(parent[sot.KeyPrefix])
	ns := sot.RefName(parent[sot.KeyNamespace])
	if ns == "" {
		ns = sot.RefName(addr[sot.KeyNamespace])
	}
	if ns == "" {
		ns = sot.DefaultNamespace
	}
	return pfx, ns
}

// addAddresses creates the addresses of one interface and assigns them.
// existing is the interface when already known; otherwise it is looked up.
func (r *Reconciler) addAddresses(ctx context.Context, dev *sot.Device, existing *sot.Interface, intf sot.Properties, res *Result) bool {
	records := addressRecords(intf[KeyIPAddresses])
	if len(records) == 0 {
		return true
	}
	name := intf.String(sot.KeyName)
	log := util.WithStep(dev.Name, string(StepAddress))
	log.Debugf("found %d addresses on %s", len(records), name)

	ok := true
	description := fmt.Sprintf("%s %s", dev.Name, name)
	for i := range records {
		records[i] = records[i].Clone()
		records[i]["description"] = description
	}

	if r.opts.AddPrefix {
		for _, rec := range records {
			if !r.addPrefix(ctx, dev, rec, res) {
				ok = false
			}
		}
	}

	var created []*sot.IPAddress
	for _, rec := range records {
		ip, err := r.addAddress(ctx, dev, rec)
		if err != nil {
			res.Record(StepAddress, rec.String(sot.KeyAddress), err)
			ok = false
			continue
		}
		res.Record(StepAddress, ip.Address, nil)
		created = append(created, ip)
	}
	if len(created) == 0 || !r.opts.AssignIP {
		return ok
	}

	if existing == nil {
		var err error
		existing, err = r.client.GetInterface(ctx, dev.ID, name)
		if err == nil && existing == nil {
			err = fmt.Errorf("interface %s/%s: %w", dev.Name, name, util.ErrNotFound)
		}
		if err != nil {
			log.Errorf("could not get interface %s: %v", name, err)
			res.Record(StepAssignment, name, err)
			return false
		}
	}
	for _, ip := range created {
		if !r.assign(ctx, dev, existing, ip, res) {
			ok = false
		}
	}
	return ok
}

// addPrefix creates the parent prefix of an address unless it exists.
// Failures are recorded but do not prevent the address from being created.
func (r *Reconciler) addPrefix(ctx context.Context, dev *sot.Device, addr sot.Properties, res *Result) bool {
	pfx, ns := parentOf(addr)
	if pfx == "" {
		res.Record(StepPrefix, addr.String(sot.KeyAddress),
			&PrefixCreationError{Namespace: ns, Err: fmt.Errorf("no parent prefix: %w", util.ErrInvalidConfig)})
		return false
	}
	if found, err := r.client.GetPrefix(ctx, pfx, ns); err == nil && found != nil {
		return true
	}
	_, err := r.client.CreatePrefix(ctx, sot.Properties{
		sot.KeyPrefix:    pfx,
		sot.KeyNamespace: ns,
		"status":         map[string]interface{}{"name": "Active"},
	})
	if err != nil && !sot.IsConflict(err) {
		util.WithStep(dev.Name, string(StepPrefix)).Errorf("could not add prefix %s: %v", pfx, err)
		res.Record(StepPrefix, pfx, &PrefixCreationError{Prefix: pfx, Namespace: ns, Err: err})
		return false
	}
	res.Record(StepPrefix, pfx, nil)
	return true
}

// addAddress creates one address, or fetches it when it already exists and
// may be reused.
func (r *Reconciler) addAddress(ctx context.Context, dev *sot.Device, rec sot.Properties) (*sot.IPAddress, error) {
	address := rec.String(sot.KeyAddress)
	_, ns := parentOf(rec)

	body := sot.Properties{
		sot.KeyAddress:   address,
		sot.KeyNamespace: ns,
		"status":         map[string]interface{}{"name": "Active"},
	}
	if status, ok := rec["status"]; ok && status != nil {
		body["status"] = status
	}
	if d := rec.String("description"); d != "" {
		body["description"] = d
	}
	if role, ok := rec["role"]; ok && role != nil && role != "" {
		body["role"] = role
	}
	if tags := sot.TagNames(rec[sot.KeyTags]); len(tags) > 0 {
		body[sot.KeyTags] = r.knownTags(ctx, dev.Name, tags)
	}

	ip, err := r.client.CreateIPAddress(ctx, body)
	if err == nil {
		return ip, nil
	}
	log := util.WithStep(dev.Name, string(StepAddress))
	if !sot.IsConflict(err) {
		log.Errorf("could not add address %s: %v", address, err)
		return nil, err
	}
	if !r.opts.UseIPIfExists {
		log.Errorf("address %s already exists in namespace %s", address, ns)
		return nil, &IPAddressConflictError{Address: address, Namespace: ns, Err: err}
	}
	log.Debugf("address %s already exists in namespace %s, reusing it", address, ns)
	ip, err = r.client.GetIPAddress(ctx, util.StripMask(address), ns)
	if err != nil {
		return nil, err
	}
	if ip == nil {
		return nil, &IPAddressConflictError{Address: address, Namespace: ns, Err: util.ErrNotFound}
	}
	return ip, nil
}

// assign binds ip to intf. An existing assignment counts as success. When
// intf is the primary interface the address also becomes the device's
// primary address.
func (r *Reconciler) assign(ctx context.Context, dev *sot.Device, intf *sot.Interface, ip *sot.IPAddress, res *Result) bool {
	log := util.WithStep(dev.Name, string(StepAssignment))
	object := intf.Display + " " + ip.Address

	_, err := r.client.CreateAssignment(ctx, intf.ID, ip.ID)
	switch {
	case err == nil:
		res.Record(StepAssignment, object, nil)
	case sot.IsKind(err, sot.KindUniqueViolation, sot.KindAlreadyExists):
		log.Debugf("%s is already assigned", object)
	default:
		log.Errorf("could not assign %s: %v", object, err)
		res.Record(StepAssignment, object, err)
		return false
	}

	if r.opts.PrimaryInterface != "" && strings.EqualFold(intf.Display, r.opts.PrimaryInterface) {
		log.Debugf("setting primary address %s", ip.Address)
		if err := r.setPrimary(ctx, dev, ip); err != nil {
			log.Errorf("could not set primary address: %v", err)
			res.Record(StepPrimary, ip.Address, err)
		} else {
			res.Record(StepPrimary, ip.Address, nil)
		}
	}
	return true
}

// ============================================================================
// Updating existing devices
// ============================================================================

// UpdateDevice refreshes a device already in the source of truth.
//
// With updateInterfaces every desired interface that exists is updated in
// place and the others are added. Otherwise, with primaryOnly, existing
// desired interfaces are updated and their addresses reassigned, and
// missing ones are added. In both cases the primary address is set when it
// differs from the device's current one.
func (r *Reconciler) UpdateDevice(ctx context.Context, dev *sot.Device, primaryAddress string, interfaces []sot.Properties, updateInterfaces, primaryOnly bool) *Result {
	res := NewResult(dev.Name)
	res.DeviceID = dev.ID
	log := util.WithDevice(dev.Name)
	sub := r.With(r.opts.WithAddPrefix(false).WithAssignIP(true))

	if updateInterfaces || primaryOnly {
		current, err := r.client.FilterInterfaces(ctx, dev.ID)
		if err != nil {
			res.Record(StepInterfaces, dev.Name, err)
			current = nil
		}
		byDisplay := make(map[string]*sot.Interface, len(current))
		for _, intf := range current {
			byDisplay[intf.Display] = intf
		}

		var matched, missing []sot.Properties
		for _, intf := range interfaces {
			if _, ok := byDisplay[intf.String(sot.KeyName)]; ok {
				matched = append(matched, intf)
			} else {
				log.Debugf("interface %s not found in SoT", intf.String(sot.KeyName))
				missing = append(missing, intf)
			}
		}

		if updateInterfaces {
			for _, intf := range matched {
				name := intf.String(sot.KeyName)
				body := interfaceBody(dev, intf)
				delete(body, sot.KeyName)
				err := r.client.UpdateInterface(ctx, byDisplay[name].ID, body)
				if err != nil {
					log.Errorf("could not update interface %s: %v", name, err)
				}
				res.Record(StepInterfaces, name, err)
			}
		} else if len(matched) > 0 {
			_, upd := sub.UpdateInterfaces(ctx, dev, matched)
			res.Merge(upd)
		}
		if len(missing) > 0 {
			_, add := sub.AddInterfaces(ctx, dev, missing)
			res.Merge(add)
			log.Debugf("added %d interfaces", len(missing))
		}
	}

	current := "unknown or none"
	if dev.PrimaryIP4 != "" {
		current = util.StripMask(dev.PrimaryIP4)
	}
	if primaryAddress != "" && current != util.StripMask(primaryAddress) {
		log.Debugf("updating primary address %s -> %s", current, primaryAddress)
		ok, err := r.SetPrimaryAddress(ctx, dev, primaryAddress)
		switch {
		case err != nil:
			res.Record(StepPrimary, primaryAddress, err)
		case !ok:
			res.Record(StepPrimary, primaryAddress, fmt.Errorf("primary address %s not set: %w", primaryAddress, util.ErrNotFound))
		default:
			res.Record(StepPrimary, primaryAddress, nil)
		}
	}
	return res
}
