// Package memory implements sot.Client in process. It enforces the same
// uniqueness rules as a real inventory and is used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Client is an in-memory source of truth.
type Client struct {
	mu          sync.Mutex
	devices     map[string]*sot.Device
	interfaces  map[string]*sot.Interface
	addresses   map[string]*sot.IPAddress
	prefixes    map[string]*sot.Prefix
	vlans       map[string]*sot.VLAN
	tags        map[string]*sot.Tag
	assignments map[string]*sot.Assignment
	failures    map[string][]error
}

// New creates an empty store. Tags must be seeded before they can be used.
func New() *Client {
	return &Client{
		devices:     make(map[string]*sot.Device),
		interfaces:  make(map[string]*sot.Interface),
		addresses:   make(map[string]*sot.IPAddress),
		prefixes:    make(map[string]*sot.Prefix),
		vlans:       make(map[string]*sot.VLAN),
		tags:        make(map[string]*sot.Tag),
		assignments: make(map[string]*sot.Assignment),
		failures:    make(map[string][]error),
	}
}

var _ sot.Client = (*Client)(nil)

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SeedTag creates a tag and returns it.
func (c *Client) SeedTag(name string) *sot.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tags {
		if t.Name == name {
			return t
		}
	}
	t := &sot.Tag{ID: newID(), Name: name}
	c.tags[t.ID] = t
	return t
}

// FailNext makes the next call of op return err instead of running.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], err)
}

func (c *Client) injected(op string) error {
	queue := c.failures[op]
	if len(queue) == 0 {
		return nil
	}
	c.failures[op] = queue[1:]
	return queue[0]
}

// Counts summarizes the store content.
type Counts struct {
	Devices, Interfaces, Addresses, Prefixes, VLANs, Assignments int
}

// Counts returns the number of stored objects per type.
func (c *Client) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counts{
		Devices:     len(c.devices),
		Interfaces:  len(c.interfaces),
		Addresses:   len(c.addresses),
		Prefixes:    len(c.prefixes),
		VLANs:       len(c.vlans),
		Assignments: len(c.assignments),
	}
}

// ============================================================================
// Devices
// ============================================================================

func (c *Client) deviceByName(name string) *sot.Device {
	for _, d := range c.devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func copyDevice(d *sot.Device) *sot.Device {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Tags = append([]string(nil), d.Tags...)
	cp.Properties = d.Properties.Clone()
	return &cp
}

func (c *Client) GetDevice(ctx context.Context, name string) (*sot.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetDevice"); err != nil {
		return nil, err
	}
	return copyDevice(c.deviceByName(name)), nil
}

func (c *Client) GetDeviceByIP(ctx context.Context, ip string) (*sot.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetDeviceByIP"); err != nil {
		return nil, err
	}
	host := util.StripMask(ip)
	for _, d := range c.devices {
		if d.PrimaryIP4 != "" && util.StripMask(d.PrimaryIP4) == host {
			return copyDevice(d), nil
		}
	}
	return nil, nil
}

func (c *Client) CreateDevice(ctx context.Context, props sot.Properties) (*sot.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateDevice"); err != nil {
		return nil, err
	}
	name := props.String(sot.KeyName)
	if name == "" {
		return nil, sot.NewError("CreateDevice", sot.KindInvalid, "", "device name is required")
	}
	if c.deviceByName(name) != nil {
		return nil, sot.NewError("CreateDevice", sot.KindAlreadyExists, name, "A device with this name already exists")
	}
	tags, err := c.resolveTags("CreateDevice", props[sot.KeyTags])
	if err != nil {
		return nil, err
	}
	d := &sot.Device{ID: newID(), Name: name, Tags: tags, Properties: props.Clone()}
	delete(d.Properties, sot.KeyTags)
	c.devices[d.ID] = d
	return copyDevice(d), nil
}

func (c *Client) UpdateDevice(ctx context.Context, id string, props sot.Properties) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("UpdateDevice"); err != nil {
		return err
	}
	d, ok := c.devices[id]
	if !ok {
		return sot.NewError("UpdateDevice", sot.KindNotFound, id, "device does not exist")
	}

	var (
		primaryID, primaryAddr string
		setPrimary             bool
	)
	if v, ok := props[sot.KeyPrimaryIP4]; ok {
		ip := c.lookupAddress(sot.RefName(v), v)
		if ip == nil {
			return sot.NewError("UpdateDevice", sot.KindNotFound, id, "primary address does not exist")
		}
		if !c.assignedToDevice(ip.ID, d.ID) {
			return sot.NewError("UpdateDevice", sot.KindNotAssigned, d.Name,
				fmt.Sprintf("The specified IP address (%s) is not assigned to this device.", ip.Address))
		}
		primaryID, primaryAddr, setPrimary = ip.ID, ip.Address, true
	}
	var tags []string
	_, setTags := props[sot.KeyTags]
	if setTags {
		resolved, err := c.resolveTags("UpdateDevice", props[sot.KeyTags])
		if err != nil {
			return err
		}
		tags = resolved
	}

	if name := props.String(sot.KeyName); name != "" && name != d.Name {
		if c.deviceByName(name) != nil {
			return sot.NewError("UpdateDevice", sot.KindAlreadyExists, name, "A device with this name already exists")
		}
		d.Name = name
	}
	for k, v := range props {
		if k == sot.KeyTags || k == sot.KeyPrimaryIP4 {
			continue
		}
		d.Properties[k] = v
	}
	if setPrimary {
		d.PrimaryIP4ID, d.PrimaryIP4 = primaryID, primaryAddr
	}
	if setTags {
		d.Tags = tags
	}
	return nil
}

// lookupAddress finds an address by id, or by "ip/len" when v carries no id.
func (c *Client) lookupAddress(ref string, v interface{}) *sot.IPAddress {
	if ip, ok := c.addresses[ref]; ok {
		return ip
	}
	if m, ok := v.(map[string]interface{}); ok {
		if id, ok := m["id"].(string); ok {
			return c.addresses[id]
		}
	}
	for _, ip := range c.addresses {
		if ip.Address == ref {
			return ip
		}
	}
	return nil
}

func (c *Client) assignedToDevice(ipID, deviceID string) bool {
	for _, a := range c.assignments {
		if a.IPAddressID != ipID {
			continue
		}
		if intf, ok := c.interfaces[a.InterfaceID]; ok && intf.DeviceID == deviceID {
			return true
		}
	}
	return false
}

func (c *Client) resolveTags(op string, v interface{}) ([]string, error) {
	names := sot.TagNames(v)
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c.tagByName(n) == nil {
			return nil, sot.NewError(op, sot.KindNotFound, n, "Related object not found using the provided attributes: name="+n)
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Client) tagByName(name string) *sot.Tag {
	for _, t := range c.tags {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ============================================================================
// Interfaces
// ============================================================================

func copyInterface(i *sot.Interface) *sot.Interface {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Tags = append([]string(nil), i.Tags...)
	cp.Properties = i.Properties.Clone()
	return &cp
}

func (c *Client) interfaceByName(deviceID, name string) *sot.Interface {
	for _, i := range c.interfaces {
		if i.DeviceID == deviceID && i.Name == name {
			return i
		}
	}
	return nil
}

func (c *Client) GetInterface(ctx context.Context, deviceID, name string) (*sot.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetInterface"); err != nil {
		return nil, err
	}
	return copyInterface(c.interfaceByName(deviceID, name)), nil
}

func (c *Client) FilterInterfaces(ctx context.Context, deviceID string) ([]*sot.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("FilterInterfaces"); err != nil {
		return nil, err
	}
	var out []*sot.Interface
	for _, i := range c.interfaces {
		if i.DeviceID == deviceID {
			out = append(out, copyInterface(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

// CreateInterfaces is all-or-nothing: one conflicting item rejects the batch.
func (c *Client) CreateInterfaces(ctx context.Context, deviceID string, items []sot.Properties) ([]*sot.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateInterfaces"); err != nil {
		return nil, err
	}
	if _, ok := c.devices[deviceID]; !ok {
		return nil, sot.NewError("CreateInterfaces", sot.KindNotFound, deviceID, "device does not exist")
	}

	batch := make(map[string]bool, len(items))
	for _, p := range items {
		name := p.String(sot.KeyName)
		if name == "" {
			return nil, sot.NewError("CreateInterfaces", sot.KindInvalid, "", "interface name is required")
		}
		if batch[name] || c.interfaceByName(deviceID, name) != nil {
			return nil, sot.NewError("CreateInterfaces", sot.KindUniqueViolation, name, "The fields device, name must make a unique set.")
		}
		batch[name] = true
	}

	out := make([]*sot.Interface, 0, len(items))
	for _, p := range items {
		tags, err := c.resolveTags("CreateInterfaces", p[sot.KeyTags])
		if err != nil {
			return nil, err
		}
		props := p.Clone()
		delete(props, sot.KeyTags)
		props[sot.KeyDevice] = deviceID
		name := p.String(sot.KeyName)
		i := &sot.Interface{ID: newID(), DeviceID: deviceID, Name: name, Display: name, Tags: tags, Properties: props}
		c.interfaces[i.ID] = i
		out = append(out, copyInterface(i))
	}
	return out, nil
}

func (c *Client) UpdateInterface(ctx context.Context, id string, props sot.Properties) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("UpdateInterface"); err != nil {
		return err
	}
	i, ok := c.interfaces[id]
	if !ok {
		return sot.NewError("UpdateInterface", sot.KindNotFound, id, "interface does not exist")
	}
	if _, ok := props[sot.KeyTags]; ok {
		tags, err := c.resolveTags("UpdateInterface", props[sot.KeyTags])
		if err != nil {
			return err
		}
		i.Tags = tags
	}
	for k, v := range props {
		if k == sot.KeyTags || k == sot.KeyName || k == sot.KeyDevice {
			continue
		}
		i.Properties[k] = v
	}
	return nil
}

// ============================================================================
// VLANs and prefixes
// ============================================================================

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func (c *Client) GetVlan(ctx context.Context, vid int, location string) (*sot.VLAN, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetVlan"); err != nil {
		return nil, err
	}
	for _, v := range c.vlans {
		if v.VID == vid && v.Location == location {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *Client) CreateVlans(ctx context.Context, items []sot.Properties) ([]*sot.VLAN, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateVlans"); err != nil {
		return nil, err
	}
	out := make([]*sot.VLAN, 0, len(items))
	for _, p := range items {
		vid, ok := intValue(p[sot.KeyVID])
		if !ok {
			return out, sot.NewError("CreateVlans", sot.KindInvalid, "", "vid is required")
		}
		location := sot.RefName(p[sot.KeyLocation])
		for _, v := range c.vlans {
			if v.VID == vid && v.Location == location {
				return out, sot.NewError("CreateVlans", sot.KindUniqueViolation, strconv.Itoa(vid),
					"The fields vid, location must make a unique set.")
			}
		}
		v := &sot.VLAN{ID: newID(), VID: vid, Name: p.String(sot.KeyName), Location: location}
		c.vlans[v.ID] = v
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (c *Client) GetPrefix(ctx context.Context, prefix, namespace string) (*sot.Prefix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetPrefix"); err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}
	for _, p := range c.prefixes {
		if p.Prefix == prefix && p.Namespace == namespace {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *Client) CreatePrefix(ctx context.Context, props sot.Properties) (*sot.Prefix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreatePrefix"); err != nil {
		return nil, err
	}
	pfx := props.String(sot.KeyPrefix)
	network, err := util.NetworkPrefix(pfx)
	if err != nil {
		return nil, sot.NewError("CreatePrefix", sot.KindInvalid, pfx, err.Error())
	}
	ns := namespaceOf(props)
	for _, p := range c.prefixes {
		if p.Prefix == network && p.Namespace == ns {
			return nil, sot.NewError("CreatePrefix", sot.KindUniqueViolation, network,
				"duplicate key value violates unique constraint")
		}
	}
	p := &sot.Prefix{ID: newID(), Prefix: network, Namespace: ns}
	c.prefixes[p.ID] = p
	cp := *p
	return &cp, nil
}

func namespaceOf(props sot.Properties) string {
	if ns := sot.RefName(props[sot.KeyNamespace]); ns != "" {
		return ns
	}
	return sot.DefaultNamespace
}

// ============================================================================
// Addresses and assignments
// ============================================================================

func (c *Client) GetIPAddress(ctx context.Context, address, namespace string) (*sot.IPAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetIPAddress"); err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}
	for _, ip := range c.addresses {
		if sameAddress(ip.Address, address) && ip.Namespace == namespace {
			cp := *ip
			return &cp, nil
		}
	}
	return nil, nil
}

// sameAddress compares with the mask when both sides carry one.
func sameAddress(stored, query string) bool {
	if strings.Contains(query, "/") {
		return stored == query
	}
	return util.StripMask(stored) == query
}

func (c *Client) CreateIPAddress(ctx context.Context, props sot.Properties) (*sot.IPAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateIPAddress"); err != nil {
		return nil, err
	}
	addr := props.String(sot.KeyAddress)
	if _, _, err := util.ParseIPWithMask(util.HostCIDR(addr)); err != nil {
		return nil, sot.NewError("CreateIPAddress", sot.KindInvalid, addr, err.Error())
	}
	addr = util.HostCIDR(addr)
	ns := namespaceOf(props)
	for _, ip := range c.addresses {
		if util.StripMask(ip.Address) == util.StripMask(addr) && ip.Namespace == ns {
			return nil, sot.NewError("CreateIPAddress", sot.KindUniqueViolation, addr,
				"duplicate key value violates unique constraint \"ipam_ipaddress_parent_id_host_uniq\"")
		}
	}
	ip := &sot.IPAddress{ID: newID(), Address: addr, Namespace: ns, Properties: props.Clone()}
	c.addresses[ip.ID] = ip
	cp := *ip
	return &cp, nil
}

func (c *Client) FilterIPAddresses(ctx context.Context, deviceID, interfaceName string) ([]*sot.IPAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("FilterIPAddresses"); err != nil {
		return nil, err
	}
	intf := c.interfaceByName(deviceID, interfaceName)
	if intf == nil {
		return nil, nil
	}
	var out []*sot.IPAddress
	for _, a := range c.assignments {
		if a.InterfaceID != intf.ID {
			continue
		}
		if ip, ok := c.addresses[a.IPAddressID]; ok {
			cp := *ip
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (c *Client) CreateAssignment(ctx context.Context, interfaceID, ipID string) (*sot.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateAssignment"); err != nil {
		return nil, err
	}
	if _, ok := c.interfaces[interfaceID]; !ok {
		return nil, sot.NewError("CreateAssignment", sot.KindNotFound, interfaceID, "interface does not exist")
	}
	if _, ok := c.addresses[ipID]; !ok {
		return nil, sot.NewError("CreateAssignment", sot.KindNotFound, ipID, "ip address does not exist")
	}
	for _, a := range c.assignments {
		if a.InterfaceID == interfaceID && a.IPAddressID == ipID {
			return nil, sot.NewError("CreateAssignment", sot.KindUniqueViolation, interfaceID,
				"The fields interface, ip_address must make a unique set.")
		}
	}
	a := &sot.Assignment{ID: newID(), InterfaceID: interfaceID, IPAddressID: ipID}
	c.assignments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (c *Client) FilterAssignments(ctx context.Context, interfaceID, ipID string) ([]*sot.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("FilterAssignments"); err != nil {
		return nil, err
	}
	var out []*sot.Assignment
	for _, a := range c.assignments {
		if a.InterfaceID != interfaceID {
			continue
		}
		if ipID != "" && a.IPAddressID != ipID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("DeleteAssignment"); err != nil {
		return err
	}
	if _, ok := c.assignments[id]; !ok {
		return sot.NewError("DeleteAssignment", sot.KindNotFound, id, "assignment does not exist")
	}
	delete(c.assignments, id)
	return nil
}

func (c *Client) GetTag(ctx context.Context, name string) (*sot.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("GetTag"); err != nil {
		return nil, err
	}
	if t := c.tagByName(name); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}
