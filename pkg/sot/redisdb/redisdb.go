// Package redisdb implements sot.Client on Redis. Objects are stored as
// "TABLE|id" hashes; uniqueness rules are kept in "TABLE_KEY|natural-key"
// index hashes claimed with HSETNX so concurrent writers cannot create
// duplicates.
package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Table names.
const (
	tableDevice        = "DEVICE"
	tableDeviceName    = "DEVICE_NAME"
	tableDeviceIP      = "DEVICE_IP"
	tableInterface     = "INTERFACE"
	tableInterfaceName = "INTERFACE_NAME"
	tableIPAddress     = "IP_ADDRESS"
	tableIPAddressKey  = "IP_ADDRESS_KEY"
	tablePrefix        = "PREFIX"
	tablePrefixKey     = "PREFIX_KEY"
	tableVLAN          = "VLAN"
	tableVLANKey       = "VLAN_KEY"
	tableTag           = "TAG"
	tableTagName       = "TAG_NAME"
	tableAssignment    = "ASSIGNMENT"
	tableAssignmentKey = "ASSIGNMENT_KEY"
	fieldID            = "id"
	fieldProps         = "props"
	fieldTags          = "tags"
)

// Client is a Redis-backed source of truth.
type Client struct {
	rdb *redis.Client
}

var _ sot.Client = (*Client)(nil)

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a client; call Connect to verify the server is reachable.
func New(opts Options) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// Connect tests the connection
func (c *Client) Connect(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.rdb.Options().Addr, err)
	}
	return nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func redisKey(table string, parts ...string) string {
	return table + "|" + strings.Join(parts, "|")
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// backendErr converts a Redis failure into a typed error. Network and
// timeout failures are transient.
func backendErr(op, object string, err error) error {
	if err == nil {
		return nil
	}
	kind := sot.KindUnknown
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		kind = sot.KindTransient
	}
	return &sot.Error{Op: op, Kind: kind, Object: object, Message: err.Error(), Err: err}
}

// scanKeys iterates Redis keys matching the given pattern using cursor-based
// SCAN instead of the blocking O(N) KEYS command.
func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// claim reserves an index key for id. It reports false when the key is
// already held by another object.
func (c *Client) claim(ctx context.Context, key, id string) (bool, error) {
	return c.rdb.HSetNX(ctx, key, fieldID, id).Result()
}

// lookup returns the id stored under an index key, or "".
func (c *Client) lookup(ctx context.Context, key string) (string, error) {
	id, err := c.rdb.HGet(ctx, key, fieldID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *Client) hash(ctx context.Context, table, id string) (map[string]string, error) {
	vals, err := c.rdb.HGetAll(ctx, redisKey(table, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

func encodeProps(p sot.Properties) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeProps(s string) sot.Properties {
	p := sot.Properties{}
	if s != "" {
		_ = json.Unmarshal([]byte(s), &p)
	}
	return p
}

func splitTags(s string) []string {
	return util.SplitCommaSeparated(s)
}

// resolveTags checks every tag name exists.
func (c *Client) resolveTags(ctx context.Context, op string, v interface{}) ([]string, error) {
	names := sot.TagNames(v)
	for _, n := range names {
		id, err := c.lookup(ctx, redisKey(tableTagName, n))
		if err != nil {
			return nil, backendErr(op, n, err)
		}
		if id == "" {
			return nil, sot.NewError(op, sot.KindNotFound, n, "tag does not exist")
		}
	}
	return names, nil
}

// SeedTag creates a tag if it does not exist.
func (c *Client) SeedTag(ctx context.Context, name string) (*sot.Tag, error) {
	id := newID()
	ok, err := c.claim(ctx, redisKey(tableTagName, name), id)
	if err != nil {
		return nil, backendErr("SeedTag", name, err)
	}
	if !ok {
		return c.GetTag(ctx, name)
	}
	if err := c.rdb.HSet(ctx, redisKey(tableTag, id), "name", name).Err(); err != nil {
		return nil, backendErr("SeedTag", name, err)
	}
	return &sot.Tag{ID: id, Name: name}, nil
}

// ============================================================================
// Devices
// ============================================================================

func (c *Client) device(ctx context.Context, id string) (*sot.Device, error) {
	vals, err := c.hash(ctx, tableDevice, id)
	if err != nil || vals == nil {
		return nil, err
	}
	return &sot.Device{
		ID:           id,
		Name:         vals["name"],
		PrimaryIP4ID: vals["primary_ip4_id"],
		PrimaryIP4:   vals["primary_ip4"],
		Tags:         splitTags(vals[fieldTags]),
		Properties:   decodeProps(vals[fieldProps]),
	}, nil
}

func (c *Client) GetDevice(ctx context.Context, name string) (*sot.Device, error) {
	id, err := c.lookup(ctx, redisKey(tableDeviceName, name))
	if err != nil {
		return nil, backendErr("GetDevice", name, err)
	}
	if id == "" {
		return nil, nil
	}
	d, err := c.device(ctx, id)
	return d, backendErr("GetDevice", name, err)
}

func (c *Client) GetDeviceByIP(ctx context.Context, ip string) (*sot.Device, error) {
	id, err := c.lookup(ctx, redisKey(tableDeviceIP, util.StripMask(ip)))
	if err != nil {
		return nil, backendErr("GetDeviceByIP", ip, err)
	}
	if id == "" {
		return nil, nil
	}
	d, err := c.device(ctx, id)
	return d, backendErr("GetDeviceByIP", ip, err)
}

func (c *Client) CreateDevice(ctx context.Context, props sot.Properties) (*sot.Device, error) {
	name := props.String(sot.KeyName)
	if name == "" {
		return nil, sot.NewError("CreateDevice", sot.KindInvalid, "", "device name is required")
	}
	tags, err := c.resolveTags(ctx, "CreateDevice", props[sot.KeyTags])
	if err != nil {
		return nil, err
	}
	body := props.Clone()
	delete(body, sot.KeyTags)
	encoded, err := encodeProps(body)
	if err != nil {
		return nil, sot.NewError("CreateDevice", sot.KindInvalid, name, err.Error())
	}

	id := newID()
	ok, err := c.claim(ctx, redisKey(tableDeviceName, name), id)
	if err != nil {
		return nil, backendErr("CreateDevice", name, err)
	}
	if !ok {
		return nil, sot.NewError("CreateDevice", sot.KindAlreadyExists, name, "A device with this name already exists")
	}
	err = c.rdb.HSet(ctx, redisKey(tableDevice, id),
		"name", name, fieldTags, strings.Join(tags, ","), fieldProps, encoded).Err()
	if err != nil {
		c.rdb.Del(ctx, redisKey(tableDeviceName, name))
		return nil, backendErr("CreateDevice", name, err)
	}
	return &sot.Device{ID: id, Name: name, Tags: tags, Properties: body}, nil
}

func (c *Client) UpdateDevice(ctx context.Context, id string, props sot.Properties) error {
	d, err := c.device(ctx, id)
	if err != nil {
		return backendErr("UpdateDevice", id, err)
	}
	if d == nil {
		return sot.NewError("UpdateDevice", sot.KindNotFound, id, "device does not exist")
	}

	fields := map[string]interface{}{}
	if v, ok := props[sot.KeyPrimaryIP4]; ok {
		ipID := sot.RefName(v)
		if m, ok := v.(map[string]interface{}); ok {
			if s, ok := m["id"].(string); ok {
				ipID = s
			}
		}
		ip, err := c.address(ctx, ipID)
		if err != nil {
			return backendErr("UpdateDevice", d.Name, err)
		}
		if ip == nil {
			return sot.NewError("UpdateDevice", sot.KindNotFound, d.Name, "primary address does not exist")
		}
		assigned, err := c.assignedToDevice(ctx, ip.ID, d.ID)
		if err != nil {
			return backendErr("UpdateDevice", d.Name, err)
		}
		if !assigned {
			return sot.NewError("UpdateDevice", sot.KindNotAssigned, d.Name,
				fmt.Sprintf("The specified IP address (%s) is not assigned to this device.", ip.Address))
		}
		fields["primary_ip4_id"] = ip.ID
		fields["primary_ip4"] = ip.Address
		if d.PrimaryIP4 != "" {
			c.rdb.Del(ctx, redisKey(tableDeviceIP, util.StripMask(d.PrimaryIP4)))
		}
		if err := c.rdb.HSet(ctx, redisKey(tableDeviceIP, util.StripMask(ip.Address)), fieldID, d.ID).Err(); err != nil {
			return backendErr("UpdateDevice", d.Name, err)
		}
	}
	if _, ok := props[sot.KeyTags]; ok {
		tags, err := c.resolveTags(ctx, "UpdateDevice", props[sot.KeyTags])
		if err != nil {
			return err
		}
		fields[fieldTags] = strings.Join(tags, ",")
	}
	for k, v := range props {
		if k == sot.KeyTags || k == sot.KeyPrimaryIP4 || k == sot.KeyName {
			continue
		}
		d.Properties[k] = v
	}
	encoded, err := encodeProps(d.Properties)
	if err != nil {
		return sot.NewError("UpdateDevice", sot.KindInvalid, d.Name, err.Error())
	}
	fields[fieldProps] = encoded
	return backendErr("UpdateDevice", d.Name, c.rdb.HSet(ctx, redisKey(tableDevice, id), fields).Err())
}

func (c *Client) assignedToDevice(ctx context.Context, ipID, deviceID string) (bool, error) {
	intfs, err := c.FilterInterfaces(ctx, deviceID)
	if err != nil {
		return false, err
	}
	for _, i := range intfs {
		n, err := c.rdb.Exists(ctx, redisKey(tableAssignmentKey, i.ID, ipID)).Result()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ============================================================================
// Interfaces
// ============================================================================

func (c *Client) iface(ctx context.Context, id string) (*sot.Interface, error) {
	vals, err := c.hash(ctx, tableInterface, id)
	if err != nil || vals == nil {
		return nil, err
	}
	return &sot.Interface{
		ID:         id,
		DeviceID:   vals["device_id"],
		Name:       vals["name"],
		Display:    vals["name"],
		Tags:       splitTags(vals[fieldTags]),
		Properties: decodeProps(vals[fieldProps]),
	}, nil
}

func (c *Client) GetInterface(ctx context.Context, deviceID, name string) (*sot.Interface, error) {
	id, err := c.lookup(ctx, redisKey(tableInterfaceName, deviceID, name))
	if err != nil {
		return nil, backendErr("GetInterface", name, err)
	}
	if id == "" {
		return nil, nil
	}
	i, err := c.iface(ctx, id)
	return i, backendErr("GetInterface", name, err)
}

func (c *Client) FilterInterfaces(ctx context.Context, deviceID string) ([]*sot.Interface, error) {
	keys, err := scanKeys(ctx, c.rdb, redisKey(tableInterfaceName, deviceID, "*"))
	if err != nil {
		return nil, backendErr("FilterInterfaces", deviceID, err)
	}
	var out []*sot.Interface
	for _, k := range keys {
		id, err := c.lookup(ctx, k)
		if err != nil {
			return nil, backendErr("FilterInterfaces", deviceID, err)
		}
		i, err := c.iface(ctx, id)
		if err != nil {
			return nil, backendErr("FilterInterfaces", deviceID, err)
		}
		if i != nil {
			out = append(out, i)
		}
	}
	return out, nil
}

// CreateInterfaces claims every name first; if any claim fails the claims
// already taken are released and nothing is written.
func (c *Client) CreateInterfaces(ctx context.Context, deviceID string, items []sot.Properties) ([]*sot.Interface, error) {
	if d, err := c.device(ctx, deviceID); err != nil {
		return nil, backendErr("CreateInterfaces", deviceID, err)
	} else if d == nil {
		return nil, sot.NewError("CreateInterfaces", sot.KindNotFound, deviceID, "device does not exist")
	}

	type pending struct {
		id, name, tags, props string
	}
	var claimed []pending
	release := func() {
		for _, p := range claimed {
			c.rdb.Del(ctx, redisKey(tableInterfaceName, deviceID, p.name))
		}
	}

	for _, item := range items {
		name := item.String(sot.KeyName)
		if name == "" {
			release()
			return nil, sot.NewError("CreateInterfaces", sot.KindInvalid, "", "interface name is required")
		}
		tags, err := c.resolveTags(ctx, "CreateInterfaces", item[sot.KeyTags])
		if err != nil {
			release()
			return nil, err
		}
		body := item.Clone()
		delete(body, sot.KeyTags)
		body[sot.KeyDevice] = deviceID
		encoded, err := encodeProps(body)
		if err != nil {
			release()
			return nil, sot.NewError("CreateInterfaces", sot.KindInvalid, name, err.Error())
		}

		p := pending{id: newID(), name: name, tags: strings.Join(tags, ","), props: encoded}
		ok, err := c.claim(ctx, redisKey(tableInterfaceName, deviceID, name), p.id)
		if err != nil {
			release()
			return nil, backendErr("CreateInterfaces", name, err)
		}
		if !ok {
			release()
			return nil, sot.NewError("CreateInterfaces", sot.KindUniqueViolation, name, "The fields device, name must make a unique set.")
		}
		claimed = append(claimed, p)
	}

	pipe := c.rdb.TxPipeline()
	for _, p := range claimed {
		pipe.HSet(ctx, redisKey(tableInterface, p.id),
			"device_id", deviceID, "name", p.name, fieldTags, p.tags, fieldProps, p.props)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		release()
		return nil, backendErr("CreateInterfaces", deviceID, err)
	}

	out := make([]*sot.Interface, 0, len(claimed))
	for _, p := range claimed {
		out = append(out, &sot.Interface{
			ID: p.id, DeviceID: deviceID, Name: p.name, Display: p.name,
			Tags: splitTags(p.tags), Properties: decodeProps(p.props),
		})
	}
	return out, nil
}

func (c *Client) UpdateInterface(ctx context.Context, id string, props sot.Properties) error {
	i, err := c.iface(ctx, id)
	if err != nil {
		return backendErr("UpdateInterface", id, err)
	}
	if i == nil {
		return sot.NewError("UpdateInterface", sot.KindNotFound, id, "interface does not exist")
	}
	fields := map[string]interface{}{}
	if _, ok := props[sot.KeyTags]; ok {
		tags, err := c.resolveTags(ctx, "UpdateInterface", props[sot.KeyTags])
		if err != nil {
			return err
		}
		fields[fieldTags] = strings.Join(tags, ",")
	}
	for k, v := range props {
		if k == sot.KeyTags || k == sot.KeyName || k == sot.KeyDevice {
			continue
		}
		i.Properties[k] = v
	}
	encoded, err := encodeProps(i.Properties)
	if err != nil {
		return sot.NewError("UpdateInterface", sot.KindInvalid, i.Name, err.Error())
	}
	fields[fieldProps] = encoded
	return backendErr("UpdateInterface", i.Name, c.rdb.HSet(ctx, redisKey(tableInterface, id), fields).Err())
}

// ============================================================================
// VLANs and prefixes
// ============================================================================

func (c *Client) GetVlan(ctx context.Context, vid int, location string) (*sot.VLAN, error) {
	id, err := c.lookup(ctx, redisKey(tableVLANKey, location, strconv.Itoa(vid)))
	if err != nil {
		return nil, backendErr("GetVlan", strconv.Itoa(vid), err)
	}
	if id == "" {
		return nil, nil
	}
	vals, err := c.hash(ctx, tableVLAN, id)
	if err != nil || vals == nil {
		return nil, backendErr("GetVlan", strconv.Itoa(vid), err)
	}
	return &sot.VLAN{ID: id, VID: vid, Name: vals["name"], Location: vals["location"]}, nil
}

func (c *Client) CreateVlans(ctx context.Context, items []sot.Properties) ([]*sot.VLAN, error) {
	out := make([]*sot.VLAN, 0, len(items))
	for _, p := range items {
		vid, err := strconv.Atoi(fmt.Sprint(p[sot.KeyVID]))
		if err != nil {
			return out, sot.NewError("CreateVlans", sot.KindInvalid, "", "vid is required")
		}
		location := sot.RefName(p[sot.KeyLocation])
		id := newID()
		ok, err := c.claim(ctx, redisKey(tableVLANKey, location, strconv.Itoa(vid)), id)
		if err != nil {
			return out, backendErr("CreateVlans", strconv.Itoa(vid), err)
		}
		if !ok {
			return out, sot.NewError("CreateVlans", sot.KindUniqueViolation, strconv.Itoa(vid),
				"The fields vid, location must make a unique set.")
		}
		name := p.String(sot.KeyName)
		err = c.rdb.HSet(ctx, redisKey(tableVLAN, id), "vid", vid, "name", name, "location", location).Err()
		if err != nil {
			return out, backendErr("CreateVlans", strconv.Itoa(vid), err)
		}
		out = append(out, &sot.VLAN{ID: id, VID: vid, Name: name, Location: location})
	}
	return out, nil
}

func namespaceOf(props sot.Properties) string {
	if ns := sot.RefName(props[sot.KeyNamespace]); ns != "" {
		return ns
	}
	return sot.DefaultNamespace
}

func (c *Client) GetPrefix(ctx context.Context, prefix, namespace string) (*sot.Prefix, error) {
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}
	id, err := c.lookup(ctx, redisKey(tablePrefixKey, namespace, prefix))
	if err != nil {
		return nil, backendErr("GetPrefix", prefix, err)
	}
	if id == "" {
		return nil, nil
	}
	return &sot.Prefix{ID: id, Prefix: prefix, Namespace: namespace}, nil
}

func (c *Client) CreatePrefix(ctx context.Context, props sot.Properties) (*sot.Prefix, error) {
	network, err := util.NetworkPrefix(props.String(sot.KeyPrefix))
	if err != nil {
		return nil, sot.NewError("CreatePrefix", sot.KindInvalid, props.String(sot.KeyPrefix), err.Error())
	}
	ns := namespaceOf(props)
	id := newID()
	ok, err := c.claim(ctx, redisKey(tablePrefixKey, ns, network), id)
	if err != nil {
		return nil, backendErr("CreatePrefix", network, err)
	}
	if !ok {
		return nil, sot.NewError("CreatePrefix", sot.KindUniqueViolation, network, "duplicate key value violates unique constraint")
	}
	if err := c.rdb.HSet(ctx, redisKey(tablePrefix, id), "prefix", network, "namespace", ns).Err(); err != nil {
		return nil, backendErr("CreatePrefix", network, err)
	}
	return &sot.Prefix{ID: id, Prefix: network, Namespace: ns}, nil
}

// ============================================================================
// Addresses and assignments
// ============================================================================

func (c *Client) address(ctx context.Context, id string) (*sot.IPAddress, error) {
	vals, err := c.hash(ctx, tableIPAddress, id)
	if err != nil || vals == nil {
		return nil, err
	}
	return &sot.IPAddress{
		ID:         id,
		Address:    vals["address"],
		Namespace:  vals["namespace"],
		Properties: decodeProps(vals[fieldProps]),
	}, nil
}

func (c *Client) GetIPAddress(ctx context.Context, address, namespace string) (*sot.IPAddress, error) {
	if namespace == "" {
		namespace = sot.DefaultNamespace
	}
	id, err := c.lookup(ctx, redisKey(tableIPAddressKey, namespace, util.StripMask(address)))
	if err != nil {
		return nil, backendErr("GetIPAddress", address, err)
	}
	if id == "" {
		return nil, nil
	}
	ip, err := c.address(ctx, id)
	if err != nil {
		return nil, backendErr("GetIPAddress", address, err)
	}
	if ip != nil && strings.Contains(address, "/") && ip.Address != address {
		return nil, nil
	}
	return ip, nil
}

func (c *Client) CreateIPAddress(ctx context.Context, props sot.Properties) (*sot.IPAddress, error) {
	addr := util.HostCIDR(props.String(sot.KeyAddress))
	if _, _, err := util.ParseIPWithMask(addr); err != nil {
		return nil, sot.NewError("CreateIPAddress", sot.KindInvalid, addr, err.Error())
	}
	ns := namespaceOf(props)
	encoded, err := encodeProps(props)
	if err != nil {
		return nil, sot.NewError("CreateIPAddress", sot.KindInvalid, addr, err.Error())
	}
	id := newID()
	ok, err := c.claim(ctx, redisKey(tableIPAddressKey, ns, util.StripMask(addr)), id)
	if err != nil {
		return nil, backendErr("CreateIPAddress", addr, err)
	}
	if !ok {
		return nil, sot.NewError("CreateIPAddress", sot.KindUniqueViolation, addr, "duplicate key value violates unique constraint")
	}
	err = c.rdb.HSet(ctx, redisKey(tableIPAddress, id), "address", addr, "namespace", ns, fieldProps, encoded).Err()
	if err != nil {
		return nil, backendErr("CreateIPAddress", addr, err)
	}
	return &sot.IPAddress{ID: id, Address: addr, Namespace: ns, Properties: props.Clone()}, nil
}

func (c *Client) FilterIPAddresses(ctx context.Context, deviceID, interfaceName string) ([]*sot.IPAddress, error) {
	intf, err := c.GetInterface(ctx, deviceID, interfaceName)
	if err != nil || intf == nil {
		return nil, err
	}
	assignments, err := c.FilterAssignments(ctx, intf.ID, "")
	if err != nil {
		return nil, err
	}
	var out []*sot.IPAddress
	for _, a := range assignments {
		ip, err := c.address(ctx, a.IPAddressID)
		if err != nil {
			return nil, backendErr("FilterIPAddresses", interfaceName, err)
		}
		if ip != nil {
			out = append(out, ip)
		}
	}
	return out, nil
}

func (c *Client) CreateAssignment(ctx context.Context, interfaceID, ipID string) (*sot.Assignment, error) {
	id := newID()
	ok, err := c.claim(ctx, redisKey(tableAssignmentKey, interfaceID, ipID), id)
	if err != nil {
		return nil, backendErr("CreateAssignment", interfaceID, err)
	}
	if !ok {
		return nil, sot.NewError("CreateAssignment", sot.KindUniqueViolation, interfaceID,
			"The fields interface, ip_address must make a unique set.")
	}
	err = c.rdb.HSet(ctx, redisKey(tableAssignment, id), "interface_id", interfaceID, "ip_address_id", ipID).Err()
	if err != nil {
		return nil, backendErr("CreateAssignment", interfaceID, err)
	}
	return &sot.Assignment{ID: id, InterfaceID: interfaceID, IPAddressID: ipID}, nil
}

func (c *Client) FilterAssignments(ctx context.Context, interfaceID, ipID string) ([]*sot.Assignment, error) {
	pattern := redisKey(tableAssignmentKey, interfaceID, "*")
	if ipID != "" {
		pattern = redisKey(tableAssignmentKey, interfaceID, ipID)
	}
	keys, err := scanKeys(ctx, c.rdb, pattern)
	if err != nil {
		return nil, backendErr("FilterAssignments", interfaceID, err)
	}
	var out []*sot.Assignment
	for _, k := range keys {
		id, err := c.lookup(ctx, k)
		if err != nil {
			return nil, backendErr("FilterAssignments", interfaceID, err)
		}
		parts := strings.Split(k, "|")
		out = append(out, &sot.Assignment{ID: id, InterfaceID: interfaceID, IPAddressID: parts[len(parts)-1]})
	}
	return out, nil
}

func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	vals, err := c.hash(ctx, tableAssignment, id)
	if err != nil {
		return backendErr("DeleteAssignment", id, err)
	}
	if vals == nil {
		return sot.NewError("DeleteAssignment", sot.KindNotFound, id, "assignment does not exist")
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, redisKey(tableAssignmentKey, vals["interface_id"], vals["ip_address_id"]))
	pipe.Del(ctx, redisKey(tableAssignment, id))
	_, err = pipe.Exec(ctx)
	return backendErr("DeleteAssignment", id, err)
}

func (c *Client) GetTag(ctx context.Context, name string) (*sot.Tag, error) {
	id, err := c.lookup(ctx, redisKey(tableTagName, name))
	if err != nil {
		return nil, backendErr("GetTag", name, err)
	}
	if id == "" {
		return nil, nil
	}
	return &sot.Tag{ID: id, Name: name}, nil
}
