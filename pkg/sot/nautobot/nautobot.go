// Package nautobot implements the source-of-truth client over the Nautobot
// REST API, with resty as the transport. Rejected writes are classified
// into sot error kinds by matching the response message against Catalogue.
package nautobot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
	"github.com/newtron-network/sotboard/pkg/version"
)

// API endpoints, relative to <url>/api/.
const (
	pathDevices     = "dcim/devices/"
	pathInterfaces  = "dcim/interfaces/"
	pathVlans       = "ipam/vlans/"
	pathPrefixes    = "ipam/prefixes/"
	pathAddresses   = "ipam/ip-addresses/"
	pathAssignments = "ipam/ip-address-to-interface/"
	pathTags        = "extras/tags/"
)

// Options configures the client.
type Options struct {
	URL        string
	Token      string
	SSLVerify  bool
	Timeout    time.Duration
	PageSize   int
	Classifier *sot.Classifier
	HTTPClient *http.Client // overrides SSLVerify and Timeout when set
}

// Client talks to one Nautobot instance.
type Client struct {
	rest       *resty.Client
	pageSize   int
	classifier *sot.Classifier
}

var _ sot.Client = (*Client)(nil)

// New creates a client for opts.URL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("nautobot url '%s': %w", opts.URL, util.ErrInvalidConfig)
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New().
			SetTimeout(opts.Timeout).
			SetTLSClientConfig(&tls.Config{InsecureSkipVerify: !opts.SSLVerify})
	}
	rc.SetBaseURL(u.String()+"/api").
		SetAuthScheme("Token").
		SetAuthToken(opts.Token).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent()).
		SetLogger(util.WithField("sot", "nautobot"))

	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	return &Client{
		rest:       rc,
		pageSize:   opts.PageSize,
		classifier: opts.Classifier,
	}, nil
}

// ============================================================================
// Transport
// ============================================================================

type object = map[string]interface{}

type page struct {
	Next    string   `json:"next"`
	Results []object `json:"results"`
}

func (c *Client) transportErr(op, objectName string, err error) error {
	kind := sot.KindUnknown
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = sot.KindTransient
	} else if errors.As(err, new(*net.OpError)) {
		kind = sot.KindTransient
	}
	return &sot.Error{Op: op, Kind: kind, Object: objectName, Message: err.Error(), Err: err}
}

// send runs one request. target is relative to the API root, or absolute
// for pagination links. Rejected requests are classified by their message
// first and their status second.
func (c *Client) send(ctx context.Context, op, objectName, method, target string, body, out interface{}) error {
	req := c.rest.R().SetContext(ctx).ForceContentType("application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	util.WithFields(map[string]interface{}{"op": op, "method": method}).Debugf("nautobot %s", target)
	resp, err := req.Execute(method, target)
	switch {
	case err != nil && (resp == nil || resp.RawResponse == nil):
		return c.transportErr(op, objectName, err)
	case err != nil:
		return sot.NewError(op, sot.KindUnknown, objectName, "decoding response: "+err.Error())
	case resp.IsSuccess():
		return nil
	}

	msg := errorMessage(resp.Body(), resp.StatusCode())
	kind := c.classifier.Classify(msg)
	if kind == sot.KindUnknown {
		kind = statusKind(resp.StatusCode())
	}
	return sot.NewError(op, kind, objectName, fmt.Sprintf("%d %s", resp.StatusCode(), msg))
}

func endpoint(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// list follows pagination and returns every result.
func (c *Client) list(ctx context.Context, op, objectName, path string, query url.Values) ([]object, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("depth", "1")
	query.Set("limit", strconv.Itoa(c.pageSize))

	var out []object
	next := endpoint(path, query)
	for next != "" {
		var p page
		if err := c.send(ctx, op, objectName, http.MethodGet, next, nil, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Results...)
		next = p.Next
	}
	return out, nil
}

// first returns the first match of a filter, or nil.
func (c *Client) first(ctx context.Context, op, objectName, path string, query url.Values) (object, error) {
	items, err := c.list(ctx, op, objectName, path, query)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (c *Client) create(ctx context.Context, op, objectName, path string, body interface{}, out interface{}) error {
	return c.send(ctx, op, objectName, http.MethodPost, path, body, out)
}

func (c *Client) patch(ctx context.Context, op, objectName, path, id string, body interface{}) error {
	return c.send(ctx, op, objectName, http.MethodPatch, path+url.PathEscape(id)+"/", body, nil)
}

// ============================================================================
// Request bodies
// ============================================================================

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// name-referenced fields that may arrive as bare strings
var refFields = []string{"status", "namespace", "location", "role", "platform", "tenant", "rack", "manufacturer"}

// body converts props into a write body: bare names of related objects
// become {"name": ...} so Nautobot can resolve them.
func body(props sot.Properties) object {
	out := make(object, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, k := range refFields {
		if s, ok := out[k].(string); ok && s != "" && !uuidRe.MatchString(s) {
			out[k] = object{"name": s}
		}
	}
	if s, ok := out["device_type"].(string); ok && !uuidRe.MatchString(s) {
		out["device_type"] = object{"model": s}
	}
	if tags, ok := out[sot.KeyTags]; ok {
		names := sot.TagNames(tags)
		refs := make([]object, 0, len(names))
		for _, n := range names {
			refs = append(refs, object{"name": n})
		}
		out[sot.KeyTags] = refs
	}
	return out
}

// ============================================================================
// Response decoding
// ============================================================================

func str(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

func refID(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		return str(m["id"])
	}
	return str(v)
}

func intOf(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(val)
		return n
	}
	return 0
}

func namespaceOf(m object) string {
	if ns := sot.RefName(m[sot.KeyNamespace]); ns != "" {
		return ns
	}
	if parent, ok := m["parent"].(map[string]interface{}); ok {
		if ns := sot.RefName(parent[sot.KeyNamespace]); ns != "" {
			return ns
		}
	}
	return sot.DefaultNamespace
}

func toDevice(m object) *sot.Device {
	d := &sot.Device{
		ID:         str(m["id"]),
		Name:       str(m["name"]),
		Tags:       sot.TagNames(m[sot.KeyTags]),
		Properties: sot.Properties(m),
	}
	if p, ok := m[sot.KeyPrimaryIP4].(map[string]interface{}); ok {
		d.PrimaryIP4ID = str(p["id"])
		d.PrimaryIP4 = str(p["address"])
	}
	return d
}

func toInterface(m object) *sot.Interface {
	i := &sot.Interface{
		ID:         str(m["id"]),
		DeviceID:   refID(m[sot.KeyDevice]),
		Name:       str(m["name"]),
		Display:    str(m["display"]),
		Tags:       sot.TagNames(m[sot.KeyTags]),
		Properties: sot.Properties(m),
	}
	if i.Display == "" {
		i.Display = i.Name
	}
	return i
}

func toAddress(m object) *sot.IPAddress {
	return &sot.IPAddress{
		ID:         str(m["id"]),
		Address:    str(m["address"]),
		Namespace:  namespaceOf(m),
		Properties: sot.Properties(m),
	}
}

func toPrefix(m object) *sot.Prefix {
	return &sot.Prefix{ID: str(m["id"]), Prefix: str(m["prefix"]), Namespace: namespaceOf(m)}
}

func toVlan(m object) *sot.VLAN {
	return &sot.VLAN{
		ID:       str(m["id"]),
		VID:      intOf(m["vid"]),
		Name:     str(m["name"]),
		Location: sot.RefName(m[sot.KeyLocation]),
	}
}

func toAssignment(m object) *sot.Assignment {
	return &sot.Assignment{
		ID:          str(m["id"]),
		InterfaceID: refID(m["interface"]),
		IPAddressID: refID(m["ip_address"]),
	}
}

func nsOrDefault(ns string) string {
	if ns == "" {
		return sot.DefaultNamespace
	}
	return ns
}

// ============================================================================
// Devices
// ============================================================================

// GetDevice implements sot.Client.
func (c *Client) GetDevice(ctx context.Context, name string) (*sot.Device, error) {
	m, err := c.first(ctx, "GetDevice", name, pathDevices, url.Values{"name": {name}})
	if err != nil || m == nil {
		return nil, err
	}
	return toDevice(m), nil
}

// GetDeviceByIP returns the device whose primary IPv4 address is ip.
func (c *Client) GetDeviceByIP(ctx context.Context, ip string) (*sot.Device, error) {
	addrs, err := c.list(ctx, "GetDeviceByIP", ip, pathAddresses, url.Values{"address": {util.StripMask(ip)}})
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		m, err := c.first(ctx, "GetDeviceByIP", ip, pathDevices, url.Values{"primary_ip4": {str(a["id"])}})
		if err != nil {
			return nil, err
		}
		if m != nil {
			return toDevice(m), nil
		}
	}
	return nil, nil
}

// CreateDevice implements sot.Client.
func (c *Client) CreateDevice(ctx context.Context, props sot.Properties) (*sot.Device, error) {
	var m object
	if err := c.create(ctx, "CreateDevice", props.String(sot.KeyName), pathDevices, body(props), &m); err != nil {
		return nil, err
	}
	return toDevice(m), nil
}

// UpdateDevice implements sot.Client. A primary_ip4 given as an address is
// resolved to its id first.
func (c *Client) UpdateDevice(ctx context.Context, id string, props sot.Properties) error {
	b := body(props)
	if s, ok := b[sot.KeyPrimaryIP4].(string); ok && !uuidRe.MatchString(s) {
		ip, err := c.GetIPAddress(ctx, util.StripMask(s), "")
		if err != nil {
			return err
		}
		if ip == nil {
			return sot.NewError("UpdateDevice", sot.KindNotFound, s, "address not found")
		}
		b[sot.KeyPrimaryIP4] = ip.ID
	}
	return c.patch(ctx, "UpdateDevice", id, pathDevices, id, b)
}

// ============================================================================
// Interfaces
// ============================================================================

// GetInterface implements sot.Client.
func (c *Client) GetInterface(ctx context.Context, deviceID, name string) (*sot.Interface, error) {
	m, err := c.first(ctx, "GetInterface", name, pathInterfaces, url.Values{"device_id": {deviceID}, "name": {name}})
	if err != nil || m == nil {
		return nil, err
	}
	return toInterface(m), nil
}

// FilterInterfaces implements sot.Client.
func (c *Client) FilterInterfaces(ctx context.Context, deviceID string) ([]*sot.Interface, error) {
	items, err := c.list(ctx, "FilterInterfaces", deviceID, pathInterfaces, url.Values{"device_id": {deviceID}})
	if err != nil {
		return nil, err
	}
	out := make([]*sot.Interface, 0, len(items))
	for _, m := range items {
		out = append(out, toInterface(m))
	}
	return out, nil
}

// CreateInterfaces posts all items in one bulk request; Nautobot rejects
// the whole request when one item fails.
func (c *Client) CreateInterfaces(ctx context.Context, deviceID string, items []sot.Properties) ([]*sot.Interface, error) {
	bodies := make([]object, 0, len(items))
	names := make([]string, 0, len(items))
	for _, p := range items {
		b := body(p)
		if _, ok := b[sot.KeyDevice]; !ok {
			b[sot.KeyDevice] = object{"id": deviceID}
		}
		bodies = append(bodies, b)
		names = append(names, p.String(sot.KeyName))
	}
	var created []object
	if err := c.create(ctx, "CreateInterfaces", strings.Join(names, ","), pathInterfaces, bodies, &created); err != nil {
		return nil, err
	}
	out := make([]*sot.Interface, 0, len(created))
	for _, m := range created {
		out = append(out, toInterface(m))
	}
	return out, nil
}

// UpdateInterface implements sot.Client.
func (c *Client) UpdateInterface(ctx context.Context, id string, props sot.Properties) error {
	return c.patch(ctx, "UpdateInterface", id, pathInterfaces, id, body(props))
}

// ============================================================================
// VLANs and prefixes
// ============================================================================

// GetVlan implements sot.Client. An empty location matches VLANs without
// a location.
func (c *Client) GetVlan(ctx context.Context, vid int, location string) (*sot.VLAN, error) {
	q := url.Values{"vid": {strconv.Itoa(vid)}}
	if location != "" {
		q.Set("location", location)
	} else {
		q.Set("location__isnull", "true")
	}
	m, err := c.first(ctx, "GetVlan", strconv.Itoa(vid), pathVlans, q)
	if err != nil || m == nil {
		return nil, err
	}
	return toVlan(m), nil
}

// CreateVlans implements sot.Client.
func (c *Client) CreateVlans(ctx context.Context, items []sot.Properties) ([]*sot.VLAN, error) {
	bodies := make([]object, 0, len(items))
	for _, p := range items {
		bodies = append(bodies, body(p))
	}
	var created []object
	if err := c.create(ctx, "CreateVlans", "", pathVlans, bodies, &created); err != nil {
		return nil, err
	}
	out := make([]*sot.VLAN, 0, len(created))
	for _, m := range created {
		out = append(out, toVlan(m))
	}
	return out, nil
}

// GetPrefix implements sot.Client.
func (c *Client) GetPrefix(ctx context.Context, prefix, namespace string) (*sot.Prefix, error) {
	q := url.Values{"prefix": {prefix}, "namespace": {nsOrDefault(namespace)}}
	m, err := c.first(ctx, "GetPrefix", prefix, pathPrefixes, q)
	if err != nil || m == nil {
		return nil, err
	}
	return toPrefix(m), nil
}

// CreatePrefix implements sot.Client.
func (c *Client) CreatePrefix(ctx context.Context, props sot.Properties) (*sot.Prefix, error) {
	b := body(props)
	if _, ok := b[sot.KeyNamespace]; !ok {
		b[sot.KeyNamespace] = object{"name": sot.DefaultNamespace}
	}
	var m object
	if err := c.create(ctx, "CreatePrefix", props.String(sot.KeyPrefix), pathPrefixes, b, &m); err != nil {
		return nil, err
	}
	return toPrefix(m), nil
}

// ============================================================================
// IP addresses and assignments
// ============================================================================

// GetIPAddress implements sot.Client. address may carry a mask.
func (c *Client) GetIPAddress(ctx context.Context, address, namespace string) (*sot.IPAddress, error) {
	q := url.Values{"address": {address}, "namespace": {nsOrDefault(namespace)}}
	m, err := c.first(ctx, "GetIPAddress", address, pathAddresses, q)
	if err != nil || m == nil {
		return nil, err
	}
	return toAddress(m), nil
}

// CreateIPAddress implements sot.Client.
func (c *Client) CreateIPAddress(ctx context.Context, props sot.Properties) (*sot.IPAddress, error) {
	b := body(props)
	if _, ok := b[sot.KeyNamespace]; !ok {
		b[sot.KeyNamespace] = object{"name": sot.DefaultNamespace}
	}
	var m object
	if err := c.create(ctx, "CreateIPAddress", props.String(sot.KeyAddress), pathAddresses, b, &m); err != nil {
		return nil, err
	}
	return toAddress(m), nil
}

// FilterIPAddresses implements sot.Client.
func (c *Client) FilterIPAddresses(ctx context.Context, deviceID, interfaceName string) ([]*sot.IPAddress, error) {
	q := url.Values{"device_id": {deviceID}, "interfaces": {interfaceName}}
	items, err := c.list(ctx, "FilterIPAddresses", interfaceName, pathAddresses, q)
	if err != nil {
		return nil, err
	}
	out := make([]*sot.IPAddress, 0, len(items))
	for _, m := range items {
		out = append(out, toAddress(m))
	}
	return out, nil
}

// CreateAssignment implements sot.Client.
func (c *Client) CreateAssignment(ctx context.Context, interfaceID, ipID string) (*sot.Assignment, error) {
	var m object
	b := object{"interface": interfaceID, "ip_address": ipID}
	if err := c.create(ctx, "CreateAssignment", interfaceID+"/"+ipID, pathAssignments, b, &m); err != nil {
		return nil, err
	}
	return toAssignment(m), nil
}

// FilterAssignments implements sot.Client.
func (c *Client) FilterAssignments(ctx context.Context, interfaceID, ipID string) ([]*sot.Assignment, error) {
	q := url.Values{"interface": {interfaceID}}
	if ipID != "" {
		q.Set("ip_address", ipID)
	}
	items, err := c.list(ctx, "FilterAssignments", interfaceID, pathAssignments, q)
	if err != nil {
		return nil, err
	}
	out := make([]*sot.Assignment, 0, len(items))
	for _, m := range items {
		out = append(out, toAssignment(m))
	}
	return out, nil
}

// DeleteAssignment implements sot.Client.
func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	return c.send(ctx, "DeleteAssignment", id, http.MethodDelete, pathAssignments+url.PathEscape(id)+"/", nil, nil)
}

// GetTag implements sot.Client.
func (c *Client) GetTag(ctx context.Context, name string) (*sot.Tag, error) {
	m, err := c.first(ctx, "GetTag", name, pathTags, url.Values{"name": {name}})
	if err != nil || m == nil {
		return nil, err
	}
	return &sot.Tag{ID: str(m["id"]), Name: str(m["name"])}, nil
}
