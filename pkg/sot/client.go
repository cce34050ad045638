// Package sot defines the source-of-truth client used by onboarding, its
// object model and the typed error kinds every backend returns.
//
// Getters return (nil, nil) when the object does not exist; an error always
// means the lookup itself failed.
package sot

import (
	"context"
)

// Properties is a free-form object body as written to the backend.
type Properties map[string]interface{}

// Clone returns a shallow copy of p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the string value of key, or "".
func (p Properties) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Ref is a reference to another object by id or by natural key.
type Ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Device is a device record.
type Device struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PrimaryIP4ID string     `json:"primary_ip4_id,omitempty"`
	PrimaryIP4   string     `json:"primary_ip4,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Properties   Properties `json:"properties,omitempty"`
}

// Interface is a device interface.
type Interface struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	Name       string     `json:"name"`
	Display    string     `json:"display"`
	Tags       []string   `json:"tags,omitempty"`
	Properties Properties `json:"properties,omitempty"`
}

// IPAddress is an address (with mask) inside a namespace.
type IPAddress struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	Namespace  string     `json:"namespace"`
	Properties Properties `json:"properties,omitempty"`
}

// Prefix is a network prefix inside a namespace.
type Prefix struct {
	ID        string `json:"id"`
	Prefix    string `json:"prefix"`
	Namespace string `json:"namespace"`
}

// VLAN is unique per (VID, Location).
type VLAN struct {
	ID       string `json:"id"`
	VID      int    `json:"vid"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Tag must exist before it can be applied.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment binds an IP address to an interface.
type Assignment struct {
	ID          string `json:"id"`
	InterfaceID string `json:"interface_id"`
	IPAddressID string `json:"ip_address_id"`
}

// Client is the source-of-truth API used by onboarding. Implementations
// return *Error for every backend failure.
type Client interface {
	GetDevice(ctx context.Context, name string) (*Device, error)
	GetDeviceByIP(ctx context.Context, ip string) (*Device, error)
	CreateDevice(ctx context.Context, props Properties) (*Device, error)
	UpdateDevice(ctx context.Context, id string, props Properties) error

	GetInterface(ctx context.Context, deviceID, name string) (*Interface, error)
	FilterInterfaces(ctx context.Context, deviceID string) ([]*Interface, error)
	CreateInterfaces(ctx context.Context, deviceID string, items []Properties) ([]*Interface, error)
	UpdateInterface(ctx context.Context, id string, props Properties) error

	GetVlan(ctx context.Context, vid int, location string) (*VLAN, error)
	CreateVlans(ctx context.Context, items []Properties) ([]*VLAN, error)

	GetPrefix(ctx context.Context, prefix, namespace string) (*Prefix, error)
	CreatePrefix(ctx context.Context, props Properties) (*Prefix, error)

	GetIPAddress(ctx context.Context, address, namespace string) (*IPAddress, error)
	CreateIPAddress(ctx context.Context, props Properties) (*IPAddress, error)
	// FilterIPAddresses lists the addresses assigned to one interface.
	FilterIPAddresses(ctx context.Context, deviceID, interfaceName string) ([]*IPAddress, error)

	CreateAssignment(ctx context.Context, interfaceID, ipID string) (*Assignment, error)
	// FilterAssignments lists assignments of an interface; ipID narrows the
	// result to one address when non-empty.
	FilterAssignments(ctx context.Context, interfaceID, ipID string) ([]*Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error

	GetTag(ctx context.Context, name string) (*Tag, error)
}

// Well-known property keys.
const (
	KeyName       = "name"
	KeyTags       = "tags"
	KeyPrimaryIP4 = "primary_ip4"
	KeyNamespace  = "namespace"
	KeyAddress    = "address"
	KeyPrefix     = "prefix"
	KeyVID        = "vid"
	KeyLocation   = "location"
	KeyDevice     = "device"
)

// DefaultNamespace holds addresses and prefixes that name no namespace.
// Lookups with an empty namespace search it.
const DefaultNamespace = "Global"

// TagNames extracts tag names from the shapes a "tags" value can take:
// a string, a list of strings, or a list of {name: ...} references.
func TagNames(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return append([]string(nil), val...)
	case []Ref:
		out := make([]string, 0, len(val))
		for _, r := range val {
			out = append(out, r.Name)
		}
		return out
	case []map[string]interface{}:
		out := make([]string, 0, len(val))
		for _, m := range val {
			if s, ok := m["name"].(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, TagNames(item)...)
		}
		return out
	case map[string]interface{}:
		if s, ok := val["name"].(string); ok {
			return []string{s}
		}
	case Ref:
		return []string{val.Name}
	}
	return nil
}

// RefName returns the name of a value that is either a bare string or a
// {name: ...} / {model: ...} reference.
func RefName(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}:
		for _, k := range []string{"name", "model", "prefix", "address"} {
			if s, ok := val[k].(string); ok {
				return s
			}
		}
	case Ref:
		return val.Name
	}
	return ""
}
