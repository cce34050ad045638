// Package device retrieves the running configuration and facts of a network
// device, either live over SSH or from previously exported files.
package device

import (
	"context"
)

// DefaultSSHPort is used when a request carries no port.
const DefaultSSHPort = 22

// Profile holds the login credentials for a device.
type Profile struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Request describes one device to fetch.
type Request struct {
	IP       string
	Hostname string // optional, used by file imports
	Defaults map[string]interface{}
	Profile  Profile
	Port     int
}

func (r Request) port() int {
	if r.Port > 0 {
		return r.Port
	}
	return DefaultSSHPort
}

// Result is the raw configuration and the facts of a device.
type Result struct {
	Config string
	Facts  Facts
}

// Provider fetches the configuration and facts of a device.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*Result, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
