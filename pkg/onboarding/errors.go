package onboarding

import (
	"fmt"

	"github.com/newtron-network/sotboard/pkg/util"
)

// DeviceConflictError is returned when a device cannot be created and the
// existing one may not be reused.
type DeviceConflictError struct {
	Name string
	Err  error
}

func (e *DeviceConflictError) Error() string {
	return fmt.Sprintf("device '%s' could not be created: %v", e.Name, e.Err)
}

func (e *DeviceConflictError) Unwrap() []error {
	return []error{util.ErrConflict, e.Err}
}

// UnknownDeviceError is returned when a referenced device is absent.
type UnknownDeviceError struct {
	Name string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("device '%s' not found", e.Name)
}

func (e *UnknownDeviceError) Unwrap() error {
	return util.ErrUnknownDevice
}

// PrefixCreationError records a parent prefix that could not be created.
// Address creation continues without it.
type PrefixCreationError struct {
	Prefix    string
	Namespace string
	Err       error
}

func (e *PrefixCreationError) Error() string {
	return fmt.Sprintf("could not add prefix %s (namespace %s): %v", e.Prefix, e.Namespace, e.Err)
}

func (e *PrefixCreationError) Unwrap() error {
	return e.Err
}

// IPAddressConflictError is returned for an address that already exists
// when existing addresses may not be reused.
type IPAddressConflictError struct {
	Address   string
	Namespace string
	Err       error
}

func (e *IPAddressConflictError) Error() string {
	return fmt.Sprintf("address %s already exists in namespace %s", e.Address, e.Namespace)
}

func (e *IPAddressConflictError) Unwrap() []error {
	return []error{util.ErrConflict, e.Err}
}
