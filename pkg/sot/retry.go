package sot

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/newtron-network/sotboard/pkg/util"
)

// RetryPolicy bounds every backend round trip.
type RetryPolicy struct {
	Timeout  time.Duration // per attempt; 0 disables the deadline
	Attempts int           // total attempts; values below 1 mean 1
	Backoff  time.Duration // delay before the second attempt, doubled after
}

// DefaultRetryPolicy is used when the configuration sets no policy.
var DefaultRetryPolicy = RetryPolicy{
	Timeout:  30 * time.Second,
	Attempts: 3,
	Backoff:  500 * time.Millisecond,
}

// WithRetry wraps client so that each call gets its own deadline and
// transient failures are retried with exponential backoff. Conflicts and
// other classified errors are returned immediately.
func WithRetry(client Client, policy RetryPolicy) Client {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &retryClient{next: client, policy: policy}
}

type retryClient struct {
	next   Client
	policy RetryPolicy
}

func call[T any](ctx context.Context, r *retryClient, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if r.policy.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		}
		defer cancel()

		out, err := fn(actx)
		if err != nil && KindOf(err) != KindTransient {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	notify := func(err error, wait time.Duration) {
		util.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
		}).Warnf("Transient backend error, retrying in %s: %v", wait, err)
	}
	return backoff.RetryNotifyWithData(operation, r.backOff(ctx), notify)
}

// backOff doubles the policy's delay after every attempt and stops once
// the attempts are spent.
func (r *retryClient) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.policy.Backoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.Attempts-1)), ctx)
}

func callErr(ctx context.Context, r *retryClient, op string, fn func(context.Context) error) error {
	_, err := call(ctx, r, op, func(c context.Context) (struct{}, error) {
		return struct{}{}, fn(c)
	})
	return err
}

func (r *retryClient) GetDevice(ctx context.Context, name string) (*Device, error) {
	return call(ctx, r, "GetDevice", func(c context.Context) (*Device, error) {
		return r.next.GetDevice(c, name)
	})
}

func (r *retryClient) GetDeviceByIP(ctx context.Context, ip string) (*Device, error) {
	return call(ctx, r, "GetDeviceByIP", func(c context.Context) (*Device, error) {
		return r.next.GetDeviceByIP(c, ip)
	})
}

func (r *retryClient) CreateDevice(ctx context.Context, props Properties) (*Device, error) {
	return call(ctx, r, "CreateDevice", func(c context.Context) (*Device, error) {
		return r.next.CreateDevice(c, props)
	})
}

func (r *retryClient) UpdateDevice(ctx context.Context, id string, props Properties) error {
	return callErr(ctx, r, "UpdateDevice", func(c context.Context) error {
		return r.next.UpdateDevice(c, id, props)
	})
}

func (r *retryClient) GetInterface(ctx context.Context, deviceID, name string) (*Interface, error) {
	return call(ctx, r, "GetInterface", func(c context.Context) (*Interface, error) {
		return r.next.GetInterface(c, deviceID, name)
	})
}

func (r *retryClient) FilterInterfaces(ctx context.Context, deviceID string) ([]*Interface, error) {
	return call(ctx, r, "FilterInterfaces", func(c context.Context) ([]*Interface, error) {
		return r.next.FilterInterfaces(c, deviceID)
	})
}

func (r *retryClient) CreateInterfaces(ctx context.Context, deviceID string, items []Properties) ([]*Interface, error) {
	return call(ctx, r, "CreateInterfaces", func(c context.Context) ([]*Interface, error) {
		return r.next.CreateInterfaces(c, deviceID, items)
	})
}

func (r *retryClient) UpdateInterface(ctx context.Context, id string, props Properties) error {
	return callErr(ctx, r, "UpdateInterface", func(c context.Context) error {
		return r.next.UpdateInterface(c, id, props)
	})
}

func (r *retryClient) GetVlan(ctx context.Context, vid int, location string) (*VLAN, error) {
	return call(ctx, r, "GetVlan", func(c context.Context) (*VLAN, error) {
		return r.next.GetVlan(c, vid, location)
	})
}

func (r *retryClient) CreateVlans(ctx context.Context, items []Properties) ([]*VLAN, error) {
	return call(ctx, r, "CreateVlans", func(c context.Context) ([]*VLAN, error) {
		return r.next.CreateVlans(c, items)
	})
}

func (r *retryClient) GetPrefix(ctx context.Context, prefix, namespace string) (*Prefix, error) {
	return call(ctx, r, "GetPrefix", func(c context.Context) (*Prefix, error) {
		return r.next.GetPrefix(c, prefix, namespace)
	})
}

func (r *retryClient) CreatePrefix(ctx context.Context, props Properties) (*Prefix, error) {
	return call(ctx, r, "CreatePrefix", func(c context.Context) (*Prefix, error) {
		return r.next.CreatePrefix(c, props)
	})
}

func (r *retryClient) GetIPAddress(ctx context.Context, address, namespace string) (*IPAddress, error) {
	return call(ctx, r, "GetIPAddress", func(c context.Context) (*IPAddress, error) {
		return r.next.GetIPAddress(c, address, namespace)
	})
}

func (r *retryClient) CreateIPAddress(ctx context.Context, props Properties) (*IPAddress, error) {
	return call(ctx, r, "CreateIPAddress", func(c context.Context) (*IPAddress, error) {
		return r.next.CreateIPAddress(c, props)
	})
}

func (r *retryClient) FilterIPAddresses(ctx context.Context, deviceID, interfaceName string) ([]*IPAddress, error) {
	return call(ctx, r, "FilterIPAddresses", func(c context.Context) ([]*IPAddress, error) {
		return r.next.FilterIPAddresses(c, deviceID, interfaceName)
	})
}

func (r *retryClient) CreateAssignment(ctx context.Context, interfaceID, ipID string) (*Assignment, error) {
	return call(ctx, r, "CreateAssignment", func(c context.Context) (*Assignment, error) {
		return r.next.CreateAssignment(c, interfaceID, ipID)
	})
}

func (r *retryClient) FilterAssignments(ctx context.Context, interfaceID, ipID string) ([]*Assignment, error) {
	return call(ctx, r, "FilterAssignments", func(c context.Context) ([]*Assignment, error) {
		return r.next.FilterAssignments(c, interfaceID, ipID)
	})
}

func (r *retryClient) DeleteAssignment(ctx context.Context, id string) error {
	return callErr(ctx, r, "DeleteAssignment", func(c context.Context) error {
		return r.next.DeleteAssignment(c, id)
	})
}

func (r *retryClient) GetTag(ctx context.Context, name string) (*Tag, error) {
	return call(ctx, r, "GetTag", func(c context.Context) (*Tag, error) {
		return r.next.GetTag(c, name)
	})
}
