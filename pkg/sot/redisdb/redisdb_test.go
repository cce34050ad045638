package redisdb

import (
	"testing"

	"github.com/newtron-network/sotboard/internal/testutil"
	"github.com/newtron-network/sotboard/pkg/sot"
)

// newTestClient connects to the test Redis instance and starts from an
// empty database.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	testutil.SkipIfNoRedis(t)
	testutil.FlushDB(t)

	c := New(Options{Addr: testutil.RedisAddr(), DB: testutil.TestRedisDB})
	if err := c.Connect(testutil.Context(t)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("DEVICE", "sw1"); got != "DEVICE|sw1" {
		t.Errorf("redisKey() = %q", got)
	}
	if got := redisKey("ASSIGNMENT_KEY", "i1", "a1"); got != "ASSIGNMENT_KEY|i1|a1" {
		t.Errorf("redisKey() = %q", got)
	}
}

func TestPropsRoundTrip(t *testing.T) {
	in := sot.Properties{"role": map[string]interface{}{"name": "access"}, "serial": "FOC123"}
	s, err := encodeProps(in)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeProps(s)
	if out.String("serial") != "FOC123" {
		t.Errorf("decodeProps() = %v", out)
	}
	if len(decodeProps("not json")) != 0 {
		t.Error("decodeProps(garbage) should be empty")
	}
}

func TestRedisDevice(t *testing.T) {
	c := newTestClient(t)
	ctx := testutil.Context(t)

	if _, err := c.SeedTag(ctx, "core"); err != nil {
		t.Fatalf("SeedTag() error = %v", err)
	}

	d, err := c.CreateDevice(ctx, sot.Properties{"name": "sw1", "tags": []string{"core"}})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if _, err := c.CreateDevice(ctx, sot.Properties{"name": "sw1"}); sot.KindOf(err) != sot.KindAlreadyExists {
		t.Errorf("duplicate CreateDevice() kind = %v, want already-exists", sot.KindOf(err))
	}
	if _, err := c.CreateDevice(ctx, sot.Properties{"name": "sw2", "tags": []string{"nonexistent"}}); sot.KindOf(err) != sot.KindNotFound {
		t.Errorf("CreateDevice(unknown tag) kind = %v, want not-found", sot.KindOf(err))
	}

	got, err := c.GetDevice(ctx, "sw1")
	if err != nil || got == nil || got.ID != d.ID || len(got.Tags) != 1 {
		t.Errorf("GetDevice() = %+v, %v", got, err)
	}
	if missing, err := c.GetDevice(ctx, "nope"); err != nil || missing != nil {
		t.Errorf("GetDevice(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestRedisInterfacesAndPrimary(t *testing.T) {
	c := newTestClient(t)
	ctx := testutil.Context(t)

	d, _ := c.CreateDevice(ctx, sot.Properties{"name": "sw1"})
	if _, err := c.CreateInterfaces(ctx, d.ID, []sot.Properties{{"name": "Vlan1"}}); err != nil {
		t.Fatalf("CreateInterfaces() error = %v", err)
	}
	_, err := c.CreateInterfaces(ctx, d.ID, []sot.Properties{{"name": "Gi0/2"}, {"name": "Vlan1"}})
	if sot.KindOf(err) != sot.KindUniqueViolation {
		t.Fatalf("CreateInterfaces() kind = %v, want unique-violation", sot.KindOf(err))
	}
	all, err := c.FilterInterfaces(ctx, d.ID)
	if err != nil || len(all) != 1 {
		t.Fatalf("FilterInterfaces() = %d, %v, want 1 (batch must not be partially applied)", len(all), err)
	}
	intf := all[0]

	ip, err := c.CreateIPAddress(ctx, sot.Properties{"address": "10.0.0.1/24"})
	if err != nil {
		t.Fatalf("CreateIPAddress() error = %v", err)
	}
	if _, err := c.CreateIPAddress(ctx, sot.Properties{"address": "10.0.0.1/16"}); !sot.IsConflict(err) {
		t.Errorf("duplicate CreateIPAddress() error = %v, want conflict", err)
	}
	if _, err := c.CreateIPAddress(ctx, sot.Properties{"address": "10.0.0.1/24", "namespace": "Lab"}); err != nil {
		t.Errorf("CreateIPAddress(other namespace) error = %v", err)
	}

	err = c.UpdateDevice(ctx, d.ID, sot.Properties{"primary_ip4": ip.ID})
	if sot.KindOf(err) != sot.KindNotAssigned {
		t.Errorf("UpdateDevice(unassigned) kind = %v, want not-assigned", sot.KindOf(err))
	}

	a, err := c.CreateAssignment(ctx, intf.ID, ip.ID)
	if err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}
	if _, err := c.CreateAssignment(ctx, intf.ID, ip.ID); sot.KindOf(err) != sot.KindUniqueViolation {
		t.Errorf("duplicate CreateAssignment() kind = %v", sot.KindOf(err))
	}
	if err := c.UpdateDevice(ctx, d.ID, sot.Properties{"primary_ip4": ip.ID}); err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	byIP, err := c.GetDeviceByIP(ctx, "10.0.0.1")
	if err != nil || byIP == nil || byIP.ID != d.ID || byIP.PrimaryIP4 != "10.0.0.1/24" {
		t.Errorf("GetDeviceByIP() = %+v, %v", byIP, err)
	}

	addrs, err := c.FilterIPAddresses(ctx, d.ID, "Vlan1")
	if err != nil || len(addrs) != 1 || addrs[0].ID != ip.ID {
		t.Errorf("FilterIPAddresses() = %v, %v", addrs, err)
	}
	if err := c.DeleteAssignment(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAssignment() error = %v", err)
	}
	if left, _ := c.FilterAssignments(ctx, intf.ID, ""); len(left) != 0 {
		t.Errorf("FilterAssignments() after delete = %v", left)
	}
	if err := c.DeleteAssignment(ctx, a.ID); sot.KindOf(err) != sot.KindNotFound {
		t.Errorf("DeleteAssignment(again) kind = %v, want not-found", sot.KindOf(err))
	}
}

func TestRedisVlanAndPrefix(t *testing.T) {
	c := newTestClient(t)
	ctx := testutil.Context(t)

	if _, err := c.CreateVlans(ctx, []sot.Properties{{"vid": 10, "name": "users", "location": "HQ"}}); err != nil {
		t.Fatalf("CreateVlans() error = %v", err)
	}
	v, err := c.GetVlan(ctx, 10, "HQ")
	if err != nil || v == nil || v.Name != "users" {
		t.Errorf("GetVlan() = %+v, %v", v, err)
	}
	if other, _ := c.GetVlan(ctx, 10, "Branch"); other != nil {
		t.Errorf("GetVlan(other location) = %+v, want nil", other)
	}

	p, err := c.CreatePrefix(ctx, sot.Properties{"prefix": "10.0.0.7/24"})
	if err != nil || p.Prefix != "10.0.0.0/24" || p.Namespace != sot.DefaultNamespace {
		t.Fatalf("CreatePrefix() = %+v, %v", p, err)
	}
	if _, err := c.CreatePrefix(ctx, sot.Properties{"prefix": "10.0.0.0/24"}); !sot.IsConflict(err) {
		t.Errorf("duplicate CreatePrefix() error = %v, want conflict", err)
	}
	if got, err := c.GetPrefix(ctx, "10.0.0.0/24", ""); err != nil || got == nil {
		t.Errorf("GetPrefix() = %v, %v", got, err)
	}
}
