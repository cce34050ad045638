package nautobot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
	"github.com/newtron-network/sotboard/pkg/version"
)

const (
	devID  = "0b6a3d4e-1111-4a2b-9c3d-000000000001"
	ipID   = "0b6a3d4e-1111-4a2b-9c3d-000000000002"
	intfID = "0b6a3d4e-1111-4a2b-9c3d-000000000003"
)

// fakeServer answers canned responses keyed by "METHOD path" and records
// every request body.
type fakeServer struct {
	t         *testing.T
	mu        sync.Mutex
	responses map[string]func(r *http.Request) (int, interface{})
	bodies    map[string]interface{}
	queries   map[string]string
}

func newFake(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	f := &fakeServer{
		t:         t,
		responses: make(map[string]func(r *http.Request) (int, interface{})),
		bodies:    make(map[string]interface{}),
		queries:   make(map[string]string),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(Options{URL: srv.URL + "/", Token: "secret", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f, c
}

func (f *fakeServer) on(method, path string, fn func(r *http.Request) (int, interface{})) {
	f.responses[method+" "+path] = fn
}

func (f *fakeServer) reply(method, path string, status int, body interface{}) {
	f.on(method, path, func(*http.Request) (int, interface{}) { return status, body })
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Token secret" {
		f.t.Errorf("Authorization = %q", got)
	}
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.queries[key] = r.URL.RawQuery
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var v interface{}
			json.Unmarshal(data, &v)
			f.bodies[key] = v
		}
	}
	fn, ok := f.responses[key]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
		return
	}
	status, body := fn(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func results(items ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(items))
	for _, i := range items {
		list = append(list, i)
	}
	return map[string]interface{}{"count": len(items), "next": nil, "results": list}
}

// ============================================================================
// Error classification
// ============================================================================

func TestClassifier(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		msg  string
		want sot.ErrorKind
	}{
		{"name: A device with this name already exists.", sot.KindAlreadyExists},
		{"The fields device, name must make a unique set.", sot.KindUniqueViolation},
		{"duplicate key value violates unique constraint \"ipam_ipaddress_parent_id_host\"", sot.KindUniqueViolation},
		{"The fields interface, ip_address must make a unique set.", sot.KindUniqueViolation},
		{"primary_ip4: The specified IP address (10.0.0.1/24) is not assigned to this device.", sot.KindNotAssigned},
		{"role: Related object not found using the provided attributes: {'name': 'x'}", sot.KindNotFound},
		{"status: This field is required.", sot.KindInvalid},
		{"Server exploded", sot.KindUnknown},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.msg); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail": "Not found."}`, "Not found."},
		{`{"name": ["A device with this name already exists."]}`, "name: A device with this name already exists."},
		{`[{}, {"non_field_errors": ["The fields device, name must make a unique set."]}]`, "The fields device, name must make a unique set."},
		{`{"b": ["two"], "a": ["one"]}`, "a: one; b: two"},
		{`<html>oops</html>`, "<html>oops</html>"},
		{``, "Bad Request"},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body), http.StatusBadRequest); got != tt.want {
			t.Errorf("errorMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestStatusKinds(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		status int
		body   interface{}
		want   sot.ErrorKind
	}{
		{http.StatusBadRequest, map[string]interface{}{"name": []string{"A device with this name already exists."}}, sot.KindAlreadyExists},
		{http.StatusServiceUnavailable, nil, sot.KindTransient},
		{http.StatusTooManyRequests, map[string]interface{}{"detail": "slow down"}, sot.KindTransient},
		{http.StatusForbidden, map[string]interface{}{"detail": "Invalid token."}, sot.KindUnknown},
	}
	for _, tt := range tests {
		f, c := newFake(t)
		f.reply(http.MethodPost, "/api/dcim/devices/", tt.status, tt.body)
		_, err := c.CreateDevice(ctx, sot.Properties{"name": "sw1"})
		if got := sot.KindOf(err); got != tt.want {
			t.Errorf("status %d: KindOf(%v) = %v, want %v", tt.status, err, got, tt.want)
		}
	}
}

func TestAlreadyExistsUnwraps(t *testing.T) {
	f, c := newFake(t)
	f.reply(http.MethodPost, "/api/dcim/devices/", http.StatusBadRequest,
		map[string]interface{}{"name": []string{"A device with this name already exists."}})
	_, err := c.CreateDevice(context.Background(), sot.Properties{"name": "sw1"})
	if !errors.Is(err, util.ErrAlreadyExists) {
		t.Errorf("CreateDevice() error = %v, want ErrAlreadyExists", err)
	}
}

// ============================================================================
// Requests
// ============================================================================

func TestCreateDeviceBody(t *testing.T) {
	f, c := newFake(t)
	f.reply(http.MethodPost, "/api/dcim/devices/", http.StatusCreated, map[string]interface{}{
		"id": devID, "name": "sw1", "primary_ip4": nil,
		"tags": []interface{}{map[string]interface{}{"id": "t1", "name": "core"}},
	})

	dev, err := c.CreateDevice(context.Background(), sot.Properties{
		"name":        "sw1",
		"status":      "Active",
		"device_type": "C9300",
		"role":        map[string]interface{}{"name": "access"},
		"tags":        []string{"core"},
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if dev.ID != devID || dev.Name != "sw1" || !reflect.DeepEqual(dev.Tags, []string{"core"}) {
		t.Errorf("CreateDevice() = %+v", dev)
	}

	want := map[string]interface{}{
		"name":        "sw1",
		"status":      map[string]interface{}{"name": "Active"},
		"device_type": map[string]interface{}{"model": "C9300"},
		"role":        map[string]interface{}{"name": "access"},
		"tags":        []interface{}{map[string]interface{}{"name": "core"}},
	}
	if got := f.bodies["POST /api/dcim/devices/"]; !reflect.DeepEqual(got, want) {
		t.Errorf("request body = %v, want %v", got, want)
	}
}

func TestGetters(t *testing.T) {
	ctx := context.Background()
	f, c := newFake(t)
	f.reply(http.MethodGet, "/api/dcim/devices/", http.StatusOK, results(map[string]interface{}{
		"id": devID, "name": "sw1",
		"primary_ip4": map[string]interface{}{"id": ipID, "address": "10.0.0.1/24"},
	}))
	f.reply(http.MethodGet, "/api/extras/tags/", http.StatusOK, results())
	f.reply(http.MethodGet, "/api/ipam/vlans/", http.StatusOK, results(map[string]interface{}{
		"id": "v1", "vid": 10, "name": "users", "location": map[string]interface{}{"id": "l1", "name": "HQ"},
	}))
	f.reply(http.MethodGet, "/api/ipam/ip-addresses/", http.StatusOK, results(map[string]interface{}{
		"id": ipID, "address": "10.0.0.1/24",
		"parent": map[string]interface{}{"namespace": map[string]interface{}{"name": "Lab"}},
	}))

	dev, err := c.GetDevice(ctx, "sw1")
	if err != nil || dev == nil || dev.PrimaryIP4 != "10.0.0.1/24" || dev.PrimaryIP4ID != ipID {
		t.Errorf("GetDevice() = %+v, %v", dev, err)
	}
	if q := f.queries["GET /api/dcim/devices/"]; q != "depth=1&limit=200&name=sw1" {
		t.Errorf("GetDevice() query = %q", q)
	}

	tag, err := c.GetTag(ctx, "nonexistent")
	if err != nil || tag != nil {
		t.Errorf("GetTag(missing) = %v, %v, want nil, nil", tag, err)
	}

	vlan, err := c.GetVlan(ctx, 10, "HQ")
	if err != nil || vlan.VID != 10 || vlan.Location != "HQ" {
		t.Errorf("GetVlan() = %+v, %v", vlan, err)
	}

	ip, err := c.GetIPAddress(ctx, "10.0.0.1", "")
	if err != nil || ip.Namespace != "Lab" {
		t.Errorf("GetIPAddress() = %+v, %v", ip, err)
	}
	if q := f.queries["GET /api/ipam/ip-addresses/"]; q != "address=10.0.0.1&depth=1&limit=200&namespace=Global" {
		t.Errorf("GetIPAddress() query = %q", q)
	}

	byIP, err := c.GetDeviceByIP(ctx, "10.0.0.1")
	if err != nil || byIP == nil || byIP.ID != devID {
		t.Errorf("GetDeviceByIP() = %+v, %v", byIP, err)
	}
}

func TestPagination(t *testing.T) {
	f, c := newFake(t)
	var srvURL string
	f.on(http.MethodGet, "/api/dcim/interfaces/", func(r *http.Request) (int, interface{}) {
		if r.URL.Query().Get("offset") == "" {
			srvURL = "http://" + r.Host
			p := results(map[string]interface{}{"id": "i1", "name": "Gi0/1", "device": map[string]interface{}{"id": devID}})
			p["next"] = srvURL + "/api/dcim/interfaces/?device_id=" + devID + "&offset=1"
			return http.StatusOK, p
		}
		return http.StatusOK, results(map[string]interface{}{"id": "i2", "name": "Gi0/2", "display": "GigabitEthernet0/2"})
	})

	got, err := c.FilterInterfaces(context.Background(), devID)
	if err != nil {
		t.Fatalf("FilterInterfaces() error = %v", err)
	}
	if len(got) != 2 || got[0].DeviceID != devID || got[0].Display != "Gi0/1" || got[1].Display != "GigabitEthernet0/2" {
		t.Errorf("FilterInterfaces() = %+v", got)
	}
}

func TestCreateInterfacesBulk(t *testing.T) {
	f, c := newFake(t)
	f.reply(http.MethodPost, "/api/dcim/interfaces/", http.StatusBadRequest, []interface{}{
		map[string]interface{}{},
		map[string]interface{}{"non_field_errors": []string{"The fields device, name must make a unique set."}},
	})
	_, err := c.CreateInterfaces(context.Background(), devID, []sot.Properties{{"name": "Gi0/1"}, {"name": "Gi0/2"}})
	if !sot.IsKind(err, sot.KindUniqueViolation) {
		t.Fatalf("CreateInterfaces() error = %v, want unique violation", err)
	}
	sent, ok := f.bodies["POST /api/dcim/interfaces/"].([]interface{})
	if !ok || len(sent) != 2 {
		t.Fatalf("bulk body = %v", f.bodies["POST /api/dcim/interfaces/"])
	}
	first := sent[0].(map[string]interface{})
	if !reflect.DeepEqual(first["device"], map[string]interface{}{"id": devID}) {
		t.Errorf("device ref = %v", first["device"])
	}
}

func TestUpdateDevicePrimaryByAddress(t *testing.T) {
	f, c := newFake(t)
	f.reply(http.MethodGet, "/api/ipam/ip-addresses/", http.StatusOK, results(map[string]interface{}{"id": ipID, "address": "10.0.0.1/24"}))
	f.reply(http.MethodPatch, "/api/dcim/devices/"+devID+"/", http.StatusOK, map[string]interface{}{"id": devID})

	if err := c.UpdateDevice(context.Background(), devID, sot.Properties{"primary_ip4": "10.0.0.1/24"}); err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	want := map[string]interface{}{"primary_ip4": ipID}
	if got := f.bodies["PATCH /api/dcim/devices/"+devID+"/"]; !reflect.DeepEqual(got, want) {
		t.Errorf("PATCH body = %v, want %v", got, want)
	}

	f.reply(http.MethodPatch, "/api/dcim/devices/"+devID+"/", http.StatusBadRequest,
		map[string]interface{}{"primary_ip4": []string{"The specified IP address (10.0.0.1/24) is not assigned to this device."}})
	err := c.UpdateDevice(context.Background(), devID, sot.Properties{"primary_ip4": ipID})
	if !sot.IsKind(err, sot.KindNotAssigned) {
		t.Errorf("UpdateDevice() error = %v, want not-assigned", err)
	}
}

func TestAssignments(t *testing.T) {
	ctx := context.Background()
	f, c := newFake(t)
	f.reply(http.MethodPost, "/api/ipam/ip-address-to-interface/", http.StatusCreated,
		map[string]interface{}{"id": "a1", "interface": map[string]interface{}{"id": intfID}, "ip_address": map[string]interface{}{"id": ipID}})
	f.reply(http.MethodGet, "/api/ipam/ip-address-to-interface/", http.StatusOK,
		results(map[string]interface{}{"id": "a1", "interface": intfID, "ip_address": ipID}))
	f.reply(http.MethodDelete, "/api/ipam/ip-address-to-interface/a1/", http.StatusNoContent, nil)

	a, err := c.CreateAssignment(ctx, intfID, ipID)
	if err != nil || a.InterfaceID != intfID || a.IPAddressID != ipID {
		t.Errorf("CreateAssignment() = %+v, %v", a, err)
	}
	list, err := c.FilterAssignments(ctx, intfID, ipID)
	if err != nil || len(list) != 1 || list[0].ID != "a1" {
		t.Errorf("FilterAssignments() = %+v, %v", list, err)
	}
	if err := c.DeleteAssignment(ctx, "a1"); err != nil {
		t.Errorf("DeleteAssignment() error = %v", err)
	}
	if err := c.DeleteAssignment(ctx, "a2"); !sot.IsKind(err, sot.KindNotFound) {
		t.Errorf("DeleteAssignment(missing) error = %v, want not-found", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 0, "next": null, "results": []}`))
	}))
	defer srv.Close()

	c, err := New(Options{URL: srv.URL, Token: "abc", SSLVerify: true, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if dev, err := c.GetDevice(context.Background(), "sw1"); dev != nil || err != nil {
		t.Fatalf("GetDevice() = %v, %v", dev, err)
	}
	want := map[string]string{
		"Authorization": "Token abc",
		"Accept":        "application/json",
		"User-Agent":    version.UserAgent(),
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestUndecodableResponse(t *testing.T) {
	f, c := newFake(t)
	f.reply(http.MethodGet, "/api/dcim/devices/", http.StatusOK, "not a page")
	if _, err := c.GetDevice(context.Background(), "sw1"); err == nil || sot.IsKind(err, sot.KindTransient) {
		t.Errorf("GetDevice() error = %v, want a decoding error", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(Options{URL: srv.URL, Token: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetDevice(context.Background(), "sw1")
	if !sot.IsKind(err, sot.KindTransient) {
		t.Errorf("GetDevice() on closed server error = %v, want transient", err)
	}
}

func TestNewValidatesURL(t *testing.T) {
	for _, u := range []string{"", "sot.example.net", "://bad"} {
		if _, err := New(Options{URL: u}); !errors.Is(err, util.ErrInvalidConfig) {
			t.Errorf("New(%q) error = %v, want ErrInvalidConfig", u, err)
		}
	}
}
