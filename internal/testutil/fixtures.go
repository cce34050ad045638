package testutil

import (
	"context"
	"testing"

	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/sot/memory"
)

// SampleIOSConfig is the running-config of an access switch with one LAG,
// a management SVI and a routed uplink.
const SampleIOSConfig = `!
hostname sw1
!
ip domain name lab.example.com
!
vlan 10
 name users
!
vlan 20
 name voice
!
vlan 99
!
interface Port-channel1
 description uplink bundle
 switchport mode trunk
 switchport trunk allowed vlan 10,20
!
interface GigabitEthernet0/1
 description uplink member
 channel-group 1 mode active
 switchport mode trunk
 switchport trunk allowed vlan 10,20
!
interface GigabitEthernet0/2
 description user port
 switchport mode access
 switchport access vlan 10
 ip helper-address 10.0.0.5
!
interface GigabitEthernet0/3
 shutdown
!
interface GigabitEthernet0/24
 description routed uplink
 no switchport
 ip address 172.16.0.1 255.255.255.252
 ip address 172.16.1.1 255.255.255.0 secondary
!
interface Vlan99
 description management
 ip address 192.168.0.1 255.255.255.0
!
snmp-server community public RO
ntp server 10.0.0.1
end
`

// SampleDefaults is a defaults document matching SampleIOSConfig.
const SampleDefaults = `defaults:
  0.0.0.0/0:
    location: HQ
    status: Active
    platform: ios
    tags: [managed]
  192.168.0.0/16:
    role: access
    manufacturer: cisco
    device_type: C9300
`

// SeededTags are the tags NewSoT creates.
var SeededTags = []string{"managed", "core", "uplink", "lab"}

// NewSoT returns an in-memory source of truth holding SeededTags.
func NewSoT(t *testing.T) *memory.Client {
	t.Helper()
	c := memory.New()
	for _, tag := range SeededTags {
		c.SeedTag(tag)
	}
	return c
}

// MustDevice fetches a device by name and fails the test if it is absent.
func MustDevice(t *testing.T, client sot.Client, name string) *sot.Device {
	t.Helper()
	d, err := client.GetDevice(context.Background(), name)
	if err != nil {
		t.Fatalf("GetDevice(%s): %v", name, err)
	}
	if d == nil {
		t.Fatalf("device %s not found", name)
	}
	return d
}
