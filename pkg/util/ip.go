package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseIPWithMask parses an IP address with CIDR notation
// Returns the IP, mask length, and any error
func ParseIPWithMask(cidr string) (net.IP, int, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	ones, _ := ipNet.Mask.Size()
	return ip, ones, nil
}

// MaskToPrefixLen converts a netmask to a prefix length. Both dotted
// notation ("255.255.255.0") and a bare length ("24") are accepted.
// Non-contiguous masks are rejected.
func MaskToPrefixLen(mask string) (int, error) {
	mask = strings.TrimSpace(mask)
	if n, err := strconv.Atoi(mask); err == nil {
		if n < 0 || n > 128 {
			return 0, fmt.Errorf("prefix length out of range: %d", n)
		}
		return n, nil
	}
	ip := net.ParseIP(mask).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid netmask: %s", mask)
	}
	ones, bits := net.IPv4Mask(ip[0], ip[1], ip[2], ip[3]).Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous netmask: %s", mask)
	}
	return ones, nil
}

// SplitIPMask splits "10.1.1.1/31" into ("10.1.1.1", 31).
// Returns (input, 0) if no mask is present.
func SplitIPMask(cidr string) (string, int) {
	parts := strings.SplitN(cidr, "/", 2)
	if len(parts) != 2 {
		return cidr, 0
	}
	mask, err := strconv.Atoi(parts[1])
	if err != nil {
		return parts[0], 0
	}
	return parts[0], mask
}

// StripMask returns the address part of "ip/len" (or ip unchanged).
func StripMask(addr string) string {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// IsValidIP checks if a string is a valid IPv4 or IPv6 address
func IsValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}

// HostCIDR returns the single-host prefix for ip: "/32" for IPv4, "/128"
// for IPv6. An address that already carries a mask is returned as is.
func HostCIDR(ip string) string {
	if strings.Contains(ip, "/") {
		return ip
	}
	if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() == nil {
		return ip + "/128"
	}
	return ip + "/32"
}

// FormatCIDR joins an address and a netmask (dotted or length) to "ip/len".
func FormatCIDR(ip, mask string) (string, error) {
	ones, err := MaskToPrefixLen(mask)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d", ip, ones), nil
}

// NetworkPrefix returns the containing network of an "ip/len" address,
// e.g. "10.0.0.5/24" -> "10.0.0.0/24".
func NetworkPrefix(cidr string) (string, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	return ipNet.String(), nil
}
