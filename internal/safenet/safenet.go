// Package safenet refuses outbound connections to private and reserved
// addresses when a check is configured to reach public endpoints only.
package safenet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// ErrBlocked is wrapped by every refusal from Control.
var ErrBlocked = errors.New("blocked address")

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.88.99.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("255.255.255.255/32"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsReserved reports whether ip is loopback, private, link-local or otherwise
// reserved.
func IsReserved(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	return isReserved(addr)
}

func isReserved(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Control is a net.Dialer Control hook. It runs after name resolution, so it
// sees the address actually being dialed.
func Control(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: invalid address %q", ErrBlocked, address)
	}
	if isReserved(ap.Addr()) {
		return fmt.Errorf("%w: %s is private or reserved", ErrBlocked, ap.Addr())
	}
	return nil
}

// ControlFor returns Control when block is set and nil otherwise.
func ControlFor(block bool) func(string, string, syscall.RawConn) error {
	if !block {
		return nil
	}
	return Control
}
