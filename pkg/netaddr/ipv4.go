package netaddr

import (
	"fmt"
	"net/netip"
)

// IPv4Size is the wire width of an IPv4 address.
const IPv4Size = 4

// IPv4Address is an IPv4 address in network byte order.
type IPv4Address [IPv4Size]byte

// ParseIPv4 parses a dotted-quad address.
func ParseIPv4(s string) (IPv4Address, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPv4Address{}, err
	}
	if !addr.Is4() {
		return IPv4Address{}, fmt.Errorf("netaddr: %q is not an IPv4 address", s)
	}
	return IPv4Address(addr.As4()), nil
}

// IPv4FromAddr converts a netip.Addr. IPv4-mapped IPv6 addresses are unmapped.
func IPv4FromAddr(addr netip.Addr) (IPv4Address, bool) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return IPv4Address{}, false
	}
	return IPv4Address(addr.As4()), true
}

// Len returns the wire width, always IPv4Size.
func (a IPv4Address) Len() int { return IPv4Size }

// AsSlice returns the four address bytes in network order.
func (a IPv4Address) AsSlice() []byte { return a[:] }

// SetBytes copies the first IPv4Size bytes of b into a.
func (a *IPv4Address) SetBytes(b []byte) { copy(a[:], b) }

// Addr converts a to a netip.Addr.
func (a IPv4Address) Addr() netip.Addr { return netip.AddrFrom4(a) }

// String returns the dotted-quad form.
func (a IPv4Address) String() string { return a.Addr().String() }

// IsUnspecified reports whether a is 0.0.0.0.
func (a IPv4Address) IsUnspecified() bool { return a == IPv4Address{} }
