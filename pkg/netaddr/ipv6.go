package netaddr

import (
	"fmt"
	"net/netip"
)

// IPv6Size is the wire width of an IPv6 address.
const IPv6Size = 16

// IPv6Address is an IPv6 address in network byte order.
type IPv6Address [IPv6Size]byte

// ParseIPv6 parses an IPv6 address in any textual form netip accepts.
func ParseIPv6(s string) (IPv6Address, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPv6Address{}, err
	}
	if !addr.Is6() {
		return IPv6Address{}, fmt.Errorf("netaddr: %q is not an IPv6 address", s)
	}
	return IPv6Address(addr.As16()), nil
}

// IPv6FromAddr converts a netip.Addr; IPv4 addresses are returned in mapped form.
func IPv6FromAddr(addr netip.Addr) IPv6Address {
	return IPv6Address(addr.As16())
}

// Len returns the wire width, always IPv6Size.
func (a IPv6Address) Len() int { return IPv6Size }

// AsSlice returns the sixteen address bytes in network order.
func (a IPv6Address) AsSlice() []byte { return a[:] }

// SetBytes copies the first IPv6Size bytes of b into a.
func (a *IPv6Address) SetBytes(b []byte) { copy(a[:], b) }

// Addr converts a to a netip.Addr. Mapped IPv4 addresses stay in IPv6 form.
func (a IPv6Address) Addr() netip.Addr { return netip.AddrFrom16(a) }

// String returns the RFC 5952 text form.
func (a IPv6Address) String() string { return a.Addr().String() }
