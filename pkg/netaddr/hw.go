package netaddr

import (
	"fmt"
	"net"
)

// HWSize is the wire width of an Ethernet hardware address.
const HWSize = 6

// HWAddress is an EUI-48 hardware address.
type HWAddress [HWSize]byte

// BroadcastHW is ff:ff:ff:ff:ff:ff.
var BroadcastHW = HWAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseHW parses colon, hyphen or dot separated EUI-48 notation.
func ParseHW(s string) (HWAddress, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return HWAddress{}, err
	}
	if len(mac) != HWSize {
		return HWAddress{}, fmt.Errorf("netaddr: %q is not a 48-bit hardware address", s)
	}
	var a HWAddress
	copy(a[:], mac)
	return a, nil
}

// Len returns the wire width, always HWSize.
func (a HWAddress) Len() int { return HWSize }

// AsSlice returns the six address bytes in transmission order.
func (a HWAddress) AsSlice() []byte { return a[:] }

// SetBytes copies the first HWSize bytes of b into a.
func (a *HWAddress) SetBytes(b []byte) { copy(a[:], b) }

// HardwareAddr returns a copy usable with the net package.
func (a HWAddress) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), a[:]...))
}

// String returns the colon separated lower-case form.
func (a HWAddress) String() string { return a.HardwareAddr().String() }

// IsBroadcast reports whether a is ff:ff:ff:ff:ff:ff.
func (a HWAddress) IsBroadcast() bool { return a == BroadcastHW }

// IsMulticast reports whether the group bit is set. Broadcast is multicast too.
func (a HWAddress) IsMulticast() bool { return a[0]&0x01 != 0 }
