package memory_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/netaddr"
)

func TestIPv6AddressRoundTrip(t *testing.T) {
	want, err := netaddr.ParseIPv6("2001:db8::ff00:42:8329")
	require.NoError(t, err)

	buf := make([]byte, netaddr.IPv6Size)
	w := memory.NewWriteCursor(buf)
	require.NoError(t, w.WriteAddress(want))
	assert.Equal(t, netaddr.IPv6Size, w.WrittenSize())

	got, err := memory.ReadAddress[netaddr.IPv6Address](memory.NewReadCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, netip.MustParseAddr("2001:db8::ff00:42:8329"), got.Addr())
}

func TestMixedAddressFields(t *testing.T) {
	mac, err := netaddr.ParseHW("00:11:22:33:44:55")
	require.NoError(t, err)
	ip := netaddr.IPv4Address{10, 0, 0, 1}

	buf := make([]byte, netaddr.HWSize+netaddr.IPv4Size)
	w := memory.NewWriteCursor(buf)
	require.NoError(t, w.WriteAddress(mac))
	require.NoError(t, w.WriteAddress(ip))
	assert.ErrorIs(t, w.WriteAddress(ip), memory.ErrSerializationCapacityExceeded)

	r := memory.NewReadCursor(buf)
	gotMAC, err := memory.ReadAddress[netaddr.HWAddress](r)
	require.NoError(t, err)
	gotIP, err := memory.ReadAddress[netaddr.IPv4Address](r)
	require.NoError(t, err)

	assert.Equal(t, mac, gotMAC)
	assert.Equal(t, "10.0.0.1", gotIP.String())

	_, err = memory.ReadAddress[netaddr.IPv4Address](r)
	assert.ErrorIs(t, err, memory.ErrMalformedInput)
}

func TestReadAddressShortLeavesCursor(t *testing.T) {
	r := memory.NewReadCursor(make([]byte, 15))
	_, err := memory.ReadAddress[netaddr.IPv6Address](r)
	assert.ErrorIs(t, err, memory.ErrMalformedInput)
	assert.Equal(t, 15, r.Remaining())
}
