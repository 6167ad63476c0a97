package encoder

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/core/decoder"
	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/netaddr"
)

var (
	macA = netaddr.HWAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x0A}
	macB = netaddr.HWAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x0B}
)

func mustIPv4(t *testing.T, s string) netaddr.IPv4Address {
	t.Helper()
	a, err := netaddr.ParseIPv4(s)
	require.NoError(t, err)
	return a
}

func mustIPv6(t *testing.T, s string) netaddr.IPv6Address {
	t.Helper()
	a, err := netaddr.ParseIPv6(s)
	require.NoError(t, err)
	return a
}

// reference serializes the same stack with gopacket.
func reference(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func sipUDPv4(t *testing.T) *Packet {
	return &Packet{
		Ethernet: &Ethernet{Dst: macB, Src: macA, VLAN: 100},
		IPv4:     &IPv4{Src: mustIPv4(t, "10.0.0.1"), Dst: mustIPv4(t, "10.0.0.2"), ID: 0x1234, TTL: 64, DontFragment: true},
		UDP:      &UDP{SrcPort: 5060, DstPort: 5080},
		Payload:  []byte("INVITE sip:bob@example.com SIP/2.0\r\n"),
	}
}

func TestSerializeUDPv4MatchesGopacket(t *testing.T) {
	pkt := sipUDPv4(t)
	got, err := pkt.Serialize()
	require.NoError(t, err)
	assert.Len(t, got, pkt.Len())

	ip := &layers.IPv4{
		Version:  4,
		Id:       0x1234,
		TTL:      64,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1).To4(),
		DstIP:    net.IPv4(10, 0, 0, 2).To4(),
	}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5080}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	want := reference(t,
		&layers.Ethernet{SrcMAC: macA.HardwareAddr(), DstMAC: macB.HardwareAddr(), EthernetType: layers.EthernetTypeDot1Q},
		&layers.Dot1Q{VLANIdentifier: 100, Type: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload(pkt.Payload),
	)
	assert.Equal(t, want, got)
}

func TestSerializeIPv4HeaderChecksum(t *testing.T) {
	pkt := sipUDPv4(t)
	pkt.Ethernet = nil
	b, err := pkt.Serialize()
	require.NoError(t, err)

	h, err := ipv4.ParseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, pkt.Len(), h.TotalLen)
	assert.Equal(t, 0x1234, h.ID)
	assert.Equal(t, ipv4.DontFragment, h.Flags)
	assert.Equal(t, int(core.ProtocolUDP), h.Protocol)

	// A valid header sums to zero
	assert.Equal(t, uint16(0), foldChecksum(onesComplementSum(0, b[:ipv4HeaderLen])))
}

func TestSerializeTCPv6MatchesGopacket(t *testing.T) {
	pkt := &Packet{
		Ethernet: &Ethernet{Dst: macB, Src: macA},
		IPv6: &IPv6{
			Src:          mustIPv6(t, "2001:db8::1"),
			Dst:          mustIPv6(t, "2001:db8::2"),
			TrafficClass: 0xB8,
			FlowLabel:    0x12345,
			HopLimit:     32,
		},
		TCP:     &TCP{SrcPort: 33000, DstPort: 5061, Seq: 7, Ack: 9, Flags: FlagPSH | FlagACK, Window: 4096},
		Payload: []byte("REGISTER"),
	}
	got, err := pkt.Serialize()
	require.NoError(t, err)

	ip := &layers.IPv6{
		Version:      6,
		TrafficClass: 0xB8,
		FlowLabel:    0x12345,
		HopLimit:     32,
		NextHeader:   layers.IPProtocolTCP,
		SrcIP:        net.ParseIP("2001:db8::1"),
		DstIP:        net.ParseIP("2001:db8::2"),
	}
	tcp := &layers.TCP{SrcPort: 33000, DstPort: 5061, Seq: 7, Ack: 9, PSH: true, ACK: true, Window: 4096}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	want := reference(t,
		&layers.Ethernet{SrcMAC: macA.HardwareAddr(), DstMAC: macB.HardwareAddr(), EthernetType: layers.EthernetTypeIPv6},
		ip, tcp, gopacket.Payload(pkt.Payload),
	)
	assert.Equal(t, want, got)
}

func TestSerializeOddLengthChecksum(t *testing.T) {
	pkt := sipUDPv4(t)
	pkt.Payload = []byte("odd")
	got, err := pkt.Serialize()
	require.NoError(t, err)

	decoded := gopacket.NewPacket(got, layers.LayerTypeEthernet, gopacket.Default)
	udp, ok := decoded.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	ip := decoded.Layer(layers.LayerTypeIPv4).(*layers.IPv4)

	// Recompute with gopacket and compare
	check := &layers.UDP{SrcPort: udp.SrcPort, DstPort: udp.DstPort}
	require.NoError(t, check.SetNetworkLayerForChecksum(ip))
	reference(t, ip, check, gopacket.Payload("odd"))
	assert.Equal(t, check.Checksum, udp.Checksum)
}

func TestSerializeRoundTripThroughDecoder(t *testing.T) {
	pkt := sipUDPv4(t)
	b, err := pkt.Serialize()
	require.NoError(t, err)

	decoded, err := decoder.NewStandardDecoder(decoder.Config{}).Decode(core.RawPacket{Data: b})
	require.NoError(t, err)
	assert.Equal(t, macA, decoded.Ethernet.SrcMAC)
	assert.Equal(t, []uint16{100}, decoded.Ethernet.VLANs)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), decoded.IP.DstIP)
	assert.Equal(t, uint8(64), decoded.IP.TTL)
	assert.Equal(t, uint16(5080), decoded.Transport.DstPort)
	assert.Equal(t, uint16(udpHeaderLen+len(pkt.Payload)), decoded.Transport.Length)
	assert.Equal(t, pkt.Payload, decoded.Payload)
}

func TestSerializeRawEthernetPayload(t *testing.T) {
	pkt := &Packet{
		Ethernet: &Ethernet{Dst: netaddr.BroadcastHW, Src: macA, EtherType: core.EtherTypeARP},
		Payload:  []byte{0x00, 0x01},
	}
	b, err := pkt.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x0A,
		0x08, 0x06,
		0x00, 0x01,
	}, b)
}

func TestSerializeToBufferTooSmall(t *testing.T) {
	pkt := sipUDPv4(t)
	for _, size := range []int{0, 10, pkt.Len() - 1} {
		n, err := pkt.SerializeTo(make([]byte, size))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, core.ErrBufferTooSmall)
		assert.ErrorIs(t, err, memory.ErrSerializationCapacityExceeded)
	}

	// Extra room is left untouched
	buf := make([]byte, pkt.Len()+4)
	n, err := pkt.SerializeTo(buf)
	require.NoError(t, err)
	assert.Equal(t, pkt.Len(), n)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[n:])
}

func TestSerializeInvalidStacks(t *testing.T) {
	v4 := &IPv4{TTL: 1}
	tests := []struct {
		name string
		pkt  *Packet
	}{
		{"two network layers", &Packet{IPv4: v4, IPv6: &IPv6{}}},
		{"two transport layers", &Packet{IPv4: v4, UDP: &UDP{}, TCP: &TCP{}}},
		{"transport without ip", &Packet{UDP: &UDP{}}},
		{"ethernet without ethertype", &Packet{Ethernet: &Ethernet{}}},
		{"oversized ipv4 payload", &Packet{IPv4: v4, UDP: &UDP{}, Payload: make([]byte, 0xFFFF)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pkt.Serialize()
			assert.ErrorIs(t, err, core.ErrInvalidHeader)
		})
	}
}

func TestChecksumHelpers(t *testing.T) {
	// RFC 1071 example
	data := []byte{0x00, 0x01, 0xF2, 0x03, 0xF4, 0xF5, 0xF6, 0xF7}
	assert.Equal(t, uint32(0x2DDF0), onesComplementSum(0, data))
	assert.Equal(t, ^uint16(0xDDF2), foldChecksum(0x2DDF0))
}
