// Package encoder serializes Ethernet/IP/TCP/UDP packets into caller-owned
// buffers through a memory.WriteCursor.
package encoder

import "firestige.xyz/wire/pkg/netaddr"

// TCP flags
const (
	FlagFIN uint8 = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

const (
	ethernetHeaderLen = 14
	vlanTagLen        = 4
	ipv4HeaderLen     = 20
	ipv6HeaderLen     = 40
	udpHeaderLen      = 8
	tcpHeaderLen      = 20
	maxIPPayloadLen   = 0xFFFF
)

// Ethernet is an Ethernet II header.
type Ethernet struct {
	Dst netaddr.HWAddress
	Src netaddr.HWAddress
	// VLAN adds one 802.1Q tag when non-zero.
	VLAN uint16
	// EtherType is derived from the network layer when zero.
	EtherType uint16
}

// IPv4 is an IPv4 header without options.
type IPv4 struct {
	Src          netaddr.IPv4Address
	Dst          netaddr.IPv4Address
	TOS          uint8
	ID           uint16
	TTL          uint8
	DontFragment bool
	// Protocol is derived from the transport layer when zero.
	Protocol uint8
}

// IPv6 is a fixed IPv6 header. Extension headers are not produced.
type IPv6 struct {
	Src          netaddr.IPv6Address
	Dst          netaddr.IPv6Address
	TrafficClass uint8
	FlowLabel    uint32
	HopLimit     uint8
	// NextHeader is derived from the transport layer when zero.
	NextHeader uint8
}

// UDP is a UDP header; length and checksum are computed.
type UDP struct {
	SrcPort uint16
	DstPort uint16
}

// TCP is a TCP header without options; the checksum is computed.
type TCP struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint8
	Window  uint16
	Urgent  uint16
}
