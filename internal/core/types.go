// Package core defines decoded header types shared by the decoder, encoder and reporters.
package core

import (
	"net/netip"

	"firestige.xyz/wire/pkg/netaddr"
)

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	DstMAC    netaddr.HWAddress
	SrcMAC    netaddr.HWAddress
	EtherType uint16   // 0x0800=IPv4, 0x86DD=IPv6, after any VLAN tags
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ scenarios have 2)
}

// IPHeader represents L3 IP header (IPv4/IPv6).
type IPHeader struct {
	Version    uint8
	SrcIP      netip.Addr
	DstIP      netip.Addr
	Protocol   uint8  // TCP=6, UDP=17, SCTP=132; IPv6: first non-extension next header
	TTL        uint8  // IPv6 hop limit
	TotalLen   int    // IPv6: fixed header + payload length, up to 65575
	HeaderLen  int    // IPv4 IHL in bytes; IPv6 fixed header + extension headers
	ID         uint32 // IPv4 identification or IPv6 fragment header identification
	Fragment   bool   // more-fragments set or non-zero fragment offset
	FragOffset uint16 // fragment offset in bytes
	// Inner IP addresses after tunnel decapsulation (zero value if not tunneled)
	InnerSrcIP netip.Addr
	InnerDstIP netip.Addr
}

// TransportHeader represents L4 transport layer header (TCP/UDP).
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	// TCP-specific fields (only populated for TCP)
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32
	Window   uint16
	// UDP length field, header included (only populated for UDP)
	Length uint16
}

// IP protocol numbers used across layers.
const (
	ProtocolIPIP   uint8 = 4
	ProtocolTCP    uint8 = 6
	ProtocolUDP    uint8 = 17
	ProtocolIPv6   uint8 = 41
	ProtocolGRE    uint8 = 47
	ProtocolICMPv6 uint8 = 58
	ProtocolSCTP   uint8 = 132
)

// EtherType values.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeIPv6 uint16 = 0x86DD
	EtherTypeQinQ uint16 = 0x88A8
)
