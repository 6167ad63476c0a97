// Package core defines core data structures.
package core

import (
	"net/netip"
	"time"
)

// RawPacket is a captured frame. Data is borrowed from the source and must
// not be retained past the next read.
type RawPacket struct {
	Data           []byte    // Raw frame data, zero-copy slice
	Timestamp      time.Time // Capture timestamp
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	InterfaceIndex int       // Network interface index
}

// DecodedPacket is the result of L2-L4 protocol stack decoding.
type DecodedPacket struct {
	Timestamp  time.Time
	Ethernet   EthernetHeader
	IP         IPHeader
	Transport  TransportHeader
	Payload    []byte // Application layer payload, zero-copy slice
	CaptureLen uint32
	OrigLen    uint32
	Tunneled   bool // Transport and IP.Inner* describe the inner packet of a tunnel
}

// OutputPacket is what reporters consume.
type OutputPacket struct {
	NodeID    string
	Timestamp time.Time

	// Network context
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	// Labels holds parser annotations
	Labels Labels

	PayloadType string // e.g. "sip", "rtp", "raw"
	RawPayload  []byte
}

// NewOutputPacket builds the reporter envelope for a decoded packet. Tunneled
// packets are reported with their inner addresses. The payload is copied so
// the result outlives the capture buffer.
func NewOutputPacket(nodeID string, pkt *DecodedPacket) *OutputPacket {
	out := &OutputPacket{
		NodeID:      nodeID,
		Timestamp:   pkt.Timestamp,
		SrcIP:       pkt.IP.SrcIP,
		DstIP:       pkt.IP.DstIP,
		SrcPort:     pkt.Transport.SrcPort,
		DstPort:     pkt.Transport.DstPort,
		Protocol:    pkt.Transport.Protocol,
		PayloadType: "raw",
	}
	if pkt.Tunneled {
		out.SrcIP, out.DstIP = pkt.IP.InnerSrcIP, pkt.IP.InnerDstIP
	}
	if out.Protocol == 0 {
		out.Protocol = pkt.IP.Protocol
	}
	if len(pkt.Payload) > 0 {
		out.RawPayload = append([]byte(nil), pkt.Payload...)
	}
	return out
}
