// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

const (
	// Well-known UDP ports
	vxlanPort  = 4789
	genevePort = 6081

	// GRE and Geneve protocol type for Transparent Ethernet Bridging
	etherTypeTEB = 0x6558
)

// decapsulate strips a tunnel header from the payload left in r and decodes
// the inner IP and transport headers. On success r is moved onto the inner
// payload. On failure r is left as it was and ok is false: a payload that
// only looks like a tunnel is still a valid outer payload.
func decapsulate(r *memory.ReadCursor, outer core.IPHeader, transport core.TransportHeader, maxVLANs int) (inner core.IPHeader, innerTransport core.TransportHeader, ok bool) {
	sub := memory.NewReadCursor(r.Bytes())

	var err error
	switch {
	case outer.Protocol == core.ProtocolGRE:
		err = decodeGRE(sub, maxVLANs)
	case outer.Protocol == core.ProtocolIPIP, outer.Protocol == core.ProtocolIPv6:
		// The inner IP header follows directly.
	case transport.Protocol == core.ProtocolUDP && transport.DstPort == vxlanPort:
		err = decodeVXLAN(sub, maxVLANs)
	case transport.Protocol == core.ProtocolUDP && transport.DstPort == genevePort:
		err = decodeGeneve(sub, maxVLANs)
	default:
		return inner, innerTransport, false
	}
	if err != nil {
		return inner, innerTransport, false
	}

	if inner, err = decodeIP(sub); err != nil {
		return inner, innerTransport, false
	}
	if innerTransport, err = decodeTransport(sub, inner.Protocol); err != nil {
		return inner, innerTransport, false
	}

	*r = *sub
	return inner, innerTransport, true
}

// decodeVXLAN consumes the VXLAN header and the inner Ethernet header.
//
//	| flags (8) | reserved (24) | VNI (24) | reserved (8) |
func decodeVXLAN(r *memory.ReadCursor, maxVLANs int) error {
	f := fieldReader{r: r}
	flags := f.u8()
	f.skip(7)
	if f.err != nil {
		return truncated("vxlan header", f.err)
	}
	// I flag: the VNI is valid
	if flags&0x08 == 0 {
		return fmt.Errorf("%w: vxlan I flag not set", core.ErrInvalidHeader)
	}
	return decodeInnerEthernet(r, maxVLANs)
}

// decodeGeneve consumes the Geneve header, its options and, for bridged
// payloads, the inner Ethernet header.
func decodeGeneve(r *memory.ReadCursor, maxVLANs int) error {
	f := fieldReader{r: r}
	verOptLen := f.u8()
	f.skip(1) // O and C flags
	protocol := f.u16()
	f.skip(4) // VNI, reserved
	if f.err != nil {
		return truncated("geneve header", f.err)
	}
	if version := verOptLen >> 6; version != 0 {
		return fmt.Errorf("%w: geneve version %d", core.ErrUnsupportedProto, version)
	}
	// Option length is in 4-byte multiples
	if err := r.Skip(int(verOptLen&0x3F) * 4); err != nil {
		return truncated("geneve options", err)
	}
	return decodeTunnelPayloadType(r, protocol, maxVLANs)
}

// decodeGRE consumes a GRE header (RFC 2784 with RFC 2890 key and sequence).
func decodeGRE(r *memory.ReadCursor, maxVLANs int) error {
	f := fieldReader{r: r}
	flags := f.u16()
	protocol := f.u16()
	if f.err != nil {
		return truncated("gre header", f.err)
	}
	if version := flags & 0x0007; version != 0 {
		return fmt.Errorf("%w: gre version %d", core.ErrUnsupportedProto, version)
	}

	if flags&0x8000 != 0 { // C: checksum + reserved1
		f.skip(4)
	}
	if flags&0x2000 != 0 { // K: key
		f.skip(4)
	}
	if flags&0x1000 != 0 { // S: sequence number
		f.skip(4)
	}
	if f.err != nil {
		return truncated("gre optional fields", f.err)
	}
	return decodeTunnelPayloadType(r, protocol, maxVLANs)
}

// decodeTunnelPayloadType handles the EtherType carried by GRE and Geneve.
func decodeTunnelPayloadType(r *memory.ReadCursor, protocol uint16, maxVLANs int) error {
	switch protocol {
	case core.EtherTypeIPv4, core.EtherTypeIPv6:
		return nil
	case etherTypeTEB:
		return decodeInnerEthernet(r, maxVLANs)
	default:
		return fmt.Errorf("%w: tunnel payload type 0x%04x", core.ErrUnsupportedProto, protocol)
	}
}

func decodeInnerEthernet(r *memory.ReadCursor, maxVLANs int) error {
	eth, err := decodeEthernet(r, maxVLANs)
	if err != nil {
		return err
	}
	if !isIPEtherType(eth.EtherType) {
		return fmt.Errorf("%w: inner ethertype 0x%04x", core.ErrUnsupportedProto, eth.EtherType)
	}
	return nil
}
