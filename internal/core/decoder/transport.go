// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeTransport decodes transport layer header (TCP/UDP). On return r holds
// the transport payload. Other protocols are left undecoded.
func decodeTransport(r *memory.ReadCursor, protocol uint8) (core.TransportHeader, error) {
	switch protocol {
	case core.ProtocolTCP:
		return decodeTCP(r)
	case core.ProtocolUDP:
		return decodeUDP(r)
	default:
		// Unsupported transport protocol (e.g., SCTP, ICMP)
		return core.TransportHeader{Protocol: protocol}, nil
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(r *memory.ReadCursor) (core.TransportHeader, error) {
	f := fieldReader{r: r}
	transport := core.TransportHeader{Protocol: core.ProtocolUDP}
	transport.SrcPort = f.u16()
	transport.DstPort = f.u16()
	transport.Length = f.u16() // includes header and data
	f.skip(2)                  // checksum
	if f.err != nil {
		return core.TransportHeader{}, truncated("udp header", f.err)
	}

	if dataLen := int(transport.Length) - udpHeaderLen; dataLen >= 0 && dataLen <= r.Remaining() {
		r.Truncate(dataLen)
	}
	return transport, nil
}

// decodeTCP decodes TCP header.
func decodeTCP(r *memory.ReadCursor) (core.TransportHeader, error) {
	f := fieldReader{r: r}
	transport := core.TransportHeader{Protocol: core.ProtocolTCP}
	transport.SrcPort = f.u16()
	transport.DstPort = f.u16()
	transport.SeqNum = f.u32()
	transport.AckNum = f.u32()
	// | data offset (4 bits) | reserved (6 bits) | URG ACK PSH RST SYN FIN |
	offsetFlags := f.u16()
	transport.Window = f.u16()
	f.skip(4) // checksum, urgent pointer
	if f.err != nil {
		return core.TransportHeader{}, truncated("tcp header", f.err)
	}
	transport.TCPFlags = uint8(offsetFlags & 0x3F)

	headerLen := int(offsetFlags>>12) * 4 // Data offset is in 32-bit words
	if headerLen < tcpHeaderMinLen {
		return transport, fmt.Errorf("%w: tcp data offset %d bytes", core.ErrInvalidHeader, headerLen)
	}
	if err := r.Skip(headerLen - tcpHeaderMinLen); err != nil {
		return transport, truncated("tcp options", err)
	}
	return transport, nil
}
