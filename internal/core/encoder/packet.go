package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/metrics"
	"firestige.xyz/wire/pkg/memory"
)

const metricsFormat = "packet"

// Packet is a stack of layers to serialize, outermost first. Nil layers are
// omitted.
type Packet struct {
	Ethernet *Ethernet
	IPv4     *IPv4
	IPv6     *IPv6
	UDP      *UDP
	TCP      *TCP
	Payload  []byte
}

// Len returns the serialized size of p.
func (p *Packet) Len() int {
	n := p.transportLen()
	switch {
	case p.IPv4 != nil:
		n += ipv4HeaderLen
	case p.IPv6 != nil:
		n += ipv6HeaderLen
	}
	if p.Ethernet != nil {
		n += ethernetHeaderLen
		if p.Ethernet.VLAN != 0 {
			n += vlanTagLen
		}
	}
	return n
}

func (p *Packet) transportLen() int {
	n := len(p.Payload)
	switch {
	case p.UDP != nil:
		n += udpHeaderLen
	case p.TCP != nil:
		n += tcpHeaderLen
	}
	return n
}

func (p *Packet) validate() error {
	if p.IPv4 != nil && p.IPv6 != nil {
		return fmt.Errorf("%w: both IPv4 and IPv6 layers set", core.ErrInvalidHeader)
	}
	if p.UDP != nil && p.TCP != nil {
		return fmt.Errorf("%w: both UDP and TCP layers set", core.ErrInvalidHeader)
	}
	hasIP := p.IPv4 != nil || p.IPv6 != nil
	if (p.UDP != nil || p.TCP != nil) && !hasIP {
		return fmt.Errorf("%w: transport layer without a network layer", core.ErrInvalidHeader)
	}
	if p.IPv4 != nil && p.transportLen() > maxIPPayloadLen-ipv4HeaderLen {
		return fmt.Errorf("%w: ipv4 payload of %d bytes", core.ErrInvalidHeader, p.transportLen())
	}
	if p.IPv6 != nil && p.transportLen() > maxIPPayloadLen {
		return fmt.Errorf("%w: ipv6 payload of %d bytes", core.ErrInvalidHeader, p.transportLen())
	}
	if p.Ethernet != nil && !hasIP && p.Ethernet.EtherType == 0 {
		return fmt.Errorf("%w: ethertype required without a network layer", core.ErrInvalidHeader)
	}
	return nil
}

// Serialize returns p in a newly allocated buffer of exactly Len() bytes.
func (p *Packet) Serialize() ([]byte, error) {
	buf := make([]byte, p.Len())
	n, err := p.SerializeTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// SerializeTo writes p at the start of buf and returns the number of bytes
// written. Length fields and checksums are filled in. If buf is shorter
// than Len() the error wraps core.ErrBufferTooSmall and
// memory.ErrSerializationCapacityExceeded, and buf holds a partial packet.
func (p *Packet) SerializeTo(buf []byte) (n int, err error) {
	defer func() { metrics.ObserveEncode(metricsFormat, err) }()

	if err := p.validate(); err != nil {
		return 0, err
	}

	w := memory.NewWriteCursor(buf)
	if err := p.write(w); err != nil {
		if errors.Is(err, memory.ErrSerializationCapacityExceeded) {
			return 0, fmt.Errorf("%w: need %d bytes, have %d: %w", core.ErrBufferTooSmall, p.Len(), len(buf), err)
		}
		return 0, err
	}
	return w.WrittenSize(), nil
}

func (p *Packet) write(w *memory.WriteCursor) error {
	if p.Ethernet != nil {
		if err := p.writeEthernet(w); err != nil {
			return err
		}
	}

	switch {
	case p.IPv4 != nil:
		if err := p.writeIPv4(w); err != nil {
			return err
		}
	case p.IPv6 != nil:
		if err := p.writeIPv6(w); err != nil {
			return err
		}
	}

	switch {
	case p.UDP != nil:
		return p.writeUDP(w)
	case p.TCP != nil:
		return p.writeTCP(w)
	default:
		return w.WriteBytes(p.Payload)
	}
}

func (p *Packet) writeEthernet(w *memory.WriteCursor) error {
	eth := p.Ethernet
	etherType := eth.EtherType
	switch {
	case p.IPv4 != nil:
		etherType = core.EtherTypeIPv4
	case p.IPv6 != nil:
		etherType = core.EtherTypeIPv6
	}

	if err := w.WriteAddress(eth.Dst); err != nil {
		return err
	}
	if err := w.WriteAddress(eth.Src); err != nil {
		return err
	}
	if eth.VLAN != 0 {
		if err := w.WriteUint16BE(core.EtherTypeVLAN); err != nil {
			return err
		}
		if err := w.WriteUint16BE(eth.VLAN & 0x0FFF); err != nil {
			return err
		}
	}
	return w.WriteUint16BE(etherType)
}

func (p *Packet) transportProtocol(fallback uint8) uint8 {
	switch {
	case p.UDP != nil:
		return core.ProtocolUDP
	case p.TCP != nil:
		return core.ProtocolTCP
	default:
		return fallback
	}
}

func (p *Packet) writeIPv4(w *memory.WriteCursor) error {
	ip := p.IPv4
	start := w.WrittenSize()

	var flags uint16
	if ip.DontFragment {
		flags = 0x4000
	}

	if err := w.WriteUint8(0x45); err != nil { // Version 4, IHL 5
		return err
	}
	if err := w.WriteUint8(ip.TOS); err != nil {
		return err
	}
	if err := w.WriteUint16BE(uint16(ipv4HeaderLen + p.transportLen())); err != nil {
		return err
	}
	if err := w.WriteUint16BE(ip.ID); err != nil {
		return err
	}
	if err := w.WriteUint16BE(flags); err != nil {
		return err
	}
	if err := w.WriteUint8(ip.TTL); err != nil {
		return err
	}
	if err := w.WriteUint8(p.transportProtocol(ip.Protocol)); err != nil {
		return err
	}
	checksum, err := w.Reserve(2)
	if err != nil {
		return err
	}
	clear(checksum)
	if err := w.WriteAddress(ip.Src); err != nil {
		return err
	}
	if err := w.WriteAddress(ip.Dst); err != nil {
		return err
	}

	header := w.Bytes()[start:]
	binary.BigEndian.PutUint16(checksum, foldChecksum(onesComplementSum(0, header)))
	return nil
}

func (p *Packet) writeIPv6(w *memory.WriteCursor) error {
	ip := p.IPv6
	first := uint32(6)<<28 | uint32(ip.TrafficClass)<<20 | ip.FlowLabel&0xFFFFF

	if err := w.WriteUint32BE(first); err != nil {
		return err
	}
	if err := w.WriteUint16BE(uint16(p.transportLen())); err != nil {
		return err
	}
	if err := w.WriteUint8(p.transportProtocol(ip.NextHeader)); err != nil {
		return err
	}
	if err := w.WriteUint8(ip.HopLimit); err != nil {
		return err
	}
	if err := w.WriteAddress(ip.Src); err != nil {
		return err
	}
	return w.WriteAddress(ip.Dst)
}

func (p *Packet) writeUDP(w *memory.WriteCursor) error {
	udp := p.UDP
	start := w.WrittenSize()
	length := p.transportLen()

	if err := w.WriteUint16BE(udp.SrcPort); err != nil {
		return err
	}
	if err := w.WriteUint16BE(udp.DstPort); err != nil {
		return err
	}
	if err := w.WriteUint16BE(uint16(length)); err != nil {
		return err
	}
	checksum, err := w.Reserve(2)
	if err != nil {
		return err
	}
	clear(checksum)
	if err := w.WriteBytes(p.Payload); err != nil {
		return err
	}

	sum := foldChecksum(onesComplementSum(p.pseudoHeaderSum(core.ProtocolUDP, length), w.Bytes()[start:]))
	if sum == 0 {
		// Zero means "no checksum" in UDP
		sum = 0xFFFF
	}
	binary.BigEndian.PutUint16(checksum, sum)
	return nil
}

func (p *Packet) writeTCP(w *memory.WriteCursor) error {
	tcp := p.TCP
	start := w.WrittenSize()

	if err := w.WriteUint16BE(tcp.SrcPort); err != nil {
		return err
	}
	if err := w.WriteUint16BE(tcp.DstPort); err != nil {
		return err
	}
	if err := w.WriteUint32BE(tcp.Seq); err != nil {
		return err
	}
	if err := w.WriteUint32BE(tcp.Ack); err != nil {
		return err
	}
	// Data offset 5 words, no options
	if err := w.WriteUint16BE(uint16(tcpHeaderLen/4)<<12 | uint16(tcp.Flags&0x3F)); err != nil {
		return err
	}
	if err := w.WriteUint16BE(tcp.Window); err != nil {
		return err
	}
	checksum, err := w.Reserve(2)
	if err != nil {
		return err
	}
	clear(checksum)
	if err := w.WriteUint16BE(tcp.Urgent); err != nil {
		return err
	}
	if err := w.WriteBytes(p.Payload); err != nil {
		return err
	}

	segment := w.Bytes()[start:]
	sum := foldChecksum(onesComplementSum(p.pseudoHeaderSum(core.ProtocolTCP, len(segment)), segment))
	binary.BigEndian.PutUint16(checksum, sum)
	return nil
}
