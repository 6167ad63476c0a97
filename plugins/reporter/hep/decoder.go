package hep

import (
	"bytes"
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/netaddr"
)

// Chunk is a chunk the decoder does not map onto a Frame field.
type Chunk struct {
	Vendor uint16
	Type   uint16
	Value  []byte
}

// Frame is a decoded HEPv3 frame. Packet carries the network context, the
// payload and the labels that the chunks map back to.
type Frame struct {
	Packet        *core.OutputPacket
	CaptureID     uint32
	AuthKey       string
	NodeName      string
	CorrelationID string
	From          string
	To            string
	ProtoType     uint8
	Unknown       []Chunk
}

// Decode parses a HEPv3 frame. Bytes past the declared total length are
// ignored. Values are copied, so the result does not alias frame.
func Decode(frame []byte) (*Frame, error) {
	r := memory.NewReadCursor(frame)

	magic, err := r.Slice(len(hepMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: hep frame header: %w", core.ErrPacketTooShort, err)
	}
	if string(magic) != hepMagic {
		return nil, fmt.Errorf("%w: hep magic %q", core.ErrInvalidHeader, magic)
	}
	total, err := r.ReadUint16BE()
	if err != nil {
		return nil, fmt.Errorf("%w: hep frame header: %w", core.ErrPacketTooShort, err)
	}
	if total < frameHeaderLen {
		return nil, fmt.Errorf("%w: hep total length %d", core.ErrInvalidHeader, total)
	}
	if int(total) > len(frame) {
		return nil, fmt.Errorf("%w: hep total length %d, have %d bytes: %w",
			core.ErrPacketTooShort, total, len(frame), memory.ErrMalformedInput)
	}
	r.Truncate(int(total) - frameHeaderLen)

	f := &Frame{Packet: &core.OutputPacket{Labels: core.Labels{}}}
	var sec, usec uint32
	var hasTime bool

	for r.HasRemaining() {
		vendor, typ, value, err := readChunk(r)
		if err != nil {
			return nil, err
		}
		if vendor != vendorHOMER {
			f.Unknown = append(f.Unknown, Chunk{Vendor: vendor, Type: typ, Value: bytes.Clone(value)})
			continue
		}

		switch typ {
		case chunkTimeSec:
			sec, err = chunkUint32(value)
			hasTime = true
		case chunkTimeUsec:
			usec, err = chunkUint32(value)
		default:
			err = f.apply(typ, value)
		}
		if err != nil {
			return nil, fmt.Errorf("hep chunk %d: %w", typ, err)
		}
	}

	if hasTime {
		f.Packet.Timestamp = time.Unix(int64(sec), int64(usec)*1_000).UTC()
	}
	f.Packet.PayloadType = payloadTypeName(f.ProtoType)
	f.fillLabels()
	return f, nil
}

// ReadFrame decodes the frame at the cursor and advances past it, so a stream
// of back-to-back frames can be walked with HasRemaining. The cursor does not
// move when the frame fails to decode.
func ReadFrame(r *memory.ReadCursor) (*Frame, error) {
	rest := r.Bytes()
	hdr := memory.NewReadCursor(rest)
	if err := hdr.Skip(len(hepMagic)); err != nil {
		return nil, fmt.Errorf("%w: hep frame header: %w", core.ErrPacketTooShort, err)
	}
	length, err := hdr.ReadUint16BE()
	if err != nil {
		return nil, fmt.Errorf("%w: hep frame header: %w", core.ErrPacketTooShort, err)
	}
	total := int(length)
	if total > len(rest) {
		total = len(rest)
	}

	f, err := Decode(rest[:total])
	if err != nil {
		return nil, err
	}
	_ = r.Skip(total)
	return f, nil
}

func readChunk(r *memory.ReadCursor) (vendor, typ uint16, value []byte, err error) {
	if !r.CanRead(chunkHeaderLen) {
		return 0, 0, nil, fmt.Errorf("%w: hep chunk header: %w", core.ErrPacketTooShort, memory.ErrMalformedInput)
	}
	// Cannot fail: the whole header was checked above.
	vendor, _ = r.ReadUint16BE()
	typ, _ = r.ReadUint16BE()
	length, _ := r.ReadUint16BE()

	if length < chunkHeaderLen {
		return 0, 0, nil, fmt.Errorf("%w: hep chunk %d length %d", core.ErrInvalidHeader, typ, length)
	}
	if value, err = r.Slice(int(length) - chunkHeaderLen); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: hep chunk %d value: %w", core.ErrPacketTooShort, typ, err)
	}
	return vendor, typ, value, nil
}

func (f *Frame) apply(typ uint16, value []byte) error {
	pkt := f.Packet
	var err error

	switch typ {
	case chunkIPFamily:
		_, err = chunkUint8(value)
	case chunkIPProto:
		pkt.Protocol, err = chunkUint8(value)
	case chunkSrcIPv4:
		pkt.SrcIP, err = chunkAddr[netaddr.IPv4Address](value)
	case chunkDstIPv4:
		pkt.DstIP, err = chunkAddr[netaddr.IPv4Address](value)
	case chunkSrcIPv6:
		pkt.SrcIP, err = chunkAddr[netaddr.IPv6Address](value)
	case chunkDstIPv6:
		pkt.DstIP, err = chunkAddr[netaddr.IPv6Address](value)
	case chunkSrcPort:
		pkt.SrcPort, err = chunkUint16(value)
	case chunkDstPort:
		pkt.DstPort, err = chunkUint16(value)
	case chunkProtoType:
		f.ProtoType, err = chunkUint8(value)
	case chunkCaptureID:
		f.CaptureID, err = chunkUint32(value)
	case chunkAuthKey:
		f.AuthKey = string(value)
	case chunkPayload:
		pkt.RawPayload = bytes.Clone(value)
	case chunkCorrID:
		f.CorrelationID = string(value)
	case chunkNodeName:
		f.NodeName = string(value)
		pkt.NodeID = f.NodeName
	case chunkFrom:
		f.From = string(value)
	case chunkTo:
		f.To = string(value)
	default:
		f.Unknown = append(f.Unknown, Chunk{Vendor: vendorHOMER, Type: typ, Value: bytes.Clone(value)})
	}
	return err
}

// fillLabels maps correlation and identity chunks back to parser labels.
func (f *Frame) fillLabels() {
	labels := f.Packet.Labels
	switch f.ProtoType {
	case protoTypeSIP:
		if f.CorrelationID != "" {
			labels[core.LabelSIPCallID] = f.CorrelationID
		}
		if f.From != "" {
			labels[core.LabelSIPFromURI] = f.From
		}
		if f.To != "" {
			labels[core.LabelSIPToURI] = f.To
		}
	case protoTypeRTP, protoTypeRTCP:
		if f.CorrelationID != "" {
			labels[core.LabelRTPCallID] = f.CorrelationID
		}
	}
}

func payloadTypeName(protoType uint8) string {
	switch protoType {
	case protoTypeSIP:
		return "sip"
	case protoTypeRTP:
		return "rtp"
	case protoTypeRTCP:
		return "rtcp"
	case protoTypeJSON:
		return "json"
	default:
		return "raw"
	}
}

// exact reports a value whose size does not match its chunk type.
func exact(r *memory.ReadCursor, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidHeader, err)
	}
	if r.HasRemaining() {
		return fmt.Errorf("%w: %d unexpected trailing bytes", core.ErrInvalidHeader, r.Remaining())
	}
	return nil
}

func chunkUint8(value []byte) (uint8, error) {
	r := memory.NewReadCursor(value)
	v, err := r.ReadUint8()
	return v, exact(r, err)
}

func chunkUint16(value []byte) (uint16, error) {
	r := memory.NewReadCursor(value)
	v, err := r.ReadUint16BE()
	return v, exact(r, err)
}

func chunkUint32(value []byte) (uint32, error) {
	r := memory.NewReadCursor(value)
	v, err := r.ReadUint32BE()
	return v, exact(r, err)
}

type ipAddress interface {
	netaddr.IPv4Address | netaddr.IPv6Address
	Addr() netip.Addr
}

func chunkAddr[A ipAddress, P memory.AddressPtr[A]](value []byte) (netip.Addr, error) {
	r := memory.NewReadCursor(value)
	a, err := memory.ReadAddress[A, P](r)
	if err := exact(r, err); err != nil {
		return netip.Addr{}, err
	}
	return a.Addr(), nil
}
