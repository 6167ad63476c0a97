// Package hep implements HEPv3 (Homer Encapsulation Protocol) framing and a
// UDP reporter that ships frames to HEP collectors.
//
// Frame layout:
//
//	Offset  Size  Description
//	------  ----  -----------
//	0       4     Magic: "HEP3"
//	4       2     Total frame length (big-endian uint16, includes these 6 bytes)
//	6       …     Chunks (variable count)
//
// Each chunk:
//
//	0  2   Vendor ID  (uint16, 0x0000 = HOMER standard)
//	2  2   Chunk type (uint16)
//	4  2   Total chunk length including this 6-byte header (uint16)
//	6  …   Value (length−6 bytes)
//
// Standard chunk types (vendor 0x0000):
//
//	1   IP family         uint8  (2=IPv4, 10=IPv6)
//	2   IP protocol ID    uint8  (6=TCP, 17=UDP, 132=SCTP)
//	3   Source  IPv4      4 bytes
//	4   Dest    IPv4      4 bytes
//	5   Source  IPv6      16 bytes
//	6   Dest    IPv6      16 bytes
//	7   Source port       uint16
//	8   Dest   port       uint16
//	9   Timestamp sec     uint32
//	10  Timestamp µsec    uint32
//	11  Protocol type     uint8  (1=SIP, 5=RTP, 8=RTCP, 100=JSON)
//	12  Capture agent ID  uint32
//	14  Auth key          string (no NUL terminator)
//	15  Payload           bytes
//	17  Correlation ID    string
//	19  Node name         string
//
// Project chunks (vendor 0x0000):
//
//	48  From identity     string  (SIP From-URI or srcIP:port)
//	49  To   identity     string  (SIP To-URI   or dstIP:port)
package hep

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/metrics"
	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/netaddr"
)

const (
	hepMagic = "HEP3"

	// frameHeaderLen is the magic plus the total length field.
	frameHeaderLen = 6

	// chunkHeaderLen is the fixed overhead of every chunk (vendor + type + length).
	chunkHeaderLen = 6

	// vendorHOMER is the vendor ID used by the HOMER/Sipcapture project.
	vendorHOMER = uint16(0x0000)

	maxFrameLen = 0xFFFF

	metricsFormat = "hep"
)

// Standard chunk type IDs.
const (
	chunkIPFamily  = uint16(1)
	chunkIPProto   = uint16(2)
	chunkSrcIPv4   = uint16(3)
	chunkDstIPv4   = uint16(4)
	chunkSrcIPv6   = uint16(5)
	chunkDstIPv6   = uint16(6)
	chunkSrcPort   = uint16(7)
	chunkDstPort   = uint16(8)
	chunkTimeSec   = uint16(9)
	chunkTimeUsec  = uint16(10)
	chunkProtoType = uint16(11)
	chunkCaptureID = uint16(12)
	chunkAuthKey   = uint16(14)
	chunkPayload   = uint16(15)
	chunkCorrID    = uint16(17)
	chunkNodeName  = uint16(19)

	chunkFrom = uint16(48)
	chunkTo   = uint16(49)
)

// IP-family values used in chunk 1.
const (
	ipFamilyV4 = uint8(2)
	ipFamilyV6 = uint8(10)
)

// Protocol-type values used in chunk 11.
const (
	protoTypeSIP  = uint8(1)
	protoTypeRTP  = uint8(5)
	protoTypeRTCP = uint8(8)
	protoTypeJSON = uint8(100)
)

// EncodeOptions carries per-frame knobs that come from reporter config.
type EncodeOptions struct {
	CaptureID uint32 // chunk 12
	AuthKey   string // chunk 14, omitted if empty
	NodeName  string // chunk 19, falls back to the packet's NodeID
}

// chunk is one planned chunk. Exactly one of value, addr or width is used.
type chunk struct {
	typ   uint16
	value []byte
	addr  memory.Address
	num   uint32
	width int // 1, 2 or 4 for numeric chunks
}

func (c chunk) valueLen() int {
	switch {
	case c.width > 0:
		return c.width
	case c.addr != nil:
		return c.addr.Len()
	default:
		return len(c.value)
	}
}

func (c chunk) writeTo(w *memory.WriteCursor) error {
	if err := w.WriteUint16BE(vendorHOMER); err != nil {
		return err
	}
	if err := w.WriteUint16BE(c.typ); err != nil {
		return err
	}
	if err := w.WriteUint16BE(uint16(chunkHeaderLen + c.valueLen())); err != nil {
		return err
	}
	switch {
	case c.width == 1:
		return w.WriteUint8(uint8(c.num))
	case c.width == 2:
		return w.WriteUint16BE(uint16(c.num))
	case c.width == 4:
		return w.WriteUint32BE(c.num)
	case c.addr != nil:
		return w.WriteAddress(c.addr)
	default:
		return w.WriteBytes(c.value)
	}
}

func u8Chunk(typ uint16, v uint8) chunk   { return chunk{typ: typ, num: uint32(v), width: 1} }
func u16Chunk(typ uint16, v uint16) chunk { return chunk{typ: typ, num: uint32(v), width: 2} }
func u32Chunk(typ uint16, v uint32) chunk { return chunk{typ: typ, num: v, width: 4} }

func strChunk(typ uint16, v string) chunk { return chunk{typ: typ, value: []byte(v)} }

// planChunks lists the chunks of pkt in wire order. Source and destination
// must share an address family.
func planChunks(pkt *core.OutputPacket, opts EncodeOptions) ([]chunk, error) {
	chunks := make([]chunk, 0, 18)

	src, srcV4 := netaddr.IPv4FromAddr(pkt.SrcIP)
	dst, dstV4 := netaddr.IPv4FromAddr(pkt.DstIP)
	if srcV4 != dstV4 {
		return nil, fmt.Errorf("%w: hep address families differ: %v -> %v", core.ErrInvalidHeader, pkt.SrcIP, pkt.DstIP)
	}
	if srcV4 {
		chunks = append(chunks,
			u8Chunk(chunkIPFamily, ipFamilyV4),
			u8Chunk(chunkIPProto, pkt.Protocol),
			chunk{typ: chunkSrcIPv4, addr: src},
			chunk{typ: chunkDstIPv4, addr: dst},
		)
	} else {
		chunks = append(chunks,
			u8Chunk(chunkIPFamily, ipFamilyV6),
			u8Chunk(chunkIPProto, pkt.Protocol),
			chunk{typ: chunkSrcIPv6, addr: netaddr.IPv6FromAddr(pkt.SrcIP)},
			chunk{typ: chunkDstIPv6, addr: netaddr.IPv6FromAddr(pkt.DstIP)},
		)
	}

	ts := pkt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	chunks = append(chunks,
		u16Chunk(chunkSrcPort, pkt.SrcPort),
		u16Chunk(chunkDstPort, pkt.DstPort),
		u32Chunk(chunkTimeSec, uint32(ts.Unix())),
		u32Chunk(chunkTimeUsec, uint32(ts.Nanosecond()/1_000)),
		u8Chunk(chunkProtoType, resolveProtoType(pkt.PayloadType)),
		u32Chunk(chunkCaptureID, opts.CaptureID),
	)

	if opts.AuthKey != "" {
		chunks = append(chunks, strChunk(chunkAuthKey, opts.AuthKey))
	}
	if len(pkt.RawPayload) > 0 {
		chunks = append(chunks, chunk{typ: chunkPayload, value: pkt.RawPayload})
	}
	if cid := resolveCorrelationID(pkt); cid != "" {
		chunks = append(chunks, strChunk(chunkCorrID, cid))
	}
	if node := resolveNodeName(pkt, opts); node != "" {
		chunks = append(chunks, strChunk(chunkNodeName, node))
	}
	chunks = append(chunks,
		strChunk(chunkFrom, resolveFrom(pkt)),
		strChunk(chunkTo, resolveTo(pkt)),
	)
	return chunks, nil
}

func frameLen(chunks []chunk) int {
	n := frameHeaderLen
	for _, c := range chunks {
		n += chunkHeaderLen + c.valueLen()
	}
	return n
}

// Encode serialises pkt into a newly allocated HEPv3 frame of exactly the
// encoded size.
func Encode(pkt *core.OutputPacket, opts EncodeOptions) (frame []byte, err error) {
	if pkt == nil {
		return nil, fmt.Errorf("hep: nil packet")
	}
	defer func() { metrics.ObserveEncode(metricsFormat, err) }()

	chunks, err := planChunks(pkt, opts)
	if err != nil {
		return nil, err
	}
	n := frameLen(chunks)
	if n > maxFrameLen {
		return nil, fmt.Errorf("%w: hep frame of %d bytes exceeds %d", core.ErrInvalidHeader, n, maxFrameLen)
	}

	frame = make([]byte, n)
	if _, err := writeFrame(memory.NewWriteCursor(frame), chunks); err != nil {
		return nil, err
	}
	return frame, nil
}

// EncodeTo writes the HEPv3 frame for pkt at the start of buf and returns its
// length. A buffer that is too small yields an error wrapping
// core.ErrBufferTooSmall.
func EncodeTo(buf []byte, pkt *core.OutputPacket, opts EncodeOptions) (n int, err error) {
	if pkt == nil {
		return 0, fmt.Errorf("hep: nil packet")
	}
	defer func() { metrics.ObserveEncode(metricsFormat, err) }()

	chunks, err := planChunks(pkt, opts)
	if err != nil {
		return 0, err
	}
	if size := frameLen(chunks); size > maxFrameLen {
		return 0, fmt.Errorf("%w: hep frame of %d bytes exceeds %d", core.ErrInvalidHeader, size, maxFrameLen)
	}
	return writeFrame(memory.NewWriteCursor(buf), chunks)
}

func writeFrame(w *memory.WriteCursor, chunks []chunk) (int, error) {
	wrap := func(err error) error {
		if errors.Is(err, memory.ErrSerializationCapacityExceeded) {
			return fmt.Errorf("%w: hep frame needs %d bytes: %w", core.ErrBufferTooSmall, frameLen(chunks), err)
		}
		return err
	}

	if err := w.WriteBytes([]byte(hepMagic)); err != nil {
		return 0, wrap(err)
	}
	total, err := w.Reserve(2)
	if err != nil {
		return 0, wrap(err)
	}
	for _, c := range chunks {
		if err := c.writeTo(w); err != nil {
			return 0, wrap(err)
		}
	}

	binary.BigEndian.PutUint16(total, uint16(w.WrittenSize()))
	return w.WrittenSize(), nil
}

// resolveProtoType maps a parser PayloadType string to HEP protocol type ID.
func resolveProtoType(payloadType string) uint8 {
	switch payloadType {
	case "sip":
		return protoTypeSIP
	case "rtp":
		return protoTypeRTP
	case "rtcp":
		return protoTypeRTCP
	case "json":
		return protoTypeJSON
	default:
		return 0
	}
}

// resolveFrom extracts the originating identity for chunk 48.
// Priority: SIP From-URI label → srcIP:srcPort.
func resolveFrom(pkt *core.OutputPacket) string {
	if v := pkt.Labels[core.LabelSIPFromURI]; v != "" {
		return v
	}
	return netip.AddrPortFrom(pkt.SrcIP, pkt.SrcPort).String()
}

// resolveTo extracts the terminating identity for chunk 49.
// Priority: SIP To-URI label → dstIP:dstPort.
func resolveTo(pkt *core.OutputPacket) string {
	if v := pkt.Labels[core.LabelSIPToURI]; v != "" {
		return v
	}
	return netip.AddrPortFrom(pkt.DstIP, pkt.DstPort).String()
}

// resolveCorrelationID returns a call/session correlation string for chunk 17.
func resolveCorrelationID(pkt *core.OutputPacket) string {
	if v := pkt.Labels[core.LabelSIPCallID]; v != "" {
		return v
	}
	return pkt.Labels[core.LabelRTPCallID]
}

func resolveNodeName(pkt *core.OutputPacket, opts EncodeOptions) string {
	if opts.NodeName != "" {
		return opts.NodeName
	}
	return pkt.NodeID
}
