package rtp

import (
	"errors"
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

const (
	rtpVersion    = 2
	rtpMinLength  = 12 // Fixed RTP header size (RFC 3550 §5.1)
	rtcpMinLength = 8  // Fixed RTCP common header + sender SSRC
	maxCSRC       = 15

	// rtcpPayloadTypeMin / Max define the RTCP PT range per RFC 5761 / RFC 3550.
	rtcpPayloadTypeMin = 200
	rtcpPayloadTypeMax = 209
)

// Header is the RTP fixed header with its CSRC list and optional header
// extension (RFC 3550 §5.1, §5.3.1).
type Header struct {
	Version        uint8
	Padding        bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32

	Extension        bool
	ExtensionProfile uint16
	// ExtensionPayload is a multiple of 4 bytes. After Parse it aliases the
	// parsed buffer.
	ExtensionPayload []byte
}

// Len returns the serialized header size.
func (h *Header) Len() int {
	n := rtpMinLength + 4*len(h.CSRC)
	if h.Extension {
		n += 4 + len(h.ExtensionPayload)
	}
	return n
}

// Parse decodes an RTP packet and returns the header and the payload with
// any padding removed. The payload aliases b.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	|V=2|P|X|  CC   |M|     PT      |       sequence number         |
//	|                           timestamp                           |
//	|           synchronization source (SSRC) identifier            |
//	|            contributing source (CSRC) identifiers             |
func Parse(b []byte) (Header, []byte, error) {
	var h Header
	r := memory.NewReadCursor(b)

	b0, err := r.ReadUint8()
	if err != nil {
		return h, nil, tooShort("rtp header", err)
	}
	h.Version = b0 >> 6
	if h.Version != rtpVersion {
		return h, nil, fmt.Errorf("%w: rtp version %d", core.ErrInvalidHeader, h.Version)
	}
	h.Padding = b0&0x20 != 0
	h.Extension = b0&0x10 != 0
	csrcCount := int(b0 & 0x0F)

	if !r.CanRead(rtpMinLength - 1 + 4*csrcCount) {
		return h, nil, tooShort("rtp header", memory.ErrMalformedInput)
	}
	// Bounds were checked above for the fixed header and CSRC list.
	b1, _ := r.ReadUint8()
	h.Marker = b1&0x80 != 0
	h.PayloadType = b1 & 0x7F
	h.SequenceNumber, _ = r.ReadUint16BE()
	h.Timestamp, _ = r.ReadUint32BE()
	h.SSRC, _ = r.ReadUint32BE()
	if csrcCount > 0 {
		h.CSRC = make([]uint32, csrcCount)
		for i := range h.CSRC {
			h.CSRC[i], _ = r.ReadUint32BE()
		}
	}

	if h.Extension {
		profile, err := r.ReadUint16BE()
		if err != nil {
			return h, nil, tooShort("rtp header extension", err)
		}
		words, err := r.ReadUint16BE()
		if err != nil {
			return h, nil, tooShort("rtp header extension", err)
		}
		h.ExtensionProfile = profile
		if h.ExtensionPayload, err = r.Slice(4 * int(words)); err != nil {
			return h, nil, tooShort("rtp header extension", err)
		}
	}

	if h.Padding {
		// The last octet counts the padding octets, itself included.
		rest := r.Bytes()
		if len(rest) == 0 {
			return h, nil, tooShort("rtp padding", memory.ErrMalformedInput)
		}
		pad := int(rest[len(rest)-1])
		if pad == 0 || pad > len(rest) {
			return h, nil, fmt.Errorf("%w: rtp padding of %d bytes with %d left", core.ErrInvalidHeader, pad, len(rest))
		}
		r.Truncate(len(rest) - pad)
	}
	return h, r.Bytes(), nil
}

// SerializeTo writes the header at the start of buf and returns its length.
// Padding octets are not written; a caller that sets Padding appends them
// after the payload.
func (h *Header) SerializeTo(buf []byte) (int, error) {
	if len(h.CSRC) > maxCSRC {
		return 0, fmt.Errorf("%w: %d CSRC identifiers, at most %d", core.ErrInvalidHeader, len(h.CSRC), maxCSRC)
	}
	if h.Extension && len(h.ExtensionPayload)%4 != 0 {
		return 0, fmt.Errorf("%w: rtp extension of %d bytes is not word aligned", core.ErrInvalidHeader, len(h.ExtensionPayload))
	}
	if h.Extension && len(h.ExtensionPayload)/4 > 0xFFFF {
		return 0, fmt.Errorf("%w: rtp extension of %d bytes", core.ErrInvalidHeader, len(h.ExtensionPayload))
	}

	w := memory.NewWriteCursor(buf)
	if err := h.write(w); err != nil {
		if errors.Is(err, memory.ErrSerializationCapacityExceeded) {
			return 0, fmt.Errorf("%w: rtp header needs %d bytes: %w", core.ErrBufferTooSmall, h.Len(), err)
		}
		return 0, err
	}
	return w.WrittenSize(), nil
}

func (h *Header) write(w *memory.WriteCursor) error {
	b0 := uint8(rtpVersion<<6) | uint8(len(h.CSRC))
	if h.Padding {
		b0 |= 0x20
	}
	if h.Extension {
		b0 |= 0x10
	}
	b1 := h.PayloadType & 0x7F
	if h.Marker {
		b1 |= 0x80
	}

	if err := w.WriteUint8(b0); err != nil {
		return err
	}
	if err := w.WriteUint8(b1); err != nil {
		return err
	}
	if err := w.WriteUint16BE(h.SequenceNumber); err != nil {
		return err
	}
	if err := w.WriteUint32BE(h.Timestamp); err != nil {
		return err
	}
	if err := w.WriteUint32BE(h.SSRC); err != nil {
		return err
	}
	for _, csrc := range h.CSRC {
		if err := w.WriteUint32BE(csrc); err != nil {
			return err
		}
	}
	if !h.Extension {
		return nil
	}
	if err := w.WriteUint16BE(h.ExtensionProfile); err != nil {
		return err
	}
	if err := w.WriteUint16BE(uint16(len(h.ExtensionPayload) / 4)); err != nil {
		return err
	}
	return w.WriteBytes(h.ExtensionPayload)
}

// RTCPHeader is the common header of an RTCP packet plus the first SSRC.
type RTCPHeader struct {
	Version    uint8
	Padding    bool
	Count      uint8 // reception report or source count
	PacketType uint8
	Length     uint16 // in 32-bit words minus one
	SSRC       uint32
}

// ParseRTCP decodes the first RTCP header in b.
func ParseRTCP(b []byte) (RTCPHeader, error) {
	var h RTCPHeader
	r := memory.NewReadCursor(b)
	if !r.CanRead(rtcpMinLength) {
		return h, tooShort("rtcp header", memory.ErrMalformedInput)
	}

	b0, _ := r.ReadUint8()
	h.Version = b0 >> 6
	if h.Version != rtpVersion {
		return h, fmt.Errorf("%w: rtcp version %d", core.ErrInvalidHeader, h.Version)
	}
	h.Padding = b0&0x20 != 0
	h.Count = b0 & 0x1F
	h.PacketType, _ = r.ReadUint8()
	h.Length, _ = r.ReadUint16BE()
	h.SSRC, _ = r.ReadUint32BE()
	return h, nil
}

// IsRTCP reports whether b starts with an RTCP packet type (200–209).
func IsRTCP(b []byte) bool {
	return len(b) >= 2 && b[1] >= rtcpPayloadTypeMin && b[1] <= rtcpPayloadTypeMax
}

func tooShort(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrPacketTooShort, what, err)
}
