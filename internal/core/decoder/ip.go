// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

const (
	ipv4HeaderMinLen  = 20
	ipv6HeaderLen     = 40
	maxIPv6ExtHeaders = 8
)

// IPv6 extension header numbers
const (
	ipv6HopByHop = 0
	ipv6Routing  = 43
	ipv6Fragment = 44
	ipv6AH       = 51
	ipv6DestOpts = 60
)

// decodeIP decodes IP header (IPv4 or IPv6). On return r holds exactly the
// IP payload, bounded by the header's length field when the capture has it all.
func decodeIP(r *memory.ReadCursor) (core.IPHeader, error) {
	if !r.HasRemaining() {
		return core.IPHeader{}, truncated("ip header", memory.ErrMalformedInput)
	}

	// Check IP version (first 4 bits)
	version := r.Bytes()[0] >> 4

	switch version {
	case 4:
		return decodeIPv4(r)
	case 6:
		return decodeIPv6(r)
	default:
		return core.IPHeader{}, fmt.Errorf("%w: ip version %d", core.ErrUnsupportedProto, version)
	}
}

// decodeIPv4 decodes IPv4 header.
func decodeIPv4(r *memory.ReadCursor) (core.IPHeader, error) {
	f := fieldReader{r: r}
	versionIHL := f.u8()
	f.skip(1) // DSCP, ECN
	totalLen := f.u16()
	id := f.u16()
	flagsOffset := f.u16()
	ttl := f.u8()
	protocol := f.u8()
	f.skip(2) // header checksum
	src := f.ipv4()
	dst := f.ipv4()
	if f.err != nil {
		return core.IPHeader{}, truncated("ipv4 header", f.err)
	}

	// IHL is in 32-bit words
	headerLen := int(versionIHL&0x0F) * 4
	if headerLen < ipv4HeaderMinLen {
		return core.IPHeader{}, fmt.Errorf("%w: ipv4 IHL %d bytes", core.ErrInvalidHeader, headerLen)
	}
	if int(totalLen) < headerLen {
		return core.IPHeader{}, fmt.Errorf("%w: ipv4 total length %d below header length %d",
			core.ErrInvalidHeader, totalLen, headerLen)
	}
	if err := r.Skip(headerLen - ipv4HeaderMinLen); err != nil {
		return core.IPHeader{}, truncated("ipv4 options", err)
	}

	// Ethernet pads short frames; Total Length marks where the datagram ends.
	if payloadLen := int(totalLen) - headerLen; payloadLen <= r.Remaining() {
		r.Truncate(payloadLen)
	}

	fragOffset := flagsOffset & 0x1FFF // in 8-byte units
	return core.IPHeader{
		Version:    4,
		SrcIP:      src,
		DstIP:      dst,
		Protocol:   protocol,
		TTL:        ttl,
		TotalLen:   int(totalLen),
		HeaderLen:  headerLen,
		ID:         uint32(id),
		Fragment:   flagsOffset&0x2000 != 0 || fragOffset != 0,
		FragOffset: fragOffset * 8,
	}, nil
}

// decodeIPv6 decodes IPv6 header and walks extension headers up to the
// upper-layer protocol.
func decodeIPv6(r *memory.ReadCursor) (core.IPHeader, error) {
	f := fieldReader{r: r}
	f.skip(4) // version, traffic class, flow label
	payloadLen := f.u16()
	next := f.u8()
	hopLimit := f.u8()
	src := f.ipv6()
	dst := f.ipv6()
	if f.err != nil {
		return core.IPHeader{}, truncated("ipv6 header", f.err)
	}

	// A zero payload length means a jumbogram; leave the cursor unbounded.
	if payloadLen > 0 && int(payloadLen) <= r.Remaining() {
		r.Truncate(int(payloadLen))
	}

	ip := core.IPHeader{
		Version:   6,
		SrcIP:     src,
		DstIP:     dst,
		TTL:       hopLimit,
		TotalLen:  ipv6HeaderLen + int(payloadLen),
		HeaderLen: ipv6HeaderLen,
	}

	for n := 0; isIPv6Extension(next); n++ {
		if n == maxIPv6ExtHeaders {
			return ip, fmt.Errorf("%w: more than %d ipv6 extension headers", core.ErrInvalidHeader, maxIPv6ExtHeaders)
		}
		before := r.Remaining()
		var err error
		if next, err = skipIPv6Extension(r, next, &ip); err != nil {
			return ip, truncated("ipv6 extension header", err)
		}
		ip.HeaderLen += before - r.Remaining()
	}
	ip.Protocol = next
	return ip, nil
}

func isIPv6Extension(next uint8) bool {
	switch next {
	case ipv6HopByHop, ipv6Routing, ipv6Fragment, ipv6AH, ipv6DestOpts:
		return true
	}
	return false
}

// skipIPv6Extension consumes one extension header and returns the next header value.
func skipIPv6Extension(r *memory.ReadCursor, header uint8, ip *core.IPHeader) (uint8, error) {
	f := fieldReader{r: r}
	next := f.u8()

	switch header {
	case ipv6Fragment:
		f.skip(1) // reserved
		offsetFlags := f.u16()
		id := f.u32()
		if f.err != nil {
			return 0, f.err
		}
		ip.ID = id
		ip.FragOffset = offsetFlags &^ 0x7 // 13-bit offset in 8-byte units, already scaled
		ip.Fragment = offsetFlags&0x1 != 0 || ip.FragOffset != 0
	case ipv6AH:
		// Payload Len is in 4-octet units, minus 2
		words := f.u8()
		f.skip((int(words)+2)*4 - 2)
	default:
		// Hdr Ext Len is in 8-octet units, not including the first 8
		units := f.u8()
		f.skip(int(units)*8 + 6)
	}
	return next, f.err
}
