package encoder

import (
	"firestige.xyz/wire/pkg/memory"
)

// onesComplementSum adds b to acc as a sequence of big-endian 16-bit words.
// An odd trailing byte is padded with zero.
func onesComplementSum(acc uint32, b []byte) uint32 {
	r := memory.NewReadCursor(b)
	for r.CanRead(2) {
		v, _ := r.ReadUint16BE()
		acc += uint32(v)
	}
	if r.HasRemaining() {
		v, _ := r.ReadUint8()
		acc += uint32(v) << 8
	}
	return acc
}

func foldChecksum(acc uint32) uint16 {
	for acc > 0xFFFF {
		acc = acc>>16 + acc&0xFFFF
	}
	return ^uint16(acc)
}

// pseudoHeaderSum is the partial sum of the IPv4 or IPv6 pseudo-header that
// TCP and UDP checksums cover.
func (p *Packet) pseudoHeaderSum(protocol uint8, length int) uint32 {
	var acc uint32
	if p.IPv4 != nil {
		acc = onesComplementSum(acc, p.IPv4.Src[:])
		acc = onesComplementSum(acc, p.IPv4.Dst[:])
	} else {
		acc = onesComplementSum(acc, p.IPv6.Src[:])
		acc = onesComplementSum(acc, p.IPv6.Dst[:])
		acc += uint32(length) >> 16
	}
	acc += uint32(protocol)
	acc += uint32(length) & 0xFFFF
	return acc
}
