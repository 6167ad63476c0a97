// Package endian converts fixed-width integers between host and wire byte order.
package endian

import (
	"encoding/binary"
	"math/bits"
	"unsafe"
)

// Integer is the set of fixed-width integer types whose binary layout is well defined.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

var littleEndian = binary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 0x0001

// IsLittleEndian reports whether the host stores integers least significant byte first.
func IsLittleEndian() bool { return littleEndian }

// IsBigEndian reports whether the host stores integers most significant byte first.
func IsBigEndian() bool { return !littleEndian }

// Swap reverses the byte order of v. One-byte values are returned unchanged.
func Swap[T Integer](v T) T {
	switch unsafe.Sizeof(v) {
	case 2:
		return T(bits.ReverseBytes16(uint16(v)))
	case 4:
		return T(bits.ReverseBytes32(uint32(v)))
	case 8:
		return T(bits.ReverseBytes64(uint64(v)))
	default:
		return v
	}
}

// HostToBE converts v from host order to big-endian (network) order.
func HostToBE[T Integer](v T) T {
	if littleEndian {
		return Swap(v)
	}
	return v
}

// HostToLE converts v from host order to little-endian order.
func HostToLE[T Integer](v T) T {
	if littleEndian {
		return v
	}
	return Swap(v)
}

// BEToHost converts a big-endian value to host order.
func BEToHost[T Integer](v T) T { return HostToBE(v) }

// LEToHost converts a little-endian value to host order.
func LEToHost[T Integer](v T) T { return HostToLE(v) }
