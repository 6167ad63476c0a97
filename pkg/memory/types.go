package memory

import (
	"encoding/binary"
	"unsafe"

	"firestige.xyz/wire/pkg/endian"
)

// Integer is the set of fixed-width value types the typed read/write
// operations accept.
type Integer = endian.Integer

// Address is a fixed-width value that is carried on the wire as an opaque byte
// sequence rather than as a number.
type Address interface {
	// Len returns the fixed byte width. It must not depend on the value.
	Len() int
	// AsSlice returns the raw bytes; the result has exactly Len bytes.
	AsSlice() []byte
}

// AddressPtr is satisfied by pointers to address types that can be populated
// from exactly Len raw bytes.
type AddressPtr[A any] interface {
	*A
	Address
	SetBytes(b []byte)
}

func sizeOf[T Integer]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// decodeNative copies len(b) bytes into a T without reordering.
func decodeNative[T Integer](b []byte) T {
	switch len(b) {
	case 1:
		return T(b[0])
	case 2:
		return T(binary.NativeEndian.Uint16(b))
	case 4:
		return T(binary.NativeEndian.Uint32(b))
	default:
		return T(binary.NativeEndian.Uint64(b))
	}
}

// encodeNative copies v into b without reordering. len(b) must equal sizeof(T).
func encodeNative[T Integer](b []byte, v T) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	default:
		binary.NativeEndian.PutUint64(b, uint64(v))
	}
}
