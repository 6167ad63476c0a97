package memory

import "firestige.xyz/wire/pkg/endian"

// ReadCursor is a forward-only view over a byte region that it does not own.
type ReadCursor struct {
	buf  []byte // unread bytes, starting at the cursor
	size int    // bytes that may still be read
}

// NewReadCursor returns a cursor positioned at the start of b.
func NewReadCursor(b []byte) *ReadCursor {
	return &ReadCursor{buf: b, size: len(b)}
}

// CanRead reports whether n more bytes can be consumed.
func (r *ReadCursor) CanRead(n int) bool {
	return n >= 0 && r.size >= n
}

// Skip advances the cursor by n bytes.
func (r *ReadCursor) Skip(n int) error {
	if !r.CanRead(n) {
		return ErrMalformedInput
	}
	r.advance(n)
	return nil
}

// ReadRaw returns a copy of the next n bytes.
func (r *ReadCursor) ReadRaw(n int) ([]byte, error) {
	if !r.CanRead(n) {
		return nil, ErrMalformedInput
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.advance(n)
	return out, nil
}

// Slice returns the next n bytes without copying. The result aliases the
// underlying region and is only valid as long as the region is.
func (r *ReadCursor) Slice(n int) ([]byte, error) {
	if !r.CanRead(n) {
		return nil, ErrMalformedInput
	}
	out := r.buf[:n:n]
	r.advance(n)
	return out, nil
}

// ReadInto fills dst with the next len(dst) bytes.
func (r *ReadCursor) ReadInto(dst []byte) error {
	if !r.CanRead(len(dst)) {
		return ErrMalformedInput
	}
	copy(dst, r.buf[:len(dst)])
	r.advance(len(dst))
	return nil
}

// ReadUint8 reads a single byte.
func (r *ReadCursor) ReadUint8() (uint8, error) { return Read[uint8](r) }

// ReadUint16BE reads a big-endian uint16.
func (r *ReadCursor) ReadUint16BE() (uint16, error) { return ReadBE[uint16](r) }

// ReadUint32BE reads a big-endian uint32.
func (r *ReadCursor) ReadUint32BE() (uint32, error) { return ReadBE[uint32](r) }

// ReadUint64BE reads a big-endian uint64.
func (r *ReadCursor) ReadUint64BE() (uint64, error) { return ReadBE[uint64](r) }

// Remaining returns the number of bytes left to read.
func (r *ReadCursor) Remaining() int {
	return r.size
}

// HasRemaining reports whether at least one byte is left, so a cursor can
// drive a loop-until-exhausted parse.
func (r *ReadCursor) HasRemaining() bool {
	return r.size > 0
}

// Bytes returns the unread bytes without copying or advancing.
func (r *ReadCursor) Bytes() []byte {
	return r.buf[:r.size:r.size]
}

// Truncate overrides the number of bytes left to read, typically to bound the
// cursor by a length field that declares less than the physical buffer holds.
//
// No check is made against the underlying region. Passing more than the
// region really has left is a caller error: the next read that reaches past
// the region panics with a slice bounds violation.
func (r *ReadCursor) Truncate(n int) {
	r.size = n
}

func (r *ReadCursor) advance(n int) {
	r.buf = r.buf[n:]
	r.size -= n
}

// Read consumes sizeof(T) bytes and returns them as a T in host byte order,
// with no reordering.
func Read[T Integer](r *ReadCursor) (T, error) {
	n := sizeOf[T]()
	if !r.CanRead(n) {
		var zero T
		return zero, ErrMalformedInput
	}
	v := decodeNative[T](r.buf[:n])
	r.advance(n)
	return v, nil
}

// ReadLE reads a little-endian T.
func ReadLE[T Integer](r *ReadCursor) (T, error) {
	v, err := Read[T](r)
	if err != nil {
		return v, err
	}
	return endian.LEToHost(v), nil
}

// ReadBE reads a big-endian (network order) T.
func ReadBE[T Integer](r *ReadCursor) (T, error) {
	v, err := Read[T](r)
	if err != nil {
		return v, err
	}
	return endian.BEToHost(v), nil
}

// ReadAddress reads an address of type A from its fixed-width raw bytes.
// The bytes are taken as-is; addresses are never byte swapped.
func ReadAddress[A any, P AddressPtr[A]](r *ReadCursor) (A, error) {
	var addr A
	p := P(&addr)
	n := p.Len()
	if !r.CanRead(n) {
		return addr, ErrMalformedInput
	}
	p.SetBytes(r.buf[:n])
	r.advance(n)
	return addr, nil
}
