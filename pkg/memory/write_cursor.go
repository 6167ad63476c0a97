package memory

import "firestige.xyz/wire/pkg/endian"

// WriteCursor produces bytes into a pre-sized region that it does not own.
// The region is never grown; WrittenSize()+Remaining() always equals its length.
type WriteCursor struct {
	buf []byte // whole destination region
	pos int    // bytes produced so far
}

// NewWriteCursor returns a cursor positioned at the start of b.
func NewWriteCursor(b []byte) *WriteCursor {
	return &WriteCursor{buf: b}
}

func (w *WriteCursor) canWrite(n int) bool {
	return n >= 0 && len(w.buf)-w.pos >= n
}

// Skip advances the cursor by n bytes, leaving them untouched.
func (w *WriteCursor) Skip(n int) error {
	if !w.canWrite(n) {
		return ErrSerializationCapacityExceeded
	}
	w.pos += n
	return nil
}

// Reserve skips n bytes and returns them so the caller can fill them in once
// their value is known (length and checksum fields).
func (w *WriteCursor) Reserve(n int) ([]byte, error) {
	if !w.canWrite(n) {
		return nil, ErrSerializationCapacityExceeded
	}
	hole := w.buf[w.pos : w.pos+n : w.pos+n]
	w.pos += n
	return hole, nil
}

// WriteBytes copies p to the cursor.
func (w *WriteCursor) WriteBytes(p []byte) error {
	if !w.canWrite(len(p)) {
		return ErrSerializationCapacityExceeded
	}
	w.pos += copy(w.buf[w.pos:], p)
	return nil
}

// WriteRaw copies the first n bytes of src. src shorter than n cannot supply
// the requested bytes and yields ErrMalformedInput.
func (w *WriteCursor) WriteRaw(src []byte, n int) error {
	if !w.canWrite(n) {
		return ErrSerializationCapacityExceeded
	}
	if n > len(src) {
		return ErrMalformedInput
	}
	return w.WriteBytes(src[:n])
}

// Write implements io.Writer. It writes all of p or nothing.
func (w *WriteCursor) Write(p []byte) (int, error) {
	if err := w.WriteBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAddress writes the fixed-width raw bytes of addr and advances by
// exactly addr.Len(). An address whose raw bytes disagree with its declared
// width yields ErrMalformedInput, as WriteRaw does for a short source.
func (w *WriteCursor) WriteAddress(addr Address) error {
	n := addr.Len()
	if !w.canWrite(n) {
		return ErrSerializationCapacityExceeded
	}
	raw := addr.AsSlice()
	if len(raw) != n {
		return ErrMalformedInput
	}
	copy(w.buf[w.pos:w.pos+n], raw)
	w.pos += n
	return nil
}

// Fill writes n copies of b.
func (w *WriteCursor) Fill(n int, b byte) error {
	if !w.canWrite(n) {
		return ErrSerializationCapacityExceeded
	}
	region := w.buf[w.pos : w.pos+n]
	for i := range region {
		region[i] = b
	}
	w.pos += n
	return nil
}

// WriteUint8 writes a single byte.
func (w *WriteCursor) WriteUint8(v uint8) error { return Write(w, v) }

// WriteUint16BE writes v in big-endian order.
func (w *WriteCursor) WriteUint16BE(v uint16) error { return WriteBE(w, v) }

// WriteUint32BE writes v in big-endian order.
func (w *WriteCursor) WriteUint32BE(v uint32) error { return WriteBE(w, v) }

// WriteUint64BE writes v in big-endian order.
func (w *WriteCursor) WriteUint64BE(v uint64) error { return WriteBE(w, v) }

// Remaining returns how many bytes can still be written.
func (w *WriteCursor) Remaining() int {
	return len(w.buf) - w.pos
}

// WrittenSize returns how many bytes have been produced, skipped ones included.
func (w *WriteCursor) WrittenSize() int {
	return w.pos
}

// Bytes returns the produced prefix of the region.
func (w *WriteCursor) Bytes() []byte {
	return w.buf[:w.pos]
}

// Write stores v using the host byte order.
func Write[T Integer](w *WriteCursor, v T) error {
	n := sizeOf[T]()
	if !w.canWrite(n) {
		return ErrSerializationCapacityExceeded
	}
	encodeNative(w.buf[w.pos:w.pos+n], v)
	w.pos += n
	return nil
}

// WriteLE stores v in little-endian order.
func WriteLE[T Integer](w *WriteCursor, v T) error {
	return Write(w, endian.HostToLE(v))
}

// WriteBE stores v in big-endian (network) order.
func WriteBE[T Integer](w *WriteCursor, v T) error {
	return Write(w, endian.HostToBE(v))
}
