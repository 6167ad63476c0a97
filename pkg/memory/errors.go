package memory

import "errors"

// Sentinel errors returned by cursor operations. They carry no payload and are
// never wrapped by this package, so callers may compare them directly or with
// errors.Is after wrapping them further up.
var (
	// ErrMalformedInput is returned when a read or skip asks for more bytes than
	// the ReadCursor has left: the source is truncated or a length field lied.
	ErrMalformedInput = errors.New("memory: malformed input")

	// ErrSerializationCapacityExceeded is returned when a write, skip or fill asks
	// for more bytes than the WriteCursor can still hold.
	ErrSerializationCapacityExceeded = errors.New("memory: serialization capacity exceeded")
)
