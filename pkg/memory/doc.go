// Package memory provides bounds-checked cursors for parsing and building
// binary wire formats field by field.
//
// ReadCursor consumes bytes from a caller-owned region and WriteCursor produces
// bytes into a caller-owned, pre-sized region. Neither allocates for the region
// nor grows it. Every operation checks the requested byte count against what
// remains before touching any state, so a failed call leaves the cursor exactly
// as it was:
//
//	r := memory.NewReadCursor(frame)
//	etherType, err := memory.ReadBE[uint16](r)
//	if err != nil {
//		return err // memory.ErrMalformedInput
//	}
//
// Typed access is funneled through the host-order primitives Read and Write;
// the little- and big-endian variants convert strictly after the raw copy
// (or before it, for writes).
//
// Cursors are not safe for concurrent use.
package memory
