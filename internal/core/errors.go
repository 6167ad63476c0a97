// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Layers wrap them with %w together with the cursor error that
// triggered them, so both remain matchable with errors.Is.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("wire: packet too short")
	ErrUnsupportedProto = errors.New("wire: unsupported protocol")
	ErrInvalidHeader    = errors.New("wire: invalid header")

	// Packet encoding errors
	ErrBufferTooSmall = errors.New("wire: buffer too small")

	// Configuration errors
	ErrConfigInvalid = errors.New("wire: invalid configuration")
)
