// Package plugin defines the interfaces shared by parsers and reporters.
package plugin

import "firestige.xyz/wire/internal/core"

// Parser parses application-layer protocols.
type Parser interface {
	CanHandle(pkt *core.DecodedPacket) bool
	// Handle returns the payload type name ("rtp", "sip", ...) and the labels
	// describing the payload.
	Handle(pkt *core.DecodedPacket) (payloadType string, labels core.Labels, err error)
}
