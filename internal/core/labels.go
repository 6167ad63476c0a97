// Package core defines core types.
package core

// Labels represents key-value metadata attached by parsers.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelSIPCallID  = "sip.call_id"
	LabelSIPFromURI = "sip.from_uri"
	LabelSIPToURI   = "sip.to_uri"

	// RTP / RTCP label constants
	LabelRTPVersion     = "rtp.version"
	LabelRTPPayloadType = "rtp.payload_type" // RTP payload type number (0-127)
	LabelRTPSeq         = "rtp.seq"          // Sequence number (decimal)
	LabelRTPTimestamp   = "rtp.timestamp"    // RTP timestamp (decimal)
	LabelRTPSSRC        = "rtp.ssrc"         // Synchronization source (hex, 0xXXXXXXXX)
	LabelRTPCallID      = "rtp.call_id"      // Correlated SIP call-id
	LabelRTPMarker      = "rtp.marker"       // Marker bit ("true"/"false")
	LabelRTPExtension   = "rtp.has_ext"      // Header extension present ("true"/"false")
	LabelRTPCSRCCount   = "rtp.csrc_count"

	// RTCP uses rtcp.* prefix to distinguish from media RTP
	LabelRTCPPayloadType = "rtcp.payload_type" // RTCP packet type (200-209)
	LabelRTCPSSRC        = "rtcp.ssrc"         // Sender/source SSRC (hex)
)
