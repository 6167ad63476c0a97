// Package rtp implements an RTP/RTCP header codec and a parser that annotates
// decoded UDP packets with RTP and RTCP labels.
//
// RTP and RTCP are recognised by a lightweight header heuristic (V=2,
// payload-type range, minimum length). RTCP is distinguished from RTP by
// payload-type values 200–209 (SR, RR, SDES, BYE…).
package rtp

import (
	"fmt"
	"strconv"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/plugin"
)

// Payload type names reported by Handle.
const (
	PayloadTypeRTP  = "rtp"
	PayloadTypeRTCP = "rtcp"
)

// Parser annotates RTP and RTCP datagrams. It is stateless.
type Parser struct{}

var _ plugin.Parser = (*Parser)(nil)

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// CanHandle decides whether the packet should be processed by this parser.
func (p *Parser) CanHandle(pkt *core.DecodedPacket) bool {
	if pkt.Transport.Protocol != core.ProtocolUDP {
		return false
	}
	return looksLikeRTPorRTCP(pkt.Payload)
}

// Handle parses the RTP or RTCP header and returns the payload type name
// ("rtp" or "rtcp") and the labels describing the header.
func (p *Parser) Handle(pkt *core.DecodedPacket) (string, core.Labels, error) {
	if IsRTCP(pkt.Payload) {
		labels, err := rtcpLabels(pkt.Payload)
		return PayloadTypeRTCP, labels, err
	}
	labels, err := rtpLabels(pkt.Payload)
	return PayloadTypeRTP, labels, err
}

func rtpLabels(b []byte) (core.Labels, error) {
	h, _, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("rtp: %w", err)
	}
	return core.Labels{
		core.LabelRTPVersion:     strconv.Itoa(int(h.Version)),
		core.LabelRTPPayloadType: strconv.Itoa(int(h.PayloadType)),
		core.LabelRTPSeq:         strconv.Itoa(int(h.SequenceNumber)),
		core.LabelRTPTimestamp:   strconv.FormatUint(uint64(h.Timestamp), 10),
		core.LabelRTPSSRC:        fmt.Sprintf("0x%08X", h.SSRC),
		core.LabelRTPMarker:      strconv.FormatBool(h.Marker),
		core.LabelRTPExtension:   strconv.FormatBool(h.Extension),
		core.LabelRTPCSRCCount:   strconv.Itoa(len(h.CSRC)),
	}, nil
}

func rtcpLabels(b []byte) (core.Labels, error) {
	h, err := ParseRTCP(b)
	if err != nil {
		return nil, fmt.Errorf("rtp: %w", err)
	}
	return core.Labels{
		core.LabelRTCPPayloadType: strconv.Itoa(int(h.PacketType)),
		core.LabelRTCPSSRC:        fmt.Sprintf("0x%08X", h.SSRC),
	}, nil
}

// looksLikeRTPorRTCP returns true when the payload passes lightweight header checks:
//   - at least 8 bytes present (the shorter RTCP minimum),
//   - version field == 2,
//   - RTCP packet type 200–209, or an RTP packet at least 12 bytes long.
func looksLikeRTPorRTCP(payload []byte) bool {
	if len(payload) < rtcpMinLength {
		return false
	}
	if payload[0]>>6 != rtpVersion {
		return false
	}
	if IsRTCP(payload) {
		return true
	}
	return len(payload) >= rtpMinLength
}
