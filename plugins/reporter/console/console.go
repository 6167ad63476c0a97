// Package console implements console debug reporter.
// Outputs packets to a writer in human-readable or JSON lines format.
package console

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/plugin"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Reporter writes one line per packet.
type Reporter struct {
	mu            sync.Mutex
	w             io.Writer
	format        string
	withPayload   bool
	reportedCount atomic.Uint64
}

var _ plugin.Reporter = (*Reporter)(nil)

// Option configures a Reporter.
type Option func(*Reporter)

// WithPayload adds the hex-encoded payload to JSON output.
func WithPayload() Option {
	return func(r *Reporter) { r.withPayload = true }
}

// NewReporter creates a console reporter writing to w. An empty format
// defaults to text.
func NewReporter(w io.Writer, format string, opts ...Option) (*Reporter, error) {
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("%w: console: invalid format %q, must be json or text", core.ErrConfigInvalid, format)
	}

	r := &Reporter{w: w, format: format}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Reported returns the number of packets written.
func (r *Reporter) Reported() uint64 { return r.reportedCount.Load() }

// Report outputs a packet.
func (r *Reporter) Report(_ context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return fmt.Errorf("console: nil packet")
	}

	var line []byte
	var err error
	if r.format == FormatJSON {
		line, err = r.jsonLine(pkt)
	} else {
		line = textLine(pkt)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	_, err = r.w.Write(line)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

type jsonPacket struct {
	NodeID        string            `json:"node_id,omitempty"`
	Timestamp     string            `json:"timestamp"`
	SrcIP         string            `json:"src_ip"`
	DstIP         string            `json:"dst_ip"`
	SrcPort       uint16            `json:"src_port"`
	DstPort       uint16            `json:"dst_port"`
	Protocol      uint8             `json:"protocol"`
	PayloadType   string            `json:"payload_type"`
	Labels        map[string]string `json:"labels,omitempty"`
	RawPayloadLen int               `json:"raw_payload_len,omitempty"`
	RawPayload    string            `json:"raw_payload,omitempty"`
}

// jsonLine renders pkt as one JSON object followed by a newline.
func (r *Reporter) jsonLine(pkt *core.OutputPacket) ([]byte, error) {
	out := jsonPacket{
		NodeID:        pkt.NodeID,
		Timestamp:     pkt.Timestamp.UTC().Format(time.RFC3339Nano),
		SrcIP:         pkt.SrcIP.String(),
		DstIP:         pkt.DstIP.String(),
		SrcPort:       pkt.SrcPort,
		DstPort:       pkt.DstPort,
		Protocol:      pkt.Protocol,
		PayloadType:   pkt.PayloadType,
		Labels:        pkt.Labels,
		RawPayloadLen: len(pkt.RawPayload),
	}
	if r.withPayload {
		out.RawPayload = hex.EncodeToString(pkt.RawPayload)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("console: json marshal failed: %w", err)
	}
	return append(data, '\n'), nil
}

// textLine renders pkt in human-readable text format.
func textLine(pkt *core.OutputPacket) []byte {
	b := fmt.Appendf(nil, "[%s] %s:%d -> %s:%d proto=%d type=%s",
		pkt.Timestamp.UTC().Format("15:04:05.000"),
		pkt.SrcIP, pkt.SrcPort,
		pkt.DstIP, pkt.DstPort,
		pkt.Protocol,
		pkt.PayloadType,
	)
	for _, k := range slices.Sorted(maps.Keys(pkt.Labels)) {
		b = fmt.Appendf(b, " %s=%s", k, pkt.Labels[k])
	}
	if len(pkt.RawPayload) > 0 {
		b = fmt.Appendf(b, " payload_len=%d", len(pkt.RawPayload))
	}
	return append(b, '\n')
}
