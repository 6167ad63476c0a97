// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/log"
	"firestige.xyz/wire/internal/metrics"
	"firestige.xyz/wire/pkg/memory"
)

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (core.DecodedPacket, error)
}

// Config controls the decoder.
type Config struct {
	// DecodeTunnels enables VXLAN, Geneve, GRE and IP-in-IP decapsulation.
	DecodeTunnels bool `mapstructure:"decode_tunnels" yaml:"decode_tunnels"`
	// MaxVLANDepth bounds stacked 802.1Q tags. Zero means the default of 2.
	MaxVLANDepth int `mapstructure:"max_vlan_depth" yaml:"max_vlan_depth"`
}

// Option customizes a StandardDecoder.
type Option func(*StandardDecoder)

// WithLogger sets the logger used for decode failures.
func WithLogger(logger log.Logger) Option {
	return func(d *StandardDecoder) { d.logger = logger }
}

// StandardDecoder decodes Ethernet, IPv4/IPv6 and TCP/UDP on top of a
// memory.ReadCursor. It holds no per-packet state and is safe for
// concurrent use.
type StandardDecoder struct {
	cfg    Config
	logger log.Logger
}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder(cfg Config, opts ...Option) *StandardDecoder {
	if cfg.MaxVLANDepth <= 0 {
		cfg.MaxVLANDepth = defaultMaxVLANDepth
	}
	d := &StandardDecoder{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.GetLogger()
	}
	return d
}

// Decode decodes one frame. Payload aliases raw.Data.
//
// Frames whose EtherType is not IP decode successfully with Payload holding
// everything after the Ethernet header. IP fragments after the first carry
// no transport header and are returned with an empty Transport.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	pkt, err := d.decode(raw)
	metrics.ObserveDecode(err)
	if err != nil && d.logger.IsDebugEnabled() {
		d.logger.WithError(err).WithField("caplen", len(raw.Data)).Debug("frame decode failed")
	}
	return pkt, err
}

func (d *StandardDecoder) decode(raw core.RawPacket) (core.DecodedPacket, error) {
	pkt := core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}
	r := memory.NewReadCursor(raw.Data)

	eth, err := decodeEthernet(r, d.cfg.MaxVLANDepth)
	if err != nil {
		return pkt, err
	}
	pkt.Ethernet = eth
	if !isIPEtherType(eth.EtherType) {
		pkt.Payload = r.Bytes()
		return pkt, nil
	}

	ip, err := decodeIP(r)
	if err != nil {
		return pkt, err
	}
	pkt.IP = ip
	if ip.FragOffset > 0 {
		pkt.Payload = r.Bytes()
		return pkt, nil
	}

	transport, err := decodeTransport(r, ip.Protocol)
	if err != nil {
		return pkt, err
	}
	pkt.Transport = transport

	if d.cfg.DecodeTunnels && !ip.Fragment {
		if inner, innerTransport, ok := decapsulate(r, ip, transport, d.cfg.MaxVLANDepth); ok {
			pkt.IP.InnerSrcIP = inner.SrcIP
			pkt.IP.InnerDstIP = inner.DstIP
			pkt.Transport = innerTransport
			pkt.Tunneled = true
		}
	}

	pkt.Payload = r.Bytes()
	return pkt, nil
}
