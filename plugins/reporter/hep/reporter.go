package hep

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"sync/atomic"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/log"
	"firestige.xyz/wire/pkg/plugin"
)

// Config holds HEP reporter configuration.
//
//	hep:
//	  servers:
//	    - "10.0.0.1:9060"
//	    - "10.0.0.2:9060"
//	  capture_id: 2001
//	  auth_key: "mysecret"   # optional
type Config struct {
	// Servers lists remote UDP endpoints (host:port) to forward HEP frames to.
	// Routing is flow-stable: same 5-tuple always hits the same server.
	Servers []string `mapstructure:"servers" yaml:"servers"`

	// CaptureID is placed in HEP chunk 12 to identify this agent on the collector side.
	CaptureID uint32 `mapstructure:"capture_id" yaml:"capture_id"`

	// AuthKey is an optional authentication key written into HEP chunk 14.
	AuthKey string `mapstructure:"auth_key" yaml:"auth_key"`

	// NodeName is the capture node identifier written into HEP chunk 19.
	NodeName string `mapstructure:"node_name" yaml:"node_name"`
}

// Validate checks the reporter configuration.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("%w: hep: at least one server is required", core.ErrConfigInvalid)
	}
	for i, srv := range c.Servers {
		if _, _, err := net.SplitHostPort(srv); err != nil {
			return fmt.Errorf("%w: hep: servers[%d] %q: %w", core.ErrConfigInvalid, i, srv, err)
		}
	}
	return nil
}

// EncodeOptions returns the per-frame encoder options carried by the config.
func (c Config) EncodeOptions() EncodeOptions {
	return EncodeOptions{CaptureID: c.CaptureID, AuthKey: c.AuthKey, NodeName: c.NodeName}
}

// Reporter sends OutputPackets as HEPv3 frames via UDP.
type Reporter struct {
	config Config
	logger log.Logger

	// One pre-dialed UDP connection per configured server.
	// Connections are created in Start() and closed in Stop().
	conns []*net.UDPConn

	sentCount  atomic.Uint64
	errorCount atomic.Uint64
}

var _ plugin.Reporter = (*Reporter)(nil)

// NewReporter creates a reporter. The configuration is validated here so a
// bad server list fails before any socket is opened.
func NewReporter(cfg Config, logger log.Logger) (*Reporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Reporter{config: cfg, logger: logger.WithField("reporter", "hep")}, nil
}

// Start opens UDP connections to all configured servers.
func (r *Reporter) Start(_ context.Context) error {
	r.conns = make([]*net.UDPConn, 0, len(r.config.Servers))
	for _, srv := range r.config.Servers {
		addr, err := net.ResolveUDPAddr("udp", srv)
		if err != nil {
			r.closeConns()
			return fmt.Errorf("hep reporter: resolve %q: %w", srv, err)
		}
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			r.closeConns()
			return fmt.Errorf("hep reporter: dial %q: %w", srv, err)
		}
		r.conns = append(r.conns, conn)
	}
	r.logger.WithFields(map[string]interface{}{
		"servers":    r.config.Servers,
		"capture_id": r.config.CaptureID,
	}).Info("hep reporter started")
	return nil
}

// Stop closes all UDP connections and logs final statistics.
func (r *Reporter) Stop(_ context.Context) error {
	r.closeConns()
	r.logger.WithFields(map[string]interface{}{
		"sent":   r.sentCount.Load(),
		"errors": r.errorCount.Load(),
	}).Info("hep reporter stopped")
	return nil
}

func (r *Reporter) closeConns() {
	for _, c := range r.conns {
		if c != nil {
			_ = c.Close()
		}
	}
	r.conns = nil
}

// Sent returns the number of frames written so far.
func (r *Reporter) Sent() uint64 { return r.sentCount.Load() }

// Report encodes pkt as a HEPv3 frame and sends it to a flow-stable server.
func (r *Reporter) Report(_ context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return fmt.Errorf("hep reporter: nil packet")
	}
	if len(r.conns) == 0 {
		return errors.New("hep reporter: not started")
	}

	frame, err := Encode(pkt, r.config.EncodeOptions())
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("hep reporter: encode: %w", err)
	}

	conn := r.selectConn(pkt)
	if _, err = conn.Write(frame); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("hep reporter: send to %s: %w", conn.RemoteAddr(), err)
	}

	r.sentCount.Add(1)
	if r.logger.IsTraceEnabled() {
		r.logger.WithField("bytes", len(frame)).Trace("hep frame sent")
	}
	return nil
}

// selectConn returns the UDP connection for the server that owns pkt's flow:
//
//	idx = FNV-32a(srcIP‖srcPort‖dstIP‖dstPort‖protocol) % len(conns)
func (r *Reporter) selectConn(pkt *core.OutputPacket) *net.UDPConn {
	if len(r.conns) == 1 {
		return r.conns[0]
	}

	h := fnv.New32a()

	// As16 gives IPv4 and IPv4-mapped addresses the same bytes.
	src16 := pkt.SrcIP.As16()
	dst16 := pkt.DstIP.As16()
	_, _ = h.Write(src16[:])

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], pkt.SrcPort)
	_, _ = h.Write(port[:])

	_, _ = h.Write(dst16[:])
	binary.BigEndian.PutUint16(port[:], pkt.DstPort)
	_, _ = h.Write(port[:])

	_, _ = h.Write([]byte{pkt.Protocol})

	idx := h.Sum32() % uint32(len(r.conns))
	return r.conns[idx]
}
