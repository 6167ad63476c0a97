package cmd

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"firestige.xyz/wire/internal/core/encoder"
	"firestige.xyz/wire/pkg/netaddr"
	"firestige.xyz/wire/plugins/parser/rtp"
)

const buildSnapLen = 65535

// buildOptions describes the frames written by the build command.
type buildOptions struct {
	SrcMAC   string
	DstMAC   string
	VLAN     uint16
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Proto    string
	TTL      uint8
	Payload  string
	Count    int
	Interval time.Duration
	Start    time.Time // capture time of the first frame, now when zero

	// RTP wraps the payload in an RTP header whose sequence number and
	// timestamp advance per frame.
	RTP         bool
	RTPType     uint8
	RTPSSRC     uint32
	RTPTSStride uint32
}

var (
	buildOpts   buildOptions
	buildOutput string
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write synthetic frames to a pcap file",
	Long: `Build Ethernet/IPv4 or IPv6/UDP or TCP frames with computed lengths and
checksums and write them to a pcap file.

Examples:
  wirectl build -o sip.pcap --dst-port 5060 --payload "OPTIONS sip:a@b SIP/2.0"
  wirectl build -o media.pcap --rtp --count 50 --src-ip 2001:db8::1 --dst-ip 2001:db8::2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildOutput == "-" {
			return runBuild(buildOpts, cmd.OutOrStdout())
		}
		f, err := os.Create(buildOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", buildOutput, err)
		}
		if err := runBuild(buildOpts, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildOutput, "output", "o", "", "pcap file to write (- for stdout)")
	f.StringVar(&buildOpts.SrcMAC, "src-mac", "02:00:00:00:00:01", "source MAC address")
	f.StringVar(&buildOpts.DstMAC, "dst-mac", "02:00:00:00:00:02", "destination MAC address")
	f.Uint16Var(&buildOpts.VLAN, "vlan", 0, "802.1Q VLAN ID (0 = untagged)")
	f.StringVar(&buildOpts.SrcIP, "src-ip", "10.0.0.1", "source IPv4 or IPv6 address")
	f.StringVar(&buildOpts.DstIP, "dst-ip", "10.0.0.2", "destination address of the same family")
	f.Uint16Var(&buildOpts.SrcPort, "src-port", 5004, "source port")
	f.Uint16Var(&buildOpts.DstPort, "dst-port", 5006, "destination port")
	f.StringVar(&buildOpts.Proto, "proto", "udp", "transport protocol: udp or tcp")
	f.Uint8Var(&buildOpts.TTL, "ttl", 64, "IPv4 TTL or IPv6 hop limit")
	f.StringVar(&buildOpts.Payload, "payload", "", "application payload")
	f.IntVar(&buildOpts.Count, "count", 1, "number of frames")
	f.DurationVar(&buildOpts.Interval, "interval", 20*time.Millisecond, "capture time between frames")
	f.BoolVar(&buildOpts.RTP, "rtp", false, "prefix the payload with an RTP header")
	f.Uint8Var(&buildOpts.RTPType, "rtp-pt", 0, "RTP payload type")
	f.Uint32Var(&buildOpts.RTPSSRC, "rtp-ssrc", 0x1234ABCD, "RTP SSRC")
	f.Uint32Var(&buildOpts.RTPTSStride, "rtp-ts-stride", 160, "RTP timestamp increment per frame")
	_ = buildCmd.MarkFlagRequired("output")
}

// runBuild writes opts.Count frames to w in pcap format.
func runBuild(opts buildOptions, w io.Writer) error {
	tmpl, err := opts.template()
	if err != nil {
		return err
	}
	if opts.Count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", opts.Count)
	}

	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(buildSnapLen, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	for i := 0; i < opts.Count; i++ {
		pkt := tmpl
		pkt.Payload, err = opts.payload(i)
		if err != nil {
			return err
		}
		if pkt.TCP != nil {
			tcp := *pkt.TCP
			tcp.Seq += uint32(i * len(pkt.Payload))
			pkt.TCP = &tcp
		}

		frame, err := pkt.Serialize()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * opts.Interval),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pw.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}
	return nil
}

// template returns the layer stack shared by every frame.
func (opts buildOptions) template() (encoder.Packet, error) {
	var pkt encoder.Packet

	srcMAC, err := netaddr.ParseHW(opts.SrcMAC)
	if err != nil {
		return pkt, fmt.Errorf("--src-mac: %w", err)
	}
	dstMAC, err := netaddr.ParseHW(opts.DstMAC)
	if err != nil {
		return pkt, fmt.Errorf("--dst-mac: %w", err)
	}
	pkt.Ethernet = &encoder.Ethernet{Src: srcMAC, Dst: dstMAC, VLAN: opts.VLAN}

	src, err := netip.ParseAddr(opts.SrcIP)
	if err != nil {
		return pkt, fmt.Errorf("--src-ip: %w", err)
	}
	dst, err := netip.ParseAddr(opts.DstIP)
	if err != nil {
		return pkt, fmt.Errorf("--dst-ip: %w", err)
	}
	src4, srcIs4 := netaddr.IPv4FromAddr(src)
	dst4, dstIs4 := netaddr.IPv4FromAddr(dst)
	switch {
	case srcIs4 && dstIs4:
		pkt.IPv4 = &encoder.IPv4{Src: src4, Dst: dst4, TTL: opts.TTL, DontFragment: true}
	case !srcIs4 && !dstIs4:
		pkt.IPv6 = &encoder.IPv6{Src: netaddr.IPv6FromAddr(src), Dst: netaddr.IPv6FromAddr(dst), HopLimit: opts.TTL}
	default:
		return pkt, fmt.Errorf("--src-ip %s and --dst-ip %s are of different families", src, dst)
	}

	switch strings.ToLower(opts.Proto) {
	case "udp":
		pkt.UDP = &encoder.UDP{SrcPort: opts.SrcPort, DstPort: opts.DstPort}
	case "tcp":
		pkt.TCP = &encoder.TCP{
			SrcPort: opts.SrcPort,
			DstPort: opts.DstPort,
			Seq:     1,
			Flags:   encoder.FlagPSH | encoder.FlagACK,
			Window:  65535,
		}
	default:
		return pkt, fmt.Errorf("--proto must be udp or tcp, got %q", opts.Proto)
	}
	return pkt, nil
}

// payload returns the application payload of frame i.
func (opts buildOptions) payload(i int) ([]byte, error) {
	if !opts.RTP {
		return []byte(opts.Payload), nil
	}

	h := rtp.Header{
		Marker:         i == 0,
		PayloadType:    opts.RTPType,
		SequenceNumber: uint16(i),
		Timestamp:      uint32(i) * opts.RTPTSStride,
		SSRC:           opts.RTPSSRC,
	}
	buf := make([]byte, h.Len()+len(opts.Payload))
	n, err := h.SerializeTo(buf)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	copy(buf[n:], opts.Payload)
	return buf, nil
}
