package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/core/decoder"
	"firestige.xyz/wire/plugins/parser/rtp"
	"firestige.xyz/wire/plugins/reporter/console"
)

var (
	decodeLimit   int
	decodeTunnels bool
	decodeFormat  string
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Decode the frames of a pcap or pcapng file",
	Long: `Decode every frame of a capture file and print one line per frame with
its addresses, ports, payload size and RTP/RTCP labels. The json format
prints one reporter envelope per IP frame instead.

Examples:
  wirectl decode call.pcap
  wirectl decode --tunnels --limit 100 overlay.pcapng
  wirectl decode --format json call.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decCfg := cfg.Decoder
		if cmd.Flags().Changed("tunnels") {
			decCfg.DecodeTunnels = decodeTunnels
		}
		if decodeFormat == console.FormatJSON {
			return runDecodeJSON(cmd.Context(), decCfg, args[0], decodeLimit, cmd.OutOrStdout())
		}
		return runDecode(cmd.Context(), decCfg, args[0], decodeLimit, cmd.OutOrStdout())
	},
}

func init() {
	decodeCmd.Flags().IntVarP(&decodeLimit, "limit", "n", 0, "stop after this many frames (0 = all)")
	decodeCmd.Flags().BoolVar(&decodeTunnels, "tunnels", false, "decapsulate VXLAN, Geneve, GRE and IP-in-IP")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "text", "output format: text or json")
}

func runDecode(ctx context.Context, decCfg decoder.Config, path string, limit int, w io.Writer) error {
	src, err := openCapture(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dec := decoder.NewStandardDecoder(decCfg)
	parser := rtp.NewParser()

	stats, err := replay(ctx, src, dec, limit, func(i int, pkt *core.DecodedPacket, decErr error) error {
		if decErr != nil {
			_, err := fmt.Fprintf(w, "%d error: %v\n", i, decErr)
			return err
		}
		_, err := fmt.Fprintln(w, formatPacket(i, pkt, parser))
		return err
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "frames=%d errors=%d\n", stats.Frames, stats.Errors)
	return err
}

// runDecodeJSON prints the reporter envelope of every IP frame as JSON lines.
func runDecodeJSON(ctx context.Context, decCfg decoder.Config, path string, limit int, w io.Writer) error {
	reporter, err := console.NewReporter(w, console.FormatJSON)
	if err != nil {
		return err
	}

	c := *cfg
	c.Decoder = decCfg
	return forEachOutput(ctx, &c, path, limit, reporter)
}

func formatPacket(i int, pkt *core.DecodedPacket, parser *rtp.Parser) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s ", i, pkt.Timestamp.UTC().Format(time.RFC3339Nano))

	if !pkt.IP.SrcIP.IsValid() {
		fmt.Fprintf(&b, "ethertype=0x%04x len=%d", pkt.Ethernet.EtherType, len(pkt.Payload))
		return b.String()
	}

	out := annotate(parser, "", pkt)
	fmt.Fprintf(&b, "%s:%d -> %s:%d proto=%d len=%d",
		out.SrcIP, out.SrcPort, out.DstIP, out.DstPort, out.Protocol, len(pkt.Payload))
	if len(pkt.Ethernet.VLANs) > 0 {
		fmt.Fprintf(&b, " vlan=%v", pkt.Ethernet.VLANs)
	}
	if pkt.IP.Fragment {
		b.WriteString(" fragment")
	}
	if pkt.Tunneled {
		fmt.Fprintf(&b, " outer=%s->%s", pkt.IP.SrcIP, pkt.IP.DstIP)
	}

	if len(out.Labels) > 0 {
		fmt.Fprintf(&b, " %s", out.PayloadType)
		for _, k := range slices.Sorted(maps.Keys(out.Labels)) {
			fmt.Fprintf(&b, " %s=%s", k, out.Labels[k])
		}
	}
	return b.String()
}
