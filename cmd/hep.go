package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/wire/internal/config"
	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/log"
	"firestige.xyz/wire/internal/metrics"
	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/plugin"
	"firestige.xyz/wire/plugins/reporter/console"
	"firestige.xyz/wire/plugins/reporter/hep"
)

var (
	hepOutput  string
	hepLimit   int
	hepServers []string
	hepFormat  string
)

// hepCmd represents the hep command group
var hepCmd = &cobra.Command{
	Use:   "hep",
	Short: "Encode, decode and send HEPv3 frames",
	Long: `Work with HEPv3 (Homer Encapsulation Protocol) frames.

Subcommands:
  encode  - Encode the frames of a capture into a HEP stream file
  decode  - Print the frames of a HEP stream file
  send    - Replay a capture to HEP collectors over UDP`,
}

// hepEncodeCmd represents the hep encode command
var hepEncodeCmd = &cobra.Command{
	Use:   "encode <capture>",
	Short: "Encode the frames of a capture into a HEP stream file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Create(hepOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", hepOutput, err)
		}
		n, err := runHEPEncode(cmd.Context(), cfg, args[0], hepLimit, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", n, hepOutput)
		return nil
	},
}

// hepDecodeCmd represents the hep decode command
var hepDecodeCmd = &cobra.Command{
	Use:   "decode <stream>",
	Short: "Print the frames of a HEP stream file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if hepFormat == console.FormatJSON {
			return runHEPDecodeJSON(cmd.Context(), data, cmd.OutOrStdout())
		}
		return runHEPDecode(data, cmd.OutOrStdout())
	},
}

// hepSendCmd represents the hep send command
var hepSendCmd = &cobra.Command{
	Use:   "send <capture>",
	Short: "Replay a capture to HEP collectors over UDP",
	Long: `Decode a capture, annotate RTP/RTCP and send every IP frame as a HEPv3
frame. Flows are pinned to one collector when several are configured.

Examples:
  wirectl hep send --server 127.0.0.1:9060 call.pcap
  WIRE_HEP_CAPTURE_ID=2001 wirectl -c wire.yml hep send call.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if len(hepServers) > 0 {
			c.HEP.Servers = hepServers
		}
		sent, err := runHEPSend(cmd.Context(), &c, args[0], hepLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d frames to %v\n", sent, c.HEP.Servers)
		return nil
	},
}

func init() {
	hepEncodeCmd.Flags().StringVarP(&hepOutput, "output", "o", "", "HEP stream file to write")
	_ = hepEncodeCmd.MarkFlagRequired("output")
	hepEncodeCmd.Flags().IntVarP(&hepLimit, "limit", "n", 0, "stop after this many frames (0 = all)")

	hepDecodeCmd.Flags().StringVarP(&hepFormat, "format", "f", "text", "output format: text or json")

	hepSendCmd.Flags().StringSliceVar(&hepServers, "server", nil, "collector host:port (overrides hep.servers)")
	hepSendCmd.Flags().IntVarP(&hepLimit, "limit", "n", 0, "stop after this many frames (0 = all)")

	hepCmd.AddCommand(hepEncodeCmd)
	hepCmd.AddCommand(hepDecodeCmd)
	hepCmd.AddCommand(hepSendCmd)
}

// runHEPEncode writes one HEP frame per IP frame of the capture to w and
// returns the number of frames written.
func runHEPEncode(ctx context.Context, c *config.Config, path string, limit int, w io.Writer) (int, error) {
	sw := hep.NewStreamWriter(w, c.HEP.EncodeOptions())
	err := forEachOutput(ctx, c, path, limit, sw)
	return sw.Frames(), err
}

// runHEPDecode prints every frame of a back-to-back HEP stream.
func runHEPDecode(stream []byte, w io.Writer) error {
	r := memory.NewReadCursor(stream)
	for i := 0; r.HasRemaining(); i++ {
		offset := len(stream) - r.Remaining()
		f, err := hep.ReadFrame(r)
		if err != nil {
			return fmt.Errorf("frame %d at offset %d: %w", i, offset, err)
		}

		p := f.Packet
		fmt.Fprintf(w, "%d %s %s -> %s proto=%d type=%s capture_id=%d len=%d",
			i, p.Timestamp.Format(time.RFC3339Nano), f.From, f.To, p.Protocol,
			p.PayloadType, f.CaptureID, len(p.RawPayload))
		if f.NodeName != "" {
			fmt.Fprintf(w, " node=%s", f.NodeName)
		}
		if f.CorrelationID != "" {
			fmt.Fprintf(w, " correlation_id=%s", f.CorrelationID)
		}
		for _, k := range slices.Sorted(maps.Keys(p.Labels)) {
			fmt.Fprintf(w, " %s=%s", k, p.Labels[k])
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// runHEPDecodeJSON prints the packet carried by every frame of a HEP stream
// as JSON lines, payload included.
func runHEPDecodeJSON(ctx context.Context, stream []byte, w io.Writer) error {
	reporter, err := console.NewReporter(w, console.FormatJSON, console.WithPayload())
	if err != nil {
		return err
	}

	r := memory.NewReadCursor(stream)
	for i := 0; r.HasRemaining(); i++ {
		offset := len(stream) - r.Remaining()
		f, err := hep.ReadFrame(r)
		if err != nil {
			return fmt.Errorf("frame %d at offset %d: %w", i, offset, err)
		}
		if err := reporter.Report(ctx, f.Packet); err != nil {
			return err
		}
	}
	return nil
}

// runHEPSend replays the capture to the configured collectors and returns the
// number of frames sent.
func runHEPSend(ctx context.Context, c *config.Config, path string, limit int) (uint64, error) {
	logger := log.GetLogger()
	reporter, err := hep.NewReporter(c.HEP, logger)
	if err != nil {
		return 0, err
	}

	if c.Metrics.Enabled {
		srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path, logger)
		if err := srv.Start(ctx); err != nil {
			return 0, err
		}
		defer srv.Stop(context.Background())
	}

	if err := reporter.Start(ctx); err != nil {
		return 0, err
	}
	defer reporter.Stop(context.Background())

	// A failed send is logged and the replay goes on.
	err = forEachOutput(ctx, c, path, limit, plugin.ReporterFunc(func(ctx context.Context, out *core.OutputPacket) error {
		if err := reporter.Report(ctx, out); err != nil {
			logger.WithError(err).Warn("hep report failed")
		}
		return nil
	}))
	return reporter.Sent(), err
}
