package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"

	"firestige.xyz/wire/internal/config"
	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/core/decoder"
	"firestige.xyz/wire/internal/log"
	"firestige.xyz/wire/internal/source/file"
	"firestige.xyz/wire/pkg/plugin"
	"firestige.xyz/wire/plugins/parser/rtp"
)

// frameSource is satisfied by file.Source.
type frameSource interface {
	Next() (core.RawPacket, error)
}

// replayStats summarizes one pass over a capture.
type replayStats struct {
	Frames int
	Errors int
}

// frameFunc receives each decoded frame. A decode failure is passed as err
// with a zero packet; returning an error stops the replay.
type frameFunc func(index int, pkt *core.DecodedPacket, err error) error

// replay decodes up to limit frames of src (all when limit <= 0).
func replay(ctx context.Context, src frameSource, dec decoder.Decoder, limit int, fn frameFunc) (replayStats, error) {
	var stats replayStats
	for limit <= 0 || stats.Frames < limit {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		pkt, decErr := dec.Decode(raw)
		if decErr != nil {
			stats.Errors++
		}
		if err := fn(stats.Frames, &pkt, decErr); err != nil {
			return stats, err
		}
		stats.Frames++
	}
	return stats, nil
}

// forEachOutput replays a capture and reports every decodable IP frame, with
// RTP/RTCP labels applied, to sink.
func forEachOutput(ctx context.Context, c *config.Config, path string, limit int, sink plugin.Reporter) error {
	src, err := openCapture(path)
	if err != nil {
		return err
	}
	defer src.Close()

	logger := log.GetLogger()
	dec := decoder.NewStandardDecoder(c.Decoder, decoder.WithLogger(logger))
	parser := rtp.NewParser()

	stats, err := replay(ctx, src, dec, limit, func(_ int, pkt *core.DecodedPacket, decErr error) error {
		if decErr != nil || !pkt.IP.SrcIP.IsValid() {
			return nil
		}
		return sink.Report(ctx, annotate(parser, c.HEP.NodeName, pkt))
	})
	logger.WithFields(map[string]interface{}{
		"file":   path,
		"frames": stats.Frames,
		"errors": stats.Errors,
	}).Info("capture replayed")
	return err
}

// openCapture opens an Ethernet capture file.
func openCapture(path string) (*file.Source, error) {
	src, err := file.Open(path)
	if err != nil {
		return nil, err
	}
	if lt := src.LinkType(); lt != layers.LinkTypeEthernet {
		src.Close()
		return nil, fmt.Errorf("%s: unsupported link type %s", path, lt)
	}
	return src, nil
}

// annotate builds the reporter envelope for pkt and applies RTP/RTCP labels
// when the payload looks like either.
func annotate(parser plugin.Parser, nodeID string, pkt *core.DecodedPacket) *core.OutputPacket {
	out := core.NewOutputPacket(nodeID, pkt)
	if !parser.CanHandle(pkt) {
		return out
	}

	payloadType, labels, err := parser.Handle(pkt)
	if err != nil {
		log.GetLogger().WithError(err).Debug("rtp parse failed, reporting raw payload")
		return out
	}
	out.PayloadType = payloadType
	out.Labels = labels
	return out
}
