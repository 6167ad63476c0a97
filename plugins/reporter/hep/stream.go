package hep

import (
	"context"
	"fmt"
	"io"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/plugin"
)

// StreamWriter writes packets as back-to-back HEPv3 frames, the layout
// ReadFrame walks.
type StreamWriter struct {
	w      io.Writer
	opts   EncodeOptions
	buf    []byte
	frames int
}

var _ plugin.Reporter = (*StreamWriter)(nil)

// NewStreamWriter returns a StreamWriter encoding with opts.
func NewStreamWriter(w io.Writer, opts EncodeOptions) *StreamWriter {
	return &StreamWriter{w: w, opts: opts, buf: make([]byte, maxFrameLen)}
}

// Report encodes pkt into the reused frame buffer and writes it.
func (s *StreamWriter) Report(_ context.Context, pkt *core.OutputPacket) error {
	n, err := EncodeTo(s.buf, pkt, s.opts)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(s.buf[:n]); err != nil {
		return fmt.Errorf("hep stream: write: %w", err)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *StreamWriter) Frames() int { return s.frames }
