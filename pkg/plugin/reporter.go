package plugin

import (
	"context"

	"firestige.xyz/wire/internal/core"
)

// Reporter sends output packets to external systems.
type Reporter interface {
	Report(ctx context.Context, pkt *core.OutputPacket) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, pkt *core.OutputPacket) error

// Report calls f(ctx, pkt).
func (f ReporterFunc) Report(ctx context.Context, pkt *core.OutputPacket) error {
	return f(ctx, pkt)
}
