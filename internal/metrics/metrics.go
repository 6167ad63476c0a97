// Package metrics implements Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/wire/pkg/memory"
)

var (
	// DecodePacketsTotal counts decoded frames by outcome
	DecodePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wire_decode_packets_total",
			Help: "Total number of frames passed to the decoder",
		},
		[]string{"result"},
	)

	// EncodePacketsTotal counts serialized packets and frames by outcome
	EncodePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wire_encode_packets_total",
			Help: "Total number of packets and frames serialized",
		},
		[]string{"format", "result"},
	)

	// CursorErrorsTotal counts bounds violations reported by the memory cursors
	CursorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wire_cursor_errors_total",
			Help: "Total number of cursor bounds violations by error kind",
		},
		[]string{"kind"},
	)
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Cursor error kind label values.
const (
	KindMalformedInput   = "malformed_input"
	KindCapacityExceeded = "capacity_exceeded"
	KindOther            = "other"
)

// ErrorKind classifies err by the cursor sentinel it wraps.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, memory.ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, memory.ErrSerializationCapacityExceeded):
		return KindCapacityExceeded
	default:
		return KindOther
	}
}

// ObserveDecode records the outcome of one decode call.
func ObserveDecode(err error) {
	if err == nil {
		DecodePacketsTotal.WithLabelValues(ResultOK).Inc()
		return
	}
	DecodePacketsTotal.WithLabelValues(ResultError).Inc()
	observeCursorError(err)
}

// ObserveEncode records the outcome of one serialization in the given format.
func ObserveEncode(format string, err error) {
	if err == nil {
		EncodePacketsTotal.WithLabelValues(format, ResultOK).Inc()
		return
	}
	EncodePacketsTotal.WithLabelValues(format, ResultError).Inc()
	observeCursorError(err)
}

func observeCursorError(err error) {
	if kind := ErrorKind(err); kind != KindOther {
		CursorErrorsTotal.WithLabelValues(kind).Inc()
	}
}
