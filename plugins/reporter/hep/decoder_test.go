package hep

import (
	"bytes"
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

func TestDecode_RoundTripIPv4(t *testing.T) {
	pkt := makePacket()
	frame, err := Encode(pkt, EncodeOptions{CaptureID: 42, AuthKey: "secret"})
	require.NoError(t, err)

	f, err := Decode(frame)
	require.NoError(t, err)

	got := f.Packet
	assert.Equal(t, pkt.SrcIP, got.SrcIP)
	assert.Equal(t, pkt.DstIP, got.DstIP)
	assert.Equal(t, pkt.SrcPort, got.SrcPort)
	assert.Equal(t, pkt.DstPort, got.DstPort)
	assert.Equal(t, pkt.Protocol, got.Protocol)
	assert.True(t, pkt.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, "sip", got.PayloadType)
	assert.Equal(t, pkt.RawPayload, got.RawPayload)
	assert.Equal(t, pkt.NodeID, got.NodeID)
	assert.Equal(t, pkt.Labels, got.Labels)

	assert.Equal(t, uint32(42), f.CaptureID)
	assert.Equal(t, "secret", f.AuthKey)
	assert.Equal(t, "abc-123@host", f.CorrelationID)
	assert.Equal(t, protoTypeSIP, f.ProtoType)
	assert.Empty(t, f.Unknown)
}

func TestDecode_RoundTripIPv6RTP(t *testing.T) {
	pkt := makePacket()
	pkt.SrcIP = netip.MustParseAddr("2001:db8::1")
	pkt.DstIP = netip.MustParseAddr("2001:db8::2")
	pkt.PayloadType = "rtp"
	pkt.Labels = core.Labels{core.LabelRTPCallID: "abc-123@host"}

	frame, err := Encode(pkt, EncodeOptions{})
	require.NoError(t, err)

	f, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, pkt.SrcIP, f.Packet.SrcIP)
	assert.Equal(t, pkt.DstIP, f.Packet.DstIP)
	assert.Equal(t, "rtp", f.Packet.PayloadType)
	assert.Equal(t, "abc-123@host", f.Packet.Labels[core.LabelRTPCallID])
	assert.Equal(t, "[2001:db8::1]:5060", f.From)
}

func TestDecode_IgnoresBytesPastTotalLength(t *testing.T) {
	frame, err := Encode(makePacket(), EncodeOptions{})
	require.NoError(t, err)

	padded := append(append([]byte(nil), frame...), 0xFF, 0xFF, 0xFF)
	f, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, makePacket().RawPayload, f.Packet.RawPayload)
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	frame, err := Encode(makePacket(), EncodeOptions{})
	require.NoError(t, err)

	f, err := Decode(frame)
	require.NoError(t, err)
	for i := range frame {
		frame[i] = 0
	}
	assert.Equal(t, makePacket().RawPayload, f.Packet.RawPayload)
}

func TestDecode_UnknownChunksKept(t *testing.T) {
	frame := []byte{
		'H', 'E', 'P', '3', 0x00, 0x1A,
		0x00, 0x00, 0x00, 0x63, 0x00, 0x08, 0xAA, 0xBB, // vendor 0, type 99
		0x00, 0x01, 0x00, 0x02, 0x00, 0x07, 0xCC, // vendor 1, type 2
		0x00, 0x00, 0x00, 0x07, 0x00, 0x08, 0x13, 0xC4, // src port 5060
	}
	frame[5] = byte(len(frame))

	f, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(5060), f.Packet.SrcPort)
	assert.Equal(t, []Chunk{
		{Vendor: 0, Type: 99, Value: []byte{0xAA, 0xBB}},
		{Vendor: 1, Type: 2, Value: []byte{0xCC}},
	}, f.Unknown)
	assert.Equal(t, "raw", f.Packet.PayloadType)
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode(makePacket(), EncodeOptions{})
	require.NoError(t, err)

	withLen := func(n uint16) []byte {
		b := append([]byte(nil), valid...)
		b[4], b[5] = byte(n>>8), byte(n)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, core.ErrPacketTooShort},
		{"no length", []byte("HEP3\x00"), core.ErrPacketTooShort},
		{"bad magic", []byte("HEP2\x00\x06"), core.ErrInvalidHeader},
		{"length below header", []byte("HEP3\x00\x05"), core.ErrInvalidHeader},
		{"length beyond data", withLen(uint16(len(valid) + 1)), memory.ErrMalformedInput},
		{"chunk header cut", withLen(frameHeaderLen + 3), core.ErrPacketTooShort},
		{"chunk value cut", withLen(frameHeaderLen + chunkHeaderLen), core.ErrPacketTooShort},
		{"chunk length below header", []byte("HEP3\x00\x0C\x00\x00\x00\x07\x00\x05"), core.ErrInvalidHeader},
		{"port chunk too wide", []byte("HEP3\x00\x0F\x00\x00\x00\x07\x00\x09\x00\x13\xC4"), core.ErrInvalidHeader},
		{"ipv4 chunk too short", []byte("HEP3\x00\x0F\x00\x00\x00\x03\x00\x09\x0A\x00\x00"), core.ErrInvalidHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.data)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadFrame_Stream(t *testing.T) {
	first := makePacket()
	second := makePacket()
	second.SrcPort = 5070

	a, err := Encode(first, EncodeOptions{CaptureID: 1})
	require.NoError(t, err)
	b, err := Encode(second, EncodeOptions{CaptureID: 2})
	require.NoError(t, err)

	r := memory.NewReadCursor(append(append([]byte{}, a...), b...))
	var ids []uint32
	var ports []uint16
	for r.HasRemaining() {
		f, err := ReadFrame(r)
		require.NoError(t, err)
		ids = append(ids, f.CaptureID)
		ports = append(ports, f.Packet.SrcPort)
	}
	assert.Equal(t, []uint32{1, 2}, ids)
	assert.Equal(t, []uint16{5060, 5070}, ports)
}

func TestReadFrame_TruncatedStreamLeavesCursor(t *testing.T) {
	frame, err := Encode(makePacket(), EncodeOptions{})
	require.NoError(t, err)

	stream := frame[:len(frame)-1]
	r := memory.NewReadCursor(stream)
	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
	assert.Equal(t, len(stream), r.Remaining())

	for _, short := range [][]byte{[]byte("HEP3"), []byte("HEP3\x00")} {
		r := memory.NewReadCursor(short)
		_, err = ReadFrame(r)
		assert.ErrorIs(t, err, core.ErrPacketTooShort)
		assert.ErrorIs(t, err, memory.ErrMalformedInput)
		assert.Equal(t, len(short), r.Remaining())
	}
}

func TestStreamWriter_ReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, EncodeOptions{CaptureID: 5})

	for _, port := range []uint16{1000, 2000, 3000} {
		pkt := makePacket()
		pkt.SrcPort = port
		require.NoError(t, sw.Report(context.Background(), pkt))
	}
	assert.Equal(t, 3, sw.Frames())

	r := memory.NewReadCursor(buf.Bytes())
	var ports []uint16
	for r.HasRemaining() {
		f, err := ReadFrame(r)
		require.NoError(t, err)
		assert.Equal(t, uint32(5), f.CaptureID)
		ports = append(ports, f.Packet.SrcPort)
	}
	assert.Equal(t, []uint16{1000, 2000, 3000}, ports)
}
