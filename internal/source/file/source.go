// Package file reads captured frames from pcap and pcapng files.
package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wire/internal/core"
)

// pcapng files start with a Section Header Block.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// ErrNotOpen is returned by Next after Close.
var ErrNotOpen = errors.New("file source: not open")

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source replays the frames of a capture file in file order.
type Source struct {
	path   string
	f      *os.File
	reader packetReader
	ng     bool
}

// Open opens path and detects whether it holds a pcap or pcapng capture.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	s, err := newSource(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.f = f
	return s, nil
}

func newSource(path string, r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header of %s: %w", path, err)
	}

	s := &Source{path: path}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to read pcapng file %s: %w", path, err)
		}
		s.reader, s.ng = ng, true
		return s, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap file %s: %w", path, err)
	}
	s.reader = pr
	return s, nil
}

// Next returns the next frame, or io.EOF once the file is exhausted.
func (s *Source) Next() (core.RawPacket, error) {
	if s.reader == nil {
		return core.RawPacket{}, ErrNotOpen
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet from %s: %w", s.path, err)
	}

	return core.RawPacket{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// LinkType returns the link type declared by the capture.
func (s *Source) LinkType() layers.LinkType {
	if s.reader == nil {
		return layers.LinkTypeEthernet
	}
	return s.reader.LinkType()
}

// IsPcapNG reports whether the file is in pcapng format.
func (s *Source) IsPcapNG() bool {
	return s.ng
}

// Close releases the file. It is safe to call more than once.
func (s *Source) Close() error {
	s.reader = nil
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
