package decoder

import (
	"fmt"
	"net/netip"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
	"firestige.xyz/wire/pkg/netaddr"
)

// fieldReader reads the consecutive fixed fields of one header and keeps the
// first cursor error, so the header is checked once after its last field.
type fieldReader struct {
	r   *memory.ReadCursor
	err error
}

func (f *fieldReader) u8() uint8 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadUint8()
	f.err = err
	return v
}

func (f *fieldReader) u16() uint16 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadUint16BE()
	f.err = err
	return v
}

func (f *fieldReader) u32() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadUint32BE()
	f.err = err
	return v
}

func (f *fieldReader) skip(n int) {
	if f.err != nil {
		return
	}
	f.err = f.r.Skip(n)
}

func (f *fieldReader) hw() netaddr.HWAddress {
	if f.err != nil {
		return netaddr.HWAddress{}
	}
	v, err := memory.ReadAddress[netaddr.HWAddress](f.r)
	f.err = err
	return v
}

func (f *fieldReader) ipv4() netip.Addr {
	if f.err != nil {
		return netip.Addr{}
	}
	v, err := memory.ReadAddress[netaddr.IPv4Address](f.r)
	f.err = err
	return v.Addr()
}

func (f *fieldReader) ipv6() netip.Addr {
	if f.err != nil {
		return netip.Addr{}
	}
	v, err := memory.ReadAddress[netaddr.IPv6Address](f.r)
	f.err = err
	return v.Addr()
}

// truncated reports a header that ran past the end of the captured bytes.
func truncated(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrPacketTooShort, what, err)
}
