// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/pkg/memory"
)

const (
	// Ethernet constants
	ethernetHeaderLen   = 14
	defaultMaxVLANDepth = 2
)

// decodeEthernet decodes Ethernet frame header (including VLAN tags).
// On return r is positioned at the frame payload.
func decodeEthernet(r *memory.ReadCursor, maxVLANs int) (core.EthernetHeader, error) {
	f := fieldReader{r: r}

	eth := core.EthernetHeader{}
	eth.DstMAC = f.hw()
	eth.SrcMAC = f.hw()
	etherType := f.u16()
	if f.err != nil {
		return eth, truncated("ethernet header", f.err)
	}

	// Handle VLAN tags (can be nested: QinQ)
	var vlans []uint16
	for etherType == core.EtherTypeVLAN || etherType == core.EtherTypeQinQ {
		if len(vlans) == maxVLANs {
			return eth, fmt.Errorf("%w: more than %d VLAN tags", core.ErrInvalidHeader, maxVLANs)
		}
		// VLAN header: 2 bytes TCI + 2 bytes EtherType
		tci := f.u16()
		etherType = f.u16()
		if f.err != nil {
			return eth, truncated("vlan tag", f.err)
		}
		vlans = append(vlans, tci&0x0FFF) // Lower 12 bits are VLAN ID
	}

	eth.EtherType = etherType
	eth.VLANs = vlans
	return eth, nil
}

func isIPEtherType(etherType uint16) bool {
	return etherType == core.EtherTypeIPv4 || etherType == core.EtherTypeIPv6
}
