package trace

import (
	"fmt"
	"strings"
)

// Protocol tag table. Ordered, first match wins: more specific protocols
// are listed before the bare "ip" substring.
var protocolMarkers = []struct {
	marker string
	tag    string
}{
	{"tcp", "TCP"},
	{"udp", "UDP"},
	{"icmp", "ICMP"},
	{"arp", "ARP"},
	{"ip6", "IPv6"},
	{"ipv6", "IPv6"},
	{"ip", "IP"},
	{"eth", "ETH"},
	{"dev", "ETH"},
}

// Synthetic buffer geometry. The values are illustrative, chosen to look
// like plausible sk_buff contents while staying fully reproducible.
const (
	synthBaseAddr   = 0xffff880000001000
	synthAddrStride = 0x40
	headerOverhead  = 54 // eth + ip + tcp, the usual textbook figure
)

// SynthesizeBuffer derives a synthetic buffer state from the function
// name, the entry's direction, and its sequence step. Pure function:
// identical inputs always produce identical output, which is what makes
// timeline fixtures reproducible.
func SynthesizeBuffer(function string, dir Direction, step int) BufferState {
	var length int
	switch dir {
	case DirectionTransmit:
		// Outbound buffers shrink toward the wire as headers are filled in.
		length = 1514 - (step*7)%512
	case DirectionReceive:
		// Inbound buffers grow from the minimum frame upward.
		length = 60 + (step*13)%1454
	default:
		length = 256 + (step*5)%256
	}

	dataLen := length - headerOverhead
	if dataLen < 0 {
		dataLen = 0
	}

	return BufferState{
		Addr:     fmt.Sprintf("0x%016x", uint64(synthBaseAddr)+uint64(step)*synthAddrStride),
		Len:      length,
		DataLen:  dataLen,
		Protocol: protocolTag(function),
	}
}

// protocolTag returns the protocol indicated by the function name, or
// "ETH" when no marker matches.
func protocolTag(function string) string {
	lower := strings.ToLower(function)
	for _, p := range protocolMarkers {
		if strings.Contains(lower, p.marker) {
			return p.tag
		}
	}
	return "ETH"
}
