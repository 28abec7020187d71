package trace

import "strings"

// Direction rule tables. Ordered, first match wins; transmit is always
// checked before receive so the precedence is independently verifiable.
// These are substring heuristics over kernel symbol names, not semantic
// analysis.
var (
	transmitMarkers = []string{
		"sendmsg",
		"xmit",
		"transmit",
		"_tx",
		"tx_",
		"send",
		"output",
		"queue_xmit",
	}

	receiveMarkers = []string{
		"recvmsg",
		"_rcv",
		"rcv",
		"recv",
		"receive",
		"_rx",
		"rx_",
		"input",
		"deliver",
		"backlog",
	}
)

// Classify assigns a direction to a traced function. The function name
// is checked first (transmit markers, then receive markers); if neither
// matches, the concatenated names of the enclosing stack are scanned the
// same way. No match yields DirectionOther.
//
// Classify is a pure function of its arguments; direction inheritance
// across OTHER entries is the caller's concern.
func Classify(function string, stack []CallFrame) Direction {
	if d := matchMarkers(function); d != DirectionOther {
		return d
	}

	if len(stack) == 0 {
		return DirectionOther
	}
	var b strings.Builder
	for _, f := range stack {
		b.WriteString(f.Function)
		b.WriteByte(' ')
	}
	return matchMarkers(b.String())
}

// matchMarkers checks s against the transmit table, then the receive
// table. First match wins.
func matchMarkers(s string) Direction {
	for _, m := range transmitMarkers {
		if strings.Contains(s, m) {
			return DirectionTransmit
		}
	}
	for _, m := range receiveMarkers {
		if strings.Contains(s, m) {
			return DirectionReceive
		}
	}
	return DirectionOther
}
