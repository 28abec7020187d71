package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, lines ...string) *Timeline {
	t.Helper()
	tl, err := NewParser(2, 1000).ParseText(strings.Join(lines, "\n"))
	require.NoError(t, err)
	return tl
}

// Scenario: an entry opening a body, a nested leaf call, and the closing
// brace. Two entries, steps 1 and 2, stack depths 1 and 2, both RECEIVE.
func TestParse_EntryLeafExit(t *testing.T) {
	tl := parseLines(t,
		" 3)               |  udp_rcv() {",
		" 3)   1.213 us    |    __kfree_skb();",
		" 3)   4.712 us    |  }",
	)

	require.Len(t, tl.Entries, 2)

	first := tl.Entries[0]
	require.Equal(t, 1, first.Step)
	require.Equal(t, "udp_rcv", first.Function)
	require.Equal(t, KindEntry, first.Kind)
	require.Equal(t, DirectionReceive, first.Direction)
	require.Len(t, first.Stack, 1)

	second := tl.Entries[1]
	require.Equal(t, 2, second.Step)
	require.Equal(t, "__kfree_skb", second.Function)
	require.Equal(t, KindCall, second.Kind)
	// Inherits RECEIVE from the enclosing udp_rcv frame.
	require.Equal(t, DirectionReceive, second.Direction)
	require.Len(t, second.Stack, 2)
	require.Equal(t, "udp_rcv", second.Stack[0].Function)
	require.Equal(t, "__kfree_skb", second.Stack[1].Function)

	// The exit's duration lands on the still-open udp_rcv entry.
	require.Equal(t, 4.712, first.DurationUs)
	require.Equal(t, 1.213, second.DurationUs)
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := NewParser(2, 1000).ParseText("")
	require.ErrorIs(t, err, ErrNoData)
}

func TestParse_OnlyHeadersAndGarbage(t *testing.T) {
	_, err := NewParser(2, 1000).ParseText(strings.Join([]string{
		"# tracer: function_graph",
		"#",
		"# CPU  DURATION                  FUNCTION CALLS",
		"total garbage that matches nothing",
		"",
	}, "\n"))
	require.ErrorIs(t, err, ErrNoData)
}

func TestParse_SkipsUnparseableLinesWithoutGaps(t *testing.T) {
	tl := parseLines(t,
		"# tracer: function_graph",
		" 1)               |  ip_rcv() {",
		"!!! corrupted line !!!",
		" 1)   0.500 us    |    ip_rcv_core();",
		"",
		" 1)   2.100 us    |  }",
	)

	// Steps form the contiguous range 1..N.
	require.Len(t, tl.Entries, 2)
	for i, e := range tl.Entries {
		require.Equal(t, i+1, e.Step)
	}
}

func TestParse_SyntheticTimestampsMonotonic(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  ip_output() {",
		" 0)   0.200 us    |    nf_hook();",
		" 0)   0.300 us    |    neigh_resolve();",
		" 0)   1.000 us    |  }",
	)

	require.Len(t, tl.Entries, 3)
	var prev int64
	for _, e := range tl.Entries {
		require.Greater(t, e.Timestamp, prev)
		require.Equal(t, int64(e.Step)*1000, e.Timestamp)
		prev = e.Timestamp
	}
}

// A child entry's snapshot must extend its parent's snapshot by exactly
// one frame at the moment of entry.
func TestParse_SnapshotIsStrictExtension(t *testing.T) {
	tl := parseLines(t,
		" 2)               |  tcp_sendmsg() {",
		" 2)               |    tcp_push() {",
		" 2)               |      tcp_write_xmit() {",
		" 2)   0.900 us    |        tcp_transmit_skb();",
		" 2)   1.500 us    |      }",
		" 2)   2.000 us    |    }",
		" 2)   3.000 us    |  }",
	)

	require.Len(t, tl.Entries, 4)
	for i := 1; i < len(tl.Entries); i++ {
		parent := tl.Entries[i-1].Stack
		child := tl.Entries[i].Stack
		require.Len(t, child, len(parent)+1)
		for j := range parent {
			require.Equal(t, parent[j].Function, child[j].Function)
		}
	}
}

// Snapshots are deep copies: the stack keeps mutating after each entry is
// recorded, and earlier snapshots must not see those mutations.
func TestParse_SnapshotsAreIndependent(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  ip_rcv() {",
		" 0)   0.100 us    |    ip_rcv_core();",
		" 0)   1.000 us    |  }",
		" 0)               |  ip_local_deliver() {",
		" 0)   0.200 us    |    raw_local_deliver();",
		" 0)   1.100 us    |  }",
	)

	require.Len(t, tl.Entries, 4)
	// The first snapshot still names ip_rcv even though the stack has
	// since been replaced by ip_local_deliver.
	require.Equal(t, "ip_rcv", tl.Entries[0].Stack[0].Function)
	require.Equal(t, "ip_local_deliver", tl.Entries[2].Stack[0].Function)
}

// An entry line at a depth that is already occupied unwinds the stack
// first, modeling ftrace resuming between threads without explicit exits.
func TestParse_MissingExitsUnwind(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  tcp_sendmsg() {",
		" 0)               |    tcp_push() {",
		" 0)               |  udp_rcv() {",
		" 0)   0.400 us    |    udp_unicast_rcv_skb();",
	)

	require.Len(t, tl.Entries, 4)
	// udp_rcv replaced the whole tcp stack rather than nesting under it.
	require.Len(t, tl.Entries[2].Stack, 1)
	require.Equal(t, "udp_rcv", tl.Entries[2].Stack[0].Function)
	require.Len(t, tl.Entries[3].Stack, 2)
}

// Leaf calls capture a view without mutating the persistent stack.
func TestParse_LeafDoesNotNest(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  ip_rcv() {",
		" 0)   0.100 us    |    skb_pull();",
		" 0)   0.100 us    |    skb_trim();",
	)

	require.Len(t, tl.Entries, 3)
	// Both leaves sit directly under ip_rcv; the first leaf did not
	// become the second one's parent.
	require.Len(t, tl.Entries[1].Stack, 2)
	require.Len(t, tl.Entries[2].Stack, 2)
	require.Equal(t, "ip_rcv", tl.Entries[2].Stack[0].Function)
}

func TestParse_DurationFallsBackToZero(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  ip_rcv() {",
		" 0)   garbage     |    skb_pull();",
		" 0)   1.000 us    |  }",
	)

	require.Len(t, tl.Entries, 2)
	require.Equal(t, float64(0), tl.Entries[1].DurationUs)
}

func TestParse_ExitDurationSkipsAlreadyAssigned(t *testing.T) {
	// The inner exit assigns to tcp_push; the outer exit must then assign
	// to tcp_sendmsg, not overwrite tcp_push.
	tl := parseLines(t,
		" 0)               |  tcp_sendmsg() {",
		" 0)               |    tcp_push() {",
		" 0)   1.500 us    |    }",
		" 0)   3.000 us    |  }",
	)

	require.Len(t, tl.Entries, 2)
	require.Equal(t, 3.000, tl.Entries[0].DurationUs)
	require.Equal(t, 1.500, tl.Entries[1].DurationUs)
}

func TestParse_TaskColumnTolerated(t *testing.T) {
	// funcgraph-proc adds a task/pid column and a second separator.
	tl := parseLines(t,
		" 3)  sshd-1234   |               |  tcp_sendmsg() {",
		" 3)  sshd-1234   |   0.250 us    |    tcp_push();",
		" 3)  sshd-1234   |   1.250 us    |  }",
	)

	require.Len(t, tl.Entries, 2)
	require.Equal(t, "tcp_sendmsg", tl.Entries[0].Function)
	require.Equal(t, DirectionTransmit, tl.Entries[0].Direction)
}

func TestParse_ExitWithFunctionComment(t *testing.T) {
	tl := parseLines(t,
		" 1)               |  udp_rcv() {",
		" 1)   2.000 us    |  } /* udp_rcv */",
	)

	require.Len(t, tl.Entries, 1)
	require.Equal(t, 2.000, tl.Entries[0].DurationUs)
}

func TestParse_SummaryCounts(t *testing.T) {
	tl := parseLines(t,
		" 0)               |  udp_rcv() {",
		" 0)   0.100 us    |    sock_def_readable();",
		" 0)   1.000 us    |  }",
		" 0)               |  udp_sendmsg() {",
		" 0)   0.900 us    |  }",
	)

	require.Equal(t, 3, tl.Summary.EntryCount)
	require.Equal(t, 2, tl.Summary.Receive) // leaf inherits RECEIVE
	require.Equal(t, 1, tl.Summary.Transmit)
	require.Equal(t, 0, tl.Summary.Other)
	require.Equal(t, 2, tl.Summary.MaxDepth)
}
