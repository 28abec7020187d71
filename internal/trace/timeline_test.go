package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTimeline(t *testing.T) *Timeline {
	t.Helper()
	tl, err := NewParser(2, 1000).ParseText(
		" 0)               |  udp_rcv() {\n" +
			" 0)   0.400 us    |    __kfree_skb();\n" +
			" 0)   1.900 us    |  }\n")
	require.NoError(t, err)
	return tl
}

func TestAssemble_RenumbersDensely(t *testing.T) {
	entries := []Entry{
		{Step: 3, Function: "a", Direction: DirectionOther, Stack: []CallFrame{{Function: "a"}}},
		{Step: 7, Function: "b", Direction: DirectionOther, Stack: []CallFrame{{Function: "b"}}},
		{Step: 9, Function: "c", Direction: DirectionOther, Stack: []CallFrame{{Function: "c"}}},
	}
	tl := Assemble(entries, 500)

	require.Equal(t, []int{1, 2, 3}, []int{tl.Entries[0].Step, tl.Entries[1].Step, tl.Entries[2].Step})
	require.Equal(t, int64(500), tl.Entries[0].Timestamp)
	require.Equal(t, int64(1500), tl.Entries[2].Timestamp)
	require.Equal(t, 3, tl.Summary.EntryCount)
	require.Equal(t, 3, tl.Summary.Other)
}

// Merging a location map changes only the file/line fields of matching
// entries; everything else is bit-identical before and after.
func TestMergeLocations_RoundTrip(t *testing.T) {
	tl := sampleTimeline(t)

	before, err := json.Marshal(tl)
	require.NoError(t, err)

	tl.MergeLocations(map[string]Location{
		"udp_rcv": {File: "net/ipv4/udp.c", Line: 2412},
	})

	// Matched entry: file/line updated.
	require.Equal(t, "net/ipv4/udp.c", tl.Entries[0].Source.File)
	require.Equal(t, 2412, tl.Entries[0].Source.Line)
	require.Equal(t, "net/ipv4/udp.c", tl.Entries[1].Stack[0].File)

	// Unmatched entry keeps its placeholder.
	require.Equal(t, UnknownFile, tl.Entries[1].Source.File)
	require.Equal(t, 0, tl.Entries[1].Source.Line)

	// Undo the merge; the document must return to its exact prior form.
	tl.MergeLocations(map[string]Location{
		"udp_rcv": {File: UnknownFile, Line: 0},
	})
	after, err := json.Marshal(tl)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))
}

func TestMergeLocations_EmptyMapIsNoop(t *testing.T) {
	tl := sampleTimeline(t)
	before, err := json.Marshal(tl)
	require.NoError(t, err)

	tl.MergeLocations(nil)

	after, err := json.Marshal(tl)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))
}

func TestFunctions_DistinctFirstAppearance(t *testing.T) {
	tl := sampleTimeline(t)
	require.Equal(t, []string{"udp_rcv", "__kfree_skb"}, tl.Functions())
}

func TestFunctions_NoDuplicatesAcrossEntries(t *testing.T) {
	tl, err := NewParser(2, 1000).ParseText(
		" 0)               |  ip_rcv() {\n" +
			" 0)   0.100 us    |    ip_rcv_core();\n" +
			" 0)   0.100 us    |    ip_rcv_core();\n" +
			" 0)   1.000 us    |  }\n")
	require.NoError(t, err)
	require.Equal(t, []string{"ip_rcv", "ip_rcv_core"}, tl.Functions())
}
