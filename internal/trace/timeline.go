package trace

import "sort"

// Assemble finalizes a parse pass: entries are stably sorted by step
// (already monotonic), renumbered 1..N so skipped lines leave no gaps,
// given their final synthetic timestamps, and summarized.
func Assemble(entries []Entry, stepUs int64) *Timeline {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Step < entries[j].Step
	})

	var sum Summary
	for i := range entries {
		entries[i].Step = i + 1
		entries[i].Timestamp = int64(i+1) * stepUs

		switch entries[i].Direction {
		case DirectionTransmit:
			sum.Transmit++
		case DirectionReceive:
			sum.Receive++
		default:
			sum.Other++
		}
		if d := len(entries[i].Stack); d > sum.MaxDepth {
			sum.MaxDepth = d
		}
	}
	sum.EntryCount = len(entries)

	return &Timeline{Entries: entries, Summary: sum}
}

// MergeLocations splices resolved source locations into the timeline,
// keyed by function name. Only the file/line fields of matching entries
// and stack frames are overwritten; every other field is left untouched.
func (t *Timeline) MergeLocations(locations map[string]Location) {
	for i := range t.Entries {
		e := &t.Entries[i]
		if loc, ok := locations[e.Function]; ok {
			e.Source.File = loc.File
			e.Source.Line = loc.Line
		}
		for j := range e.Stack {
			if loc, ok := locations[e.Stack[j].Function]; ok {
				e.Stack[j].File = loc.File
				e.Stack[j].Line = loc.Line
			}
		}
	}
}
