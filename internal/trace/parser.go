package trace

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoData is returned when the input contained zero parseable trace
// lines. Callers must treat this as a distinct "no data produced"
// outcome, not a parse error.
var ErrNoData = errors.New("trace: input contained no parseable lines")

// Line forms of function_graph output, tried in priority order. The
// prefix group greedily eats everything through the last column
// separator so the optional CPU/task/duration columns never interfere
// with the indentation that encodes nesting depth.
var (
	// " 3)   1.213 us    |    udp_rcv() {"
	entryRe = regexp.MustCompile(`^\s*\d+\)(.*\|)( *)([A-Za-z_][\w.]*)\(\)\s*\{\s*$`)
	// " 3)   4.712 us    |  }" with an optional trailing "/* udp_rcv */"
	exitRe = regexp.MustCompile(`^\s*\d+\)(.*\|)( *)\}\s*(?:/\*.*\*/\s*)?$`)
	// " 3)   0.427 us    |      __kfree_skb();"
	callRe = regexp.MustCompile(`^\s*\d+\)(.*\|)( *)([A-Za-z_][\w.]*)\(\)\s*;\s*$`)

	durationRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*us`)
)

// Parser converts raw function_graph text into an ordered timeline.
// Parsing is strictly sequential: call-stack reconstruction depends on
// line order, so a single parse pass owns all mutable state.
type Parser struct {
	indentWidth int
	stepUs      int64
}

// NewParser creates a parser. indentWidth is the number of spaces per
// nesting level, stepUs the synthetic timestamp increment per step.
func NewParser(indentWidth int, stepUs int64) *Parser {
	if indentWidth <= 0 {
		indentWidth = 2
	}
	if stepUs <= 0 {
		stepUs = 1000
	}
	return &Parser{indentWidth: indentWidth, stepUs: stepUs}
}

// parseState is the single owned mutable value threaded through one pass.
type parseState struct {
	entries []Entry

	// stack holds the currently open entry frames, strictly increasing
	// in depth from bottom to top. openIdx is kept parallel to stack and
	// maps each open frame to its entry index for duration assignment.
	stack   []CallFrame
	openIdx []int

	step    int
	lastDir Direction
}

// Parse consumes r line by line and returns the assembled timeline.
// Unrecognized lines are skipped; zero recognized lines yields ErrNoData.
func (p *Parser) Parse(r io.Reader) (*Timeline, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	st := &parseState{}
	for scanner.Scan() {
		p.consumeLine(st, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(st.entries) == 0 {
		return nil, ErrNoData
	}
	return Assemble(st.entries, p.stepUs), nil
}

// ParseText is a convenience wrapper over Parse for in-memory input.
func (p *Parser) ParseText(text string) (*Timeline, error) {
	return p.Parse(strings.NewReader(text))
}

// consumeLine classifies one raw line and updates the parse state.
func (p *Parser) consumeLine(st *parseState, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	if m := entryRe.FindStringSubmatch(line); m != nil {
		depth := len(m[2]) / p.indentWidth
		// ftrace output resumes mid-stack between tasks and sibling
		// calls; dropping everything at >= depth tolerates missing exits.
		p.dropFrames(st, depth, 0)
		st.stack = append(st.stack, CallFrame{
			Function: m[3],
			File:     UnknownFile,
			Depth:    depth,
		})
		st.openIdx = append(st.openIdx, len(st.entries))
		p.appendEntry(st, m[3], KindEntry, snapshotStack(st.stack), 0)
		return
	}

	if m := exitRe.FindStringSubmatch(line); m != nil {
		depth := len(m[2]) / p.indentWidth
		p.dropFrames(st, depth, parseDuration(m[1]))
		return
	}

	if m := callRe.FindStringSubmatch(line); m != nil {
		depth := len(m[2]) / p.indentWidth
		// Leaf calls do not nest: capture a view of the stack below the
		// leaf plus the leaf itself, without touching the persistent stack.
		view := st.stack
		for len(view) > 0 && view[len(view)-1].Depth >= depth {
			view = view[:len(view)-1]
		}
		snapshot := make([]CallFrame, len(view), len(view)+1)
		copy(snapshot, view)
		snapshot = append(snapshot, CallFrame{
			Function: m[3],
			File:     UnknownFile,
			Depth:    depth,
		})
		p.appendEntry(st, m[3], KindCall, snapshot, parseDuration(m[1]))
		return
	}
}

// dropFrames pops all frames at >= depth. When durationUs is positive,
// the most recently opened popped entry that has not yet received a
// duration is assigned it.
func (p *Parser) dropFrames(st *parseState, depth int, durationUs float64) {
	assigned := durationUs <= 0
	for len(st.stack) > 0 && st.stack[len(st.stack)-1].Depth >= depth {
		idx := st.openIdx[len(st.openIdx)-1]
		st.stack = st.stack[:len(st.stack)-1]
		st.openIdx = st.openIdx[:len(st.openIdx)-1]
		if !assigned && st.entries[idx].DurationUs == 0 {
			st.entries[idx].DurationUs = durationUs
			assigned = true
		}
	}
}

// appendEntry builds one timeline entry from the current state. The
// snapshot must already be an independent copy: the stack keeps mutating
// after this entry is recorded.
func (p *Parser) appendEntry(st *parseState, function string, kind EventKind, snapshot []CallFrame, durationUs float64) {
	st.step++

	classified := Classify(function, snapshot[:len(snapshot)-1])
	display := classified
	if classified == DirectionOther {
		if st.lastDir != "" {
			display = st.lastDir
		}
	} else {
		st.lastDir = classified
	}

	st.entries = append(st.entries, Entry{
		Step:       st.step,
		Timestamp:  int64(st.step) * p.stepUs,
		Function:   function,
		Kind:       kind,
		Direction:  display,
		Classified: classified,
		Stack:      snapshot,
		Buffer:     SynthesizeBuffer(function, display, st.step),
		DurationUs: durationUs,
		Source:     SourceInfo{File: UnknownFile},
	})
}

// snapshotStack returns a deep, independent copy of the current stack.
func snapshotStack(stack []CallFrame) []CallFrame {
	out := make([]CallFrame, len(stack))
	copy(out, stack)
	return out
}

// parseDuration extracts a microsecond duration from a line's column
// prefix. A prefix that carries no parseable duration yields zero; a
// partially matching line never aborts the pass.
func parseDuration(prefix string) float64 {
	m := durationRe.FindStringSubmatch(prefix)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
