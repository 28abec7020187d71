package trace

// Direction classifies a traced function's role in the packet path.
type Direction string

const (
	DirectionTransmit Direction = "TRANSMIT"
	DirectionReceive  Direction = "RECEIVE"
	DirectionOther    Direction = "OTHER"
)

// EventKind distinguishes nested-call entries from leaf invocations.
type EventKind string

const (
	// KindEntry opens a nested call whose body is traced in later lines.
	KindEntry EventKind = "entry"
	// KindCall is a single leaf invocation with an inline duration.
	KindCall EventKind = "call"
)

// UnknownFile is the placeholder file recorded before resolution, and for
// functions whose definition could not be located.
const UnknownFile = "unknown"

// CallFrame is one function on the reconstructed call stack. File and Line
// start as placeholders and are overwritten by the location merge.
type CallFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Depth    int    `json:"depth"`
}

// BufferState is a deterministic, synthetic stand-in for packet buffer
// state. It is an illustrative model, not captured memory.
type BufferState struct {
	Addr     string `json:"addr"`
	Len      int    `json:"len"`
	DataLen  int    `json:"data_len"`
	Protocol string `json:"protocol"`
}

// SourceInfo is the per-entry source-location block. File and Line start
// as placeholders; Context is free text set by the location merge.
type SourceInfo struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context,omitempty"`
}

// Entry is one step of the assembled timeline.
type Entry struct {
	// Step is 1-based and dense after final renumbering.
	Step int `json:"step"`

	// Timestamp is synthetic: Step scaled by a fixed factor, microseconds.
	Timestamp int64 `json:"timestamp"`

	Function string    `json:"function"`
	Kind     EventKind `json:"kind"`

	// Direction is the display direction: OTHER entries inherit the most
	// recently observed non-OTHER direction.
	Direction Direction `json:"direction"`

	// Classified is the strict classifier result before inheritance.
	Classified Direction `json:"classified"`

	// Stack is a deep snapshot of the call stack at this point,
	// outermost frame first, self included.
	Stack []CallFrame `json:"stack"`

	Buffer BufferState `json:"buffer"`

	// DurationUs is the measured duration in microseconds, zero when the
	// trace carried none.
	DurationUs float64 `json:"duration_us"`

	Source SourceInfo `json:"source"`
}

// Summary holds running counts produced by the parse pass.
type Summary struct {
	EntryCount int `json:"entry_count"`
	Transmit   int `json:"transmit"`
	Receive    int `json:"receive"`
	Other      int `json:"other"`
	MaxDepth   int `json:"max_depth"`
}

// Timeline is the durable output of one parse pass.
type Timeline struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Location is the file/line pair spliced into a timeline by the merge
// step. Only these two fields of matching entries are ever overwritten.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Functions returns the distinct function names appearing in the
// timeline, in first-appearance order. Stack frames are included so
// resolution also covers frames inherited from before the capture window.
func (t *Timeline) Functions() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for i := range t.Entries {
		add(t.Entries[i].Function)
		for _, f := range t.Entries[i].Stack {
			add(f.Function)
		}
	}
	return names
}
