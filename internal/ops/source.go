package ops

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/resolve"
)

// SourceInput contains parameters for the Source operation.
type SourceInput struct {
	ID       string
	Name     string
	Function string
}

// SourceOutput contains the stored resolution result for one function,
// body included.
type SourceOutput struct {
	TimelineID string              `json:"timeline_id"`
	Function   string              `json:"function"`
	File       string              `json:"file"`
	Line       int                 `json:"line"`
	Body       string              `json:"body,omitempty"`
	BodyLines  int                 `json:"body_lines"`
	Candidates []resolve.Candidate `json:"candidates,omitempty"`
	Status     string              `json:"status"`
}

// Source returns the stored definition site and body of one function in a
// resolved timeline. Requires a prior Resolve run on the timeline.
func Source(database *sql.DB, input SourceInput) (*SourceOutput, error) {
	function := strings.TrimSpace(input.Function)
	if function == "" {
		return nil, errors.NewInvalidRequest("function is required")
	}

	row, err := resolveTimelineRef(database, input.ID, input.Name, false)
	if err != nil {
		return nil, err
	}

	loc, err := db.GetLocation(database, row.ID, function)
	if err != nil {
		return nil, err
	}

	out := &SourceOutput{
		TimelineID: row.ID,
		Function:   loc.Function,
		File:       loc.File,
		Line:       loc.Line,
		Body:       loc.Body,
		BodyLines:  loc.BodyLines,
		Status:     loc.Status,
	}
	if loc.CandidatesJSON != nil {
		if err := json.Unmarshal([]byte(*loc.CandidatesJSON), &out.Candidates); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return out, nil
}
