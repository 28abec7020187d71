package ops

import (
	"database/sql"
	"encoding/json"

	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/resolve"
	"github.com/tracekit/pktvis/internal/trace"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID   string
	Name string

	// IncludeEntries defaults to true; nil means include.
	IncludeEntries *bool

	// IncludeLocations adds the per-function resolution details (without
	// bodies; use Source for a single function's body).
	IncludeLocations bool

	IncludeDeleted bool
}

// LocationItem is one per-function resolution result in fetch output.
type LocationItem struct {
	Function   string              `json:"function"`
	File       string              `json:"file"`
	Line       int                 `json:"line"`
	BodyLines  int                 `json:"body_lines"`
	Status     string              `json:"status"`
	Candidates []resolve.Candidate `json:"candidates,omitempty"`
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	ID         string         `json:"id"`
	Name       *string        `json:"name,omitempty"`
	Label      *string        `json:"label,omitempty"`
	EntryCount int            `json:"entry_count"`
	MaxDepth   int            `json:"max_depth"`
	Summary    trace.Summary  `json:"summary"`
	Entries    []trace.Entry  `json:"entries,omitempty"`
	Locations  []LocationItem `json:"locations,omitempty"`
	SourceRoot *string        `json:"source_root,omitempty"`
	ResolvedAt *int64         `json:"resolved_at,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
	DeletedAt  *int64         `json:"deleted_at,omitempty"`
}

// Fetch retrieves a stored timeline by ID or name.
func Fetch(database *sql.DB, input FetchInput) (*FetchOutput, error) {
	row, err := resolveTimelineRef(database, input.ID, input.Name, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	out := &FetchOutput{
		ID:         row.ID,
		Name:       row.NameRaw,
		Label:      row.Label,
		EntryCount: row.EntryCount,
		MaxDepth:   row.MaxDepth,
		SourceRoot: row.SourceRoot,
		ResolvedAt: row.ResolvedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		DeletedAt:  row.DeletedAt,
	}
	if err := json.Unmarshal([]byte(row.SummaryJSON), &out.Summary); err != nil {
		return nil, errors.NewInternal(err)
	}

	if input.IncludeEntries == nil || *input.IncludeEntries {
		if err := json.Unmarshal([]byte(row.EntriesJSON), &out.Entries); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if input.IncludeLocations {
		locations, err := db.GetLocations(database, row.ID)
		if err != nil {
			return nil, err
		}
		out.Locations = make([]LocationItem, 0, len(locations))
		for _, l := range locations {
			item := LocationItem{
				Function:  l.Function,
				File:      l.File,
				Line:      l.Line,
				BodyLines: l.BodyLines,
				Status:    l.Status,
			}
			if l.CandidatesJSON != nil {
				if err := json.Unmarshal([]byte(*l.CandidatesJSON), &item.Candidates); err != nil {
					return nil, errors.NewInternal(err)
				}
			}
			out.Locations = append(out.Locations, item)
		}
	}

	return out, nil
}
