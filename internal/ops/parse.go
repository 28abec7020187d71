package ops

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/trace"
)

// ParseMode controls the behavior when the requested name is taken.
type ParseMode string

const (
	// ParseModeError rejects the parse if an active timeline already holds
	// the name.
	ParseModeError ParseMode = "error"
	// ParseModeReplace hard-deletes the existing timeline first.
	ParseModeReplace ParseMode = "replace"
)

// ParseInput contains parameters for the Parse operation.
type ParseInput struct {
	TraceText string
	Name      *string // optional stable handle, unique among active timelines
	Label     *string // optional free-text description
	Mode      ParseMode
}

// ParseOutput contains the result of the Parse operation.
type ParseOutput struct {
	ID         string        `json:"id"`
	Name       *string       `json:"name,omitempty"`
	EntryCount int           `json:"entry_count"`
	Summary    trace.Summary `json:"summary"`
	CreatedAt  int64         `json:"created_at"`
}

// Parse converts raw function_graph text into a stored timeline.
func Parse(database *sql.DB, cfg *config.Config, input ParseInput) (*ParseOutput, error) {
	if strings.TrimSpace(input.TraceText) == "" {
		return nil, errors.NewInvalidRequest("trace_text is required")
	}

	mode := input.Mode
	if mode == "" {
		mode = ParseModeError
	}
	if mode != ParseModeError && mode != ParseModeReplace {
		return nil, errors.NewInvalidRequest("mode must be 'error' or 'replace'")
	}

	name := cleanOptionalString(input.Name)
	label := cleanOptionalString(input.Label)

	parser := trace.NewParser(cfg.IndentWidth, cfg.TimestampStepUs)
	timeline, err := parser.ParseText(input.TraceText)
	if err != nil {
		if stderrors.Is(err, trace.ErrNoData) {
			return nil, errors.NewNoTraceData()
		}
		return nil, errors.NewInternal(err)
	}

	entriesJSON, err := json.Marshal(timeline.Entries)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	summaryJSON, err := json.Marshal(timeline.Summary)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var nameNorm *string
	if name != nil {
		norm := Normalize(*name)
		nameNorm = &norm
		if mode == ParseModeReplace {
			if err := db.DeleteTimelineByName(database, norm); err != nil {
				return nil, err
			}
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	row := &db.Timeline{
		ID:          id,
		NameRaw:     name,
		NameNorm:    nameNorm,
		Label:       label,
		EntryCount:  timeline.Summary.EntryCount,
		MaxDepth:    timeline.Summary.MaxDepth,
		EntriesJSON: string(entriesJSON),
		SummaryJSON: string(summaryJSON),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.InsertTimeline(database, row); err != nil {
		if err == db.ErrUniqueConstraint && name != nil {
			return nil, errors.NewNameAlreadyExists(*name)
		}
		return nil, err
	}

	return &ParseOutput{
		ID:         id,
		Name:       name,
		EntryCount: timeline.Summary.EntryCount,
		Summary:    timeline.Summary,
		CreatedAt:  now,
	}, nil
}
