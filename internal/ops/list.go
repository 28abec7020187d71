package ops

import (
	"database/sql"
	"encoding/json"

	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/trace"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// ListItem is one timeline in list output. Entries are never included;
// list views only need metadata.
type ListItem struct {
	ID         string        `json:"id"`
	Name       *string       `json:"name,omitempty"`
	Label      *string       `json:"label,omitempty"`
	EntryCount int           `json:"entry_count"`
	MaxDepth   int           `json:"max_depth"`
	Summary    trace.Summary `json:"summary"`
	SourceRoot *string       `json:"source_root,omitempty"`
	ResolvedAt *int64        `json:"resolved_at,omitempty"`
	CreatedAt  int64         `json:"created_at"`
	UpdatedAt  int64         `json:"updated_at"`
	Deleted    bool          `json:"deleted,omitempty"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Timelines  []ListItem `json:"timelines"`
	Pagination Pagination `json:"pagination"`
}

// List returns stored timelines ordered by most recently updated.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		return nil, errors.NewInvalidRequest("offset must be non-negative")
	}

	rows, total, err := db.ListTimelines(database, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]ListItem, 0, len(rows))
	for _, row := range rows {
		item := ListItem{
			ID:         row.ID,
			Name:       row.NameRaw,
			Label:      row.Label,
			EntryCount: row.EntryCount,
			MaxDepth:   row.MaxDepth,
			SourceRoot: row.SourceRoot,
			ResolvedAt: row.ResolvedAt,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			Deleted:    row.DeletedAt != nil,
		}
		if err := json.Unmarshal([]byte(row.SummaryJSON), &item.Summary); err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, item)
	}

	return &ListOutput{
		Timelines: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
