package ops

import (
	"database/sql"

	"github.com/tracekit/pktvis/internal/db"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID   string
	Name string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	Deleted bool    `json:"deleted"`
}

// Delete soft-deletes a timeline. The row and its locations survive until
// a purge; the name becomes reusable immediately.
func Delete(database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	row, err := resolveTimelineRef(database, input.ID, input.Name, false)
	if err != nil {
		return nil, err
	}
	if err := db.SoftDeleteTimeline(database, row.ID); err != nil {
		return nil, err
	}
	return &DeleteOutput{ID: row.ID, Name: row.NameRaw, Deleted: true}, nil
}
