package ops

import (
	"database/sql"
	"time"

	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
)

// DefaultPurgeDays is the retention window for soft-deleted timelines.
const DefaultPurgeDays = 7

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	// OlderThanDays purges soft-deleted timelines whose deletion is at
	// least this old. Nil uses DefaultPurgeDays; zero purges everything
	// soft-deleted.
	OlderThanDays *int
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged int `json:"purged"`
}

// Purge permanently removes soft-deleted timelines past the retention
// window, including their stored locations.
func Purge(database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	days := DefaultPurgeDays
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must be non-negative")
		}
		days = *input.OlderThanDays
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	n, err := db.PurgeTimelines(database, cutoff)
	if err != nil {
		return nil, err
	}
	return &PurgeOutput{Purged: n}, nil
}
