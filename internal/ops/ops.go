// Package ops implements the operations shared by the CLI, MCP, and web
// surfaces: parsing traces into stored timelines, resolving their
// functions against a source tree, and managing the stored results.
package ops

import (
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Normalize lowercases, trims, and collapses inner whitespace of a
// timeline name.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// resolveTimelineRef loads a timeline by ID or normalized name.
// Exactly one addressing mode must be used.
func resolveTimelineRef(database *sql.DB, id, name string, includeDeleted bool) (*db.Timeline, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	if id != "" && name != "" {
		return nil, errors.NewInvalidRequest("cannot specify both id and name; use one addressing mode")
	}
	if id != "" {
		return db.GetTimelineByID(database, id, includeDeleted)
	}
	nameNorm := Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("must specify either id or name")
	}
	return db.GetTimelineByName(database, nameNorm, includeDeleted)
}

// cleanOptionalString trims an optional string and drops it if empty.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
