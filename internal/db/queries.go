package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/tracekit/pktvis/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.PktvisError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Timeline is one stored parse run. Entries and summary are kept as the
// serialized documents the caller produced; the db layer never inspects
// them.
type Timeline struct {
	ID          string
	NameRaw     *string
	NameNorm    *string
	Label       *string
	EntryCount  int
	MaxDepth    int
	EntriesJSON string
	SummaryJSON string
	SourceRoot  *string
	ResolvedAt  *int64
	CreatedAt   int64
	UpdatedAt   int64
	DeletedAt   *int64
}

// Location is one stored resolution result for a function in a timeline.
type Location struct {
	TimelineID     string
	Function       string
	File           string
	Line           int
	Body           string
	BodyLines      int
	CandidatesJSON *string
	Status         string
}

// InsertTimeline stores a new timeline.
func InsertTimeline(db *sql.DB, t *Timeline) error {
	query := `
		INSERT INTO timelines (
			id, name_raw, name_norm, label, entry_count, max_depth,
			entries_json, summary_json, source_root, resolved_at,
			created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := db.Exec(query,
		t.ID, toNullString(t.NameRaw), toNullString(t.NameNorm), toNullString(t.Label),
		t.EntryCount, t.MaxDepth, t.EntriesJSON, t.SummaryJSON,
		toNullString(t.SourceRoot), toNullInt64(t.ResolvedAt),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetTimelineByID retrieves a timeline by its ULID.
// If includeDeleted is false, soft-deleted timelines are excluded.
func GetTimelineByID(db *sql.DB, id string, includeDeleted bool) (*Timeline, error) {
	query := timelineSelect + " WHERE id = ?"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	t, err := scanTimeline(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return t, nil
}

// GetTimelineByName retrieves a timeline by its normalized name.
func GetTimelineByName(db *sql.DB, nameNorm string, includeDeleted bool) (*Timeline, error) {
	query := timelineSelect + " WHERE name_norm = ?"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY updated_at DESC LIMIT 1"
	t, err := scanTimeline(db.QueryRow(query, nameNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return t, nil
}

// DeleteTimelineByName hard-deletes the active timeline with the given
// normalized name, if any. Used by replace-mode parse.
func DeleteTimelineByName(db *sql.DB, nameNorm string) error {
	rows, err := db.Query("SELECT id FROM timelines WHERE name_norm = ? AND deleted_at IS NULL", nameNorm)
	if err != nil {
		return errors.NewInternal(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}

	for _, id := range ids {
		if _, err := db.Exec("DELETE FROM locations WHERE timeline_id = ?", id); err != nil {
			return errors.NewInternal(err)
		}
		if _, err := db.Exec("DELETE FROM timelines WHERE id = ?", id); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// UpdateTimelineEntries overwrites a timeline's entry document after the
// location merge and records the resolution run.
func UpdateTimelineEntries(db *sql.DB, id, entriesJSON, sourceRoot string) error {
	now := time.Now().Unix()
	result, err := db.Exec(`
		UPDATE timelines
		SET entries_json = ?, source_root = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		entriesJSON, sourceRoot, now, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// ListTimelines returns timelines ordered by most recently updated.
// The entry document is not included; list views only need metadata.
func ListTimelines(db *sql.DB, limit, offset int, includeDeleted bool) ([]*Timeline, int, error) {
	where := ""
	if !includeDeleted {
		where = " WHERE deleted_at IS NULL"
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM timelines" + where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, name_raw, name_norm, label, entry_count, max_depth,
			'', summary_json, source_root, resolved_at,
			created_at, updated_at, deleted_at
		FROM timelines` + where + `
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`
	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var timelines []*Timeline
	for rows.Next() {
		t, err := scanTimelineRows(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		timelines = append(timelines, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return timelines, total, nil
}

// SoftDeleteTimeline marks a timeline as deleted.
func SoftDeleteTimeline(db *sql.DB, id string) error {
	now := time.Now().Unix()
	result, err := db.Exec(
		"UPDATE timelines SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// PurgeTimelines permanently deletes soft-deleted timelines (and their
// locations) whose deletion is older than cutoff. Returns the number of
// timelines removed.
func PurgeTimelines(db *sql.DB, cutoff int64) (int, error) {
	rows, err := db.Query("SELECT id FROM timelines WHERE deleted_at IS NOT NULL AND deleted_at <= ?", cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.NewInternal(err)
	}

	for _, id := range ids {
		if _, err := db.Exec("DELETE FROM locations WHERE timeline_id = ?", id); err != nil {
			return 0, errors.NewInternal(err)
		}
		if _, err := db.Exec("DELETE FROM timelines WHERE id = ?", id); err != nil {
			return 0, errors.NewInternal(err)
		}
	}
	return len(ids), nil
}

// ReplaceLocations swaps the stored resolution results for a timeline.
func ReplaceLocations(db *sql.DB, timelineID string, locations []*Location) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM locations WHERE timeline_id = ?", timelineID); err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO locations (
			timeline_id, function, file, line, body, body_lines,
			candidates_json, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, l := range locations {
		_, err := stmt.Exec(timelineID, l.Function, l.File, l.Line,
			l.Body, l.BodyLines, toNullString(l.CandidatesJSON), l.Status)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetLocations returns all stored locations for a timeline, ordered by
// function name.
func GetLocations(db *sql.DB, timelineID string) ([]*Location, error) {
	rows, err := db.Query(`
		SELECT timeline_id, function, file, line, body, body_lines,
			candidates_json, status
		FROM locations WHERE timeline_id = ?
		ORDER BY function`, timelineID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		l := &Location{}
		var body sql.NullString
		var candidates sql.NullString
		if err := rows.Scan(&l.TimelineID, &l.Function, &l.File, &l.Line,
			&body, &l.BodyLines, &candidates, &l.Status); err != nil {
			return nil, errors.NewInternal(err)
		}
		l.Body = body.String
		l.CandidatesJSON = fromNullString(candidates)
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return locations, nil
}

// GetLocation returns one stored location by function name.
func GetLocation(db *sql.DB, timelineID, function string) (*Location, error) {
	l := &Location{}
	var body sql.NullString
	var candidates sql.NullString
	err := db.QueryRow(`
		SELECT timeline_id, function, file, line, body, body_lines,
			candidates_json, status
		FROM locations WHERE timeline_id = ? AND function = ?`,
		timelineID, function).
		Scan(&l.TimelineID, &l.Function, &l.File, &l.Line,
			&body, &l.BodyLines, &candidates, &l.Status)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(function)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	l.Body = body.String
	l.CandidatesJSON = fromNullString(candidates)
	return l, nil
}

const timelineSelect = `
	SELECT id, name_raw, name_norm, label, entry_count, max_depth,
		entries_json, summary_json, source_root, resolved_at,
		created_at, updated_at, deleted_at
	FROM timelines`

// scanTimeline scans a single timeline row.
func scanTimeline(row *sql.Row) (*Timeline, error) {
	t := &Timeline{}
	var nameRaw, nameNorm, label, sourceRoot sql.NullString
	var resolvedAt, deletedAt sql.NullInt64

	err := row.Scan(&t.ID, &nameRaw, &nameNorm, &label, &t.EntryCount, &t.MaxDepth,
		&t.EntriesJSON, &t.SummaryJSON, &sourceRoot, &resolvedAt,
		&t.CreatedAt, &t.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	t.NameRaw = fromNullString(nameRaw)
	t.NameNorm = fromNullString(nameNorm)
	t.Label = fromNullString(label)
	t.SourceRoot = fromNullString(sourceRoot)
	t.ResolvedAt = fromNullInt64(resolvedAt)
	t.DeletedAt = fromNullInt64(deletedAt)
	return t, nil
}

// scanTimelineRows scans a timeline from a multi-row result.
func scanTimelineRows(rows *sql.Rows) (*Timeline, error) {
	t := &Timeline{}
	var nameRaw, nameNorm, label, sourceRoot sql.NullString
	var resolvedAt, deletedAt sql.NullInt64

	err := rows.Scan(&t.ID, &nameRaw, &nameNorm, &label, &t.EntryCount, &t.MaxDepth,
		&t.EntriesJSON, &t.SummaryJSON, &sourceRoot, &resolvedAt,
		&t.CreatedAt, &t.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	t.NameRaw = fromNullString(nameRaw)
	t.NameNorm = fromNullString(nameNorm)
	t.Label = fromNullString(label)
	t.SourceRoot = fromNullString(sourceRoot)
	t.ResolvedAt = fromNullInt64(resolvedAt)
	t.DeletedAt = fromNullInt64(deletedAt)
	return t, nil
}

// toNullString converts *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// toNullInt64 converts *int64 to sql.NullInt64.
func toNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// fromNullInt64 converts sql.NullInt64 to *int64.
func fromNullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}
