package ops

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ID   string
	Name string

	// Path is the destination; default ~/.pktvis/exports/<name>-<timestamp>.json.
	Path string

	// IncludeLocations adds the per-function resolution results, bodies
	// included.
	IncludeLocations bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	ID         string `json:"id"`
	EntryCount int    `json:"entry_count"`
	ExportedAt int64  `json:"exported_at"`
}

// exportDocument is the on-disk export format: one self-describing JSON
// document per timeline.
type exportDocument struct {
	PktvisExport  bool              `json:"_pktvis_export"`
	SchemaVersion string            `json:"schema_version"`
	ExportedAt    int64             `json:"exported_at"`
	Timeline      *FetchOutput      `json:"timeline"`
	Locations     []*exportLocation `json:"locations,omitempty"`
}

type exportLocation struct {
	Function   string          `json:"function"`
	File       string          `json:"file"`
	Line       int             `json:"line"`
	Body       string          `json:"body,omitempty"`
	BodyLines  int             `json:"body_lines"`
	Candidates json.RawMessage `json:"candidates,omitempty"`
	Status     string          `json:"status"`
}

// Export writes a timeline (entries, summary, and optionally resolution
// results) to a JSON file. The write is atomic: a temp file is renamed
// into place, so a failed export never clobbers an existing file.
func Export(database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	timeline, err := Fetch(database, FetchInput{ID: input.ID, Name: input.Name})
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(timeline, now)
		if err != nil {
			return nil, err
		}
	}

	// Validate ALL paths, user-provided and default alike: a hostile
	// timeline name must not be able to steer the default path.
	if err := ValidateExportPath(exportPath, cfg); err != nil {
		return nil, err
	}

	doc := &exportDocument{
		PktvisExport:  true,
		SchemaVersion: "1.0",
		ExportedAt:    exportedAt,
		Timeline:      timeline,
	}
	if input.IncludeLocations {
		locations, err := db.GetLocations(database, timeline.ID)
		if err != nil {
			return nil, err
		}
		doc.Locations = make([]*exportLocation, 0, len(locations))
		for _, l := range locations {
			el := &exportLocation{
				Function:  l.Function,
				File:      l.File,
				Line:      l.Line,
				Body:      l.Body,
				BodyLines: l.BodyLines,
				Status:    l.Status,
			}
			if l.CandidatesJSON != nil {
				el.Candidates = json.RawMessage(*l.CandidatesJSON)
			}
			doc.Locations = append(doc.Locations, el)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve any
	// existing file on failure.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		ID:         timeline.ID,
		EntryCount: timeline.EntryCount,
		ExportedAt: exportedAt,
	}, nil
}

// defaultExportPath generates the default export path:
// ~/.pktvis/exports/<name-or-id>-<timestamp>.json.
func defaultExportPath(timeline *FetchOutput, now time.Time) (string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	handle := timeline.ID
	if timeline.Name != nil && *timeline.Name != "" {
		handle = SanitizeForFilename(Normalize(*timeline.Name))
	}

	timestamp := now.Format("2006-01-02T150405")
	return filepath.Join(exportsDir, fmt.Sprintf("%s-%s.json", handle, timestamp)), nil
}
