package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/resolve"
	"github.com/tracekit/pktvis/internal/trace"
)

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	ID   string // timeline addressing: exactly one of ID or Name
	Name string

	// SourceRoot is the kernel source tree to search.
	SourceRoot string

	// Dirs overrides the configured search order when non-empty.
	Dirs []string

	// Workers and TimeoutMs override the configured resolution limits
	// when positive.
	Workers   int
	TimeoutMs int
}

// ResolveOutput contains the result of the Resolve operation.
type ResolveOutput struct {
	ID         string `json:"id"`
	SourceRoot string `json:"source_root"`
	Functions  int    `json:"functions"`
	Resolved   int    `json:"resolved"`
	Unresolved int    `json:"unresolved"`
	TimedOut   int    `json:"timed_out"`
	ResolvedAt int64  `json:"resolved_at"`
}

// Resolve locates the definition sites of every distinct function in a
// stored timeline, splices the results back into the entry document, and
// stores the per-function details. Resolution never fails a timeline:
// functions that cannot be located keep their placeholders.
func Resolve(ctx context.Context, database *sql.DB, cfg *config.Config, input ResolveInput) (*ResolveOutput, error) {
	row, err := resolveTimelineRef(database, input.ID, input.Name, false)
	if err != nil {
		return nil, err
	}

	if input.SourceRoot == "" {
		return nil, errors.NewInvalidRequest("source_root is required")
	}
	info, err := os.Stat(input.SourceRoot)
	if err != nil || !info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("source_root is not a directory: %s", input.SourceRoot))
	}

	var entries []trace.Entry
	if err := json.Unmarshal([]byte(row.EntriesJSON), &entries); err != nil {
		return nil, errors.NewInternal(err)
	}
	timeline := &trace.Timeline{Entries: entries}
	functions := timeline.Functions()

	dirs := input.Dirs
	if len(dirs) == 0 {
		dirs = cfg.SourceDirs
	}
	workers := input.Workers
	if workers <= 0 {
		workers = cfg.ResolveWorkers
	}
	timeoutMs := input.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = cfg.ResolveTimeoutMs
	}

	resolver := resolve.NewResolver(input.SourceRoot, resolve.Options{
		Dirs:           dirs,
		LookaheadLines: cfg.BodyLookaheadLines,
		FallbackLines:  cfg.BodyFallbackLines,
		MaxBodyLines:   cfg.BodyMaxLines,
	})
	located := resolver.ResolveAll(ctx, functions, resolve.BatchOptions{
		Workers: workers,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
	})

	merge := make(map[string]trace.Location)
	locations := make([]*db.Location, 0, len(located))
	out := &ResolveOutput{ID: row.ID, SourceRoot: input.SourceRoot, Functions: len(functions)}
	for _, name := range functions {
		loc, ok := located[name]
		if !ok {
			continue
		}

		switch loc.Status {
		case resolve.StatusResolved:
			out.Resolved++
			merge[name] = trace.Location{File: loc.File, Line: loc.Line}
		case resolve.StatusTimeout:
			out.TimedOut++
		default:
			out.Unresolved++
		}

		stored := &db.Location{
			TimelineID: row.ID,
			Function:   loc.Function,
			File:       loc.File,
			Line:       loc.Line,
			Body:       loc.Body,
			BodyLines:  loc.BodyLines,
			Status:     string(loc.Status),
		}
		if len(loc.Candidates) > 0 {
			candidatesJSON, err := json.Marshal(loc.Candidates)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			s := string(candidatesJSON)
			stored.CandidatesJSON = &s
		}
		locations = append(locations, stored)
	}

	timeline.MergeLocations(merge)
	entriesJSON, err := json.Marshal(timeline.Entries)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := db.UpdateTimelineEntries(database, row.ID, string(entriesJSON), input.SourceRoot); err != nil {
		return nil, err
	}
	if err := db.ReplaceLocations(database, row.ID, locations); err != nil {
		return nil, err
	}

	out.ResolvedAt = time.Now().Unix()
	return out, nil
}
