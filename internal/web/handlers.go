package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/ops"
)

// Handlers holds dependencies for web request handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	version  string
}

// NewHandlers creates a new web Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, renderer *Renderer, version string) *Handlers {
	return &Handlers{db: db, cfg: cfg, renderer: renderer, version: version}
}

// HandleList renders the timeline list page.
// GET /timelines?limit=N&offset=N&deleted=true
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", ops.DefaultListLimit)
	offset := parseIntParam(r, "offset", 0)
	deleted := parseBoolParam(r, "deleted")

	result, err := ops.List(h.db, ops.ListInput{
		Limit:          limit,
		Offset:         offset,
		IncludeDeleted: deleted,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Timelines",
			Version: h.version,
			Nav:     "timelines",
		},
		Timelines:  result.Timelines,
		Pagination: result.Pagination,
		Deleted:    deleted,
	})
}

// HandleDetail renders a single timeline with its entries and locations.
// GET /timelines/{id}
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := ops.Fetch(h.db, ops.FetchInput{
		ID:               id,
		IncludeLocations: true,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   displayName(result.Name, result.ID),
			Version: h.version,
			Nav:     "timelines",
		},
		Timeline:    result,
		DisplayName: displayName(result.Name, result.ID),
	})
}

// HandleSource renders the resolved source body for one function.
// GET /timelines/{id}/source/{function}
func (h *Handlers) HandleSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	function := r.PathValue("function")

	timeline, err := ops.Fetch(h.db, ops.FetchInput{
		ID:             id,
		IncludeEntries: boolPtr(false),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Source(h.db, ops.SourceInput{
		ID:       id,
		Function: function,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "source", SourcePageData{
		PageData: PageData{
			Title:   result.Function,
			Version: h.version,
			Nav:     "timelines",
		},
		TimelineID:   timeline.ID,
		DisplayName:  displayName(timeline.Name, timeline.ID),
		Source:       result,
		RenderedHTML: renderSourceBody(result.Body),
	})
}

// HandleDelete soft-deletes a timeline.
// DELETE /timelines/{id}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := ops.Delete(h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX callers get redirected back to the list
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/timelines")
		w.WriteHeader(http.StatusOK)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// HandlePurge permanently removes soft-deleted timelines.
// POST /timelines/purge with optional form field older_than_days.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	var olderThanDays *int
	if v := r.FormValue("older_than_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		olderThanDays = &n
	}

	result, err := ops.Purge(h.db, ops.PurgeInput{OlderThanDays: olderThanDays})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/timelines")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Plain browser form posts go back to the list
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/timelines", http.StatusSeeOther)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// parseIntParam parses an integer query parameter, returning a default
// on absence or bad input.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// parseBoolParam parses a boolean query parameter; only "true" and "1"
// count as true.
func parseBoolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}

// displayName returns the timeline's name, falling back to its ID.
func displayName(name *string, id string) string {
	if name != nil && *name != "" {
		return *name
	}
	return id
}

func boolPtr(b bool) *bool { return &b }
