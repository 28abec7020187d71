// Package resolve locates the true definition sites of traced kernel
// functions inside a source tree, distinguishing definitions from calls,
// prototypes, comments, and longer identifiers that merely contain the
// function name.
package resolve

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Status is the terminal classification of one resolution attempt.
// Unresolved and timed-out are valid outcomes, never errors.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusTimeout    Status = "timeout"
)

// UnknownFile is the placeholder recorded for functions whose definition
// could not be located.
const UnknownFile = "unknown"

// Candidate is one accepted definition site, file relative to the root.
type Candidate struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// FunctionLocation is the immutable result of resolving one function.
type FunctionLocation struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Body     string `json:"body,omitempty"`

	// BodyLines is the line count of Body.
	BodyLines int `json:"body_lines"`

	// Candidates retains every accepted definition site for transparency;
	// the first one (directory order, then file, then line) is the
	// resolved definition.
	Candidates []Candidate `json:"candidates,omitempty"`

	Status Status `json:"status"`
}

// Options tunes a Resolver. Zero values fall back to sane defaults.
type Options struct {
	// Dirs is the ordered list of subdirectories to search, relative to
	// the root. Entries may also name single files.
	Dirs []string

	// LookaheadLines is the verification/extraction window past a
	// candidate line.
	LookaheadLines int

	// FallbackLines is the fixed slice size returned when body extraction
	// cannot find or balance braces.
	FallbackLines int

	// MaxBodyLines caps the brace-balance scan.
	MaxBodyLines int
}

// Resolver searches a read-only source tree. Safe for concurrent use:
// it only reads files and holds no mutable state between calls.
type Resolver struct {
	root      string
	dirs      []string
	lookahead int
	fallback  int
	maxBody   int
}

// NewResolver creates a resolver over the tree rooted at root.
func NewResolver(root string, opts Options) *Resolver {
	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	lookahead := opts.LookaheadLines
	if lookahead <= 0 {
		lookahead = 10
	}
	fallback := opts.FallbackLines
	if fallback <= 0 {
		fallback = 25
	}
	maxBody := opts.MaxBodyLines
	if maxBody <= 0 {
		maxBody = 500
	}
	return &Resolver{
		root:      root,
		dirs:      dirs,
		lookahead: lookahead,
		fallback:  fallback,
		maxBody:   maxBody,
	}
}

// Resolve finds the definition site of function. It never fails: zero
// accepted candidates yields an unresolved placeholder, and a context
// deadline that fires before any candidate is accepted yields a
// timed-out placeholder. Files are scanned line by line; the tree is
// never loaded into memory at once.
func (r *Resolver) Resolve(ctx context.Context, function string) FunctionLocation {
	loc := FunctionLocation{
		Function: function,
		File:     UnknownFile,
		Status:   StatusUnresolved,
	}
	if strings.TrimSpace(function) == "" {
		return loc
	}

	quoted := regexp.QuoteMeta(function)
	wordRe := regexp.MustCompile(`\b` + quoted + `\b`)
	// Definition shape: whole-word name immediately followed by an
	// argument list. \b also rejects hits inside longer identifiers
	// (ip_rcv never matches inside ip_rcv_core).
	defRe := regexp.MustCompile(`\b` + quoted + `\s*\(`)

	visited := make(map[string]bool)
	timedOut := false

	for _, dir := range r.dirs {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		base := filepath.Join(r.root, dir)
		info, err := os.Stat(base)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			r.scanFile(&loc, function, base, visited, wordRe, defRe)
			continue
		}

		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, never fatal
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !isSourceFile(path) {
				return nil
			}
			r.scanFile(&loc, function, path, visited, wordRe, defRe)
			return nil
		})
		if err != nil {
			timedOut = true
			break
		}
	}

	if len(loc.Candidates) == 0 {
		if timedOut {
			loc.Status = StatusTimeout
		}
		return loc
	}

	first := loc.Candidates[0]
	loc.File = first.File
	loc.Line = first.Line
	loc.Status = StatusResolved
	loc.Body, loc.BodyLines = ExtractBody(
		filepath.Join(r.root, first.File), first.Line,
		r.lookahead, r.fallback, r.maxBody)
	return loc
}

// scanFile appends every accepted candidate in path to loc, in line
// order. Search directories can overlap (net contains net/ipv4), so each
// file is scanned at most once per resolution.
func (r *Resolver) scanFile(loc *FunctionLocation, function, path string, visited map[string]bool, wordRe, defRe *regexp.Regexp) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if visited[abs] {
		return
	}
	visited[abs] = true

	lines, err := readLines(path)
	if err != nil {
		return
	}

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		rel = path
	}

	for i := range lines {
		if !strings.Contains(lines[i], function) {
			continue
		}
		if !wordRe.MatchString(lines[i]) {
			continue
		}
		if r.verify(lines, i, wordRe, defRe) {
			loc.Candidates = append(loc.Candidates, Candidate{
				File: filepath.ToSlash(rel),
				Line: i + 1,
			})
		}
	}
}

// verify inspects a candidate line and a short window of following lines.
// A candidate is accepted only when the line is not a comment, matches
// the name-followed-by-argument-list shape, and a body opens before any
// statement terminator within the window.
func (r *Resolver) verify(lines []string, idx int, wordRe, defRe *regexp.Regexp) bool {
	line := lines[idx]
	trimmed := strings.TrimSpace(line)

	// Commented-out mentions.
	if strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") {
		return false
	}
	// Match sitting behind a trailing line comment.
	if pos := wordRe.FindStringIndex(line); pos != nil {
		if c := strings.Index(line, "//"); c >= 0 && c < pos[0] {
			return false
		}
	}

	// Must look like name(...); a bare mention is not a definition.
	m := defRe.FindStringIndex(line)
	if m == nil {
		return false
	}

	// A ';' before any '{' within the window marks a prototype or a call
	// statement, not a definition.
	end := idx + r.lookahead
	if end > len(lines) {
		end = len(lines)
	}
	rest := line[m[0]:]
	for i := idx; i < end; i++ {
		if i > idx {
			rest = lines[i]
		}
		semi := strings.IndexByte(rest, ';')
		brace := strings.IndexByte(rest, '{')
		switch {
		case brace >= 0 && (semi < 0 || brace < semi):
			return true
		case semi >= 0:
			return false
		}
	}
	return false
}

// isSourceFile reports whether path looks like C source.
func isSourceFile(path string) bool {
	switch filepath.Ext(path) {
	case ".c", ".h":
		return true
	}
	return false
}

// readLines reads one file's lines. Per-file buffering is the only
// memory the search holds at a time.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
