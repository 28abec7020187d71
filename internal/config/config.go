package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// IndentWidth is the number of spaces per nesting level in
	// function_graph output.
	IndentWidth int `json:"indent_width"`

	// TimestampStepUs is the synthetic timestamp increment per timeline
	// step, in microseconds. The captured format interleaves CPUs without
	// a global clock, so real timestamps are never trusted for ordering.
	TimestampStepUs int64 `json:"timestamp_step_us"`

	// SourceDirs is the ordered list of subdirectories searched for
	// function definitions, relative to the source root. Order matters:
	// the first accepted candidate wins.
	SourceDirs []string `json:"source_dirs,omitempty"`

	// ResolveWorkers bounds the number of concurrent resolution workers.
	ResolveWorkers int `json:"resolve_workers"`

	// ResolveTimeoutMs is the per-function resolution timeout. A timed-out
	// function degrades to an unresolved placeholder; the batch continues.
	ResolveTimeoutMs int `json:"resolve_timeout_ms"`

	// BodyLookaheadLines is how far past a definition line the extractor
	// searches for the opening brace.
	BodyLookaheadLines int `json:"body_lookahead_lines"`

	// BodyFallbackLines is the fixed slice size returned when no opening
	// brace is found within the lookahead window.
	BodyFallbackLines int `json:"body_fallback_lines"`

	// BodyMaxLines caps the brace-balance scan to guard against malformed
	// or pathological files.
	BodyMaxLines int `json:"body_max_lines"`

	// AllowedPaths is an allowlist of directories for export operations.
	// Paths outside ~/.pktvis/exports require either being in this list or
	// AllowUnsafePaths=true. Paths should be absolute.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultSourceDirs is the search order used when the config does not
// override it. Network paths come first because that is where the traced
// functions live in practice.
var DefaultSourceDirs = []string{
	"net/core",
	"net/ipv4",
	"net/ipv6",
	"net/socket.c",
	"net/packet",
	"net",
	"drivers/net",
	"include/net",
	"include/linux",
	"kernel",
	"lib",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IndentWidth:        2,
		TimestampStepUs:    1000,
		SourceDirs:         DefaultSourceDirs,
		ResolveWorkers:     4,
		ResolveTimeoutMs:   5000,
		BodyLookaheadLines: 10,
		BodyFallbackLines:  25,
		BodyMaxLines:       500,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pktvis.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; string arrays replace the
// base when set (search order must stay exactly as written), except the
// allowlists, which are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.IndentWidth = overlay.IndentWidth
	if result.IndentWidth == 0 {
		result.IndentWidth = base.IndentWidth
	}

	result.TimestampStepUs = overlay.TimestampStepUs
	if result.TimestampStepUs == 0 {
		result.TimestampStepUs = base.TimestampStepUs
	}

	result.ResolveWorkers = overlay.ResolveWorkers
	if result.ResolveWorkers == 0 {
		result.ResolveWorkers = base.ResolveWorkers
	}

	result.ResolveTimeoutMs = overlay.ResolveTimeoutMs
	if result.ResolveTimeoutMs == 0 {
		result.ResolveTimeoutMs = base.ResolveTimeoutMs
	}

	result.BodyLookaheadLines = overlay.BodyLookaheadLines
	if result.BodyLookaheadLines == 0 {
		result.BodyLookaheadLines = base.BodyLookaheadLines
	}

	result.BodyFallbackLines = overlay.BodyFallbackLines
	if result.BodyFallbackLines == 0 {
		result.BodyFallbackLines = base.BodyFallbackLines
	}

	result.BodyMaxLines = overlay.BodyMaxLines
	if result.BodyMaxLines == 0 {
		result.BodyMaxLines = base.BodyMaxLines
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Search order: overlay replaces wholesale when present
	result.SourceDirs = base.SourceDirs
	if len(overlay.SourceDirs) > 0 {
		result.SourceDirs = overlay.SourceDirs
	}

	// Allowlists: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
