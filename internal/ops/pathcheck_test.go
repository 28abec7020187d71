package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/errors"
)

func TestValidateExportPath_Basics(t *testing.T) {
	cfg := config.DefaultConfig()

	require.True(t, errors.Is(ValidateExportPath("", cfg), errors.ErrInvalidRequest))
	require.True(t, errors.Is(ValidateExportPath("out.txt", cfg), errors.ErrInvalidRequest))
	require.True(t, errors.Is(ValidateExportPath("../out.json", cfg), errors.ErrInvalidRequest))
}

func TestValidateExportPath_AllowedDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	require.NoError(t, ValidateExportPath(filepath.Join(dir, "out.json"), cfg))

	// Subdirectories of an allowed dir are rejected.
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	err := ValidateExportPath(filepath.Join(sub, "out.json"), cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	// Unlisted dirs are rejected.
	err = ValidateExportPath(filepath.Join(t.TempDir(), "out.json"), cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestValidateExportPath_UnsafeMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	// Directory restrictions lifted, extension still enforced.
	require.NoError(t, ValidateExportPath(filepath.Join(t.TempDir(), "anywhere.json"), cfg))
	require.True(t, errors.Is(ValidateExportPath("anywhere.txt", cfg), errors.ErrInvalidRequest))
}

func TestValidateExportPath_RejectsSymlinkFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	target := filepath.Join(dir, "target.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0600))
	link := filepath.Join(dir, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidateExportPath(link, cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestContainsTraversal(t *testing.T) {
	require.True(t, containsTraversal("../etc/passwd"))
	require.True(t, containsTraversal("a/../b.json"))
	require.False(t, containsTraversal("a/b..c.json"))
}

func TestSanitizeForFilename(t *testing.T) {
	require.Equal(t, "a-b", SanitizeForFilename("a/b"))
	require.Equal(t, "a-b", SanitizeForFilename("a..b"))
	require.Equal(t, "udp-baseline", SanitizeForFilename("udp baseline"))
	require.Equal(t, "unnamed", SanitizeForFilename("///"))
}
