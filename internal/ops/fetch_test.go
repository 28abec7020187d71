package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/pktvis/internal/errors"
)

func TestFetch_EntriesIncludedByDefault(t *testing.T) {
	database, cfg := testEnv(t)

	parsed, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace})
	require.NoError(t, err)

	out, err := Fetch(database, FetchInput{ID: parsed.ID})
	require.NoError(t, err)
	require.Len(t, out.Entries, 2)
	require.Equal(t, 2, out.Summary.EntryCount)
}

func TestFetch_MetadataOnly(t *testing.T) {
	database, cfg := testEnv(t)

	parsed, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace})
	require.NoError(t, err)

	out, err := Fetch(database, FetchInput{ID: parsed.ID, IncludeEntries: boolPtr(false)})
	require.NoError(t, err)
	require.Empty(t, out.Entries)
	require.Equal(t, 2, out.EntryCount)
}

func TestFetch_NotFound(t *testing.T) {
	database, _ := testEnv(t)

	_, err := Fetch(database, FetchInput{ID: "01MISSING"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = Fetch(database, FetchInput{Name: "ghost"})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFetch_SoftDeletedRequiresFlag(t *testing.T) {
	database, cfg := testEnv(t)

	parsed, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace})
	require.NoError(t, err)
	_, err = Delete(database, DeleteInput{ID: parsed.ID})
	require.NoError(t, err)

	_, err = Fetch(database, FetchInput{ID: parsed.ID})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	out, err := Fetch(database, FetchInput{ID: parsed.ID, IncludeDeleted: true})
	require.NoError(t, err)
	require.NotNil(t, out.DeletedAt)
}
