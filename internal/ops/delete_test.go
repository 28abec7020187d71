package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/pktvis/internal/errors"
)

func TestDelete_ByName(t *testing.T) {
	database, cfg := testEnv(t)

	parsed, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace, Name: stringPtr("run")})
	require.NoError(t, err)

	out, err := Delete(database, DeleteInput{Name: "run"})
	require.NoError(t, err)
	require.Equal(t, parsed.ID, out.ID)
	require.True(t, out.Deleted)
}

func TestDelete_FreesName(t *testing.T) {
	database, cfg := testEnv(t)

	_, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace, Name: stringPtr("run")})
	require.NoError(t, err)
	_, err = Delete(database, DeleteInput{Name: "run"})
	require.NoError(t, err)

	// The name is reusable immediately after a soft delete.
	_, err = Parse(database, cfg, ParseInput{TraceText: sampleTrace, Name: stringPtr("run")})
	require.NoError(t, err)
}

func TestDelete_Twice(t *testing.T) {
	database, cfg := testEnv(t)

	parsed, err := Parse(database, cfg, ParseInput{TraceText: sampleTrace})
	require.NoError(t, err)

	_, err = Delete(database, DeleteInput{ID: parsed.ID})
	require.NoError(t, err)
	_, err = Delete(database, DeleteInput{ID: parsed.ID})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
