package captcha

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualPromptSolver(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	solver := &ManualPromptSolver{
		Dir: dir,
		In:  strings.NewReader("  aB3x9 \n"),
		Out: &out,
	}

	solution, err := solver.Solve(context.Background(), Image{
		Bytes:      testImageBytes(t),
		CapturedAt: time.Date(2025, 10, 15, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "aB3x9", solution.Text)
	require.Equal(t, 1.0, solution.Confidence)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, out.String(), entries[0].Name())
}

func TestManualPromptSolverClosedInput(t *testing.T) {
	solver := &ManualPromptSolver{
		Dir: t.TempDir(),
		In:  strings.NewReader(""),
		Out: &bytes.Buffer{},
	}
	_, err := solver.Solve(context.Background(), Image{Bytes: testImageBytes(t)})
	require.Error(t, err)
}
