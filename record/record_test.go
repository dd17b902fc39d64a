package record_test

import (
	"testing"
	"time"

	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/record"
	"github.com/justuju/flowjudge/recordstore"
	"github.com/stretchr/testify/require"
)

func TestFromRow(t *testing.T) {
	cols := conf.Default().Columns
	row := recordstore.Row{
		Num: 7,
		Cells: map[string]string{
			cols.Email:        "someone@example.com",
			cols.ProblemCode:  "FCP045 - Loops and Conditionals",
			cols.Status:       "GEMINI_DONE",
			cols.InputTokens:  "123",
			cols.TotalTokens:  "456",
			cols.ResponseTime: "not-a-number",
		},
	}

	rec := record.FromRow(cols, row)
	require.Equal(t, 7, rec.RowNum)
	require.Equal(t, "someone@example.com", rec.Email)
	require.Equal(t, record.StatusGeminiDone, rec.Status)
	require.Equal(t, 123, rec.InputTokens)
	require.Equal(t, 456, rec.TotalTokens)
	require.Equal(t, 0, rec.ResponseTimeMs)
}

func TestStatusValid(t *testing.T) {
	require.True(t, record.StatusNew.Valid())
	require.True(t, record.StatusCannotProcess.Valid())
	require.False(t, record.Status("done").Valid())
	require.False(t, record.Status("").Valid())
}

func TestGenerationCellsAdvanceStatus(t *testing.T) {
	cols := conf.Default().Columns
	cells := record.GenerationCells(cols, record.GenerationMeta{
		CodeFileURL: "https://blobs.test/d/abc/view",
		Model:       "gemini-2.5-flash",
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalTokens: 42,
	})
	require.Equal(t, "GEMINI_DONE", cells[cols.Status])
	require.Equal(t, "42", cells[cols.TotalTokens])
	require.Equal(t, "2025-03-01T12:00:00Z", cells[cols.GenerationTimestamp])
}

func TestFailureCellsDiagnostic(t *testing.T) {
	cols := conf.Default().Columns

	cells := record.FailureCells(cols, "no judge problem id for FCP999")
	require.Equal(t, "CANNOT_PROCESS", cells[cols.Status])
	require.Equal(t, "no judge problem id for FCP999", cells[cols.Verdict])

	// without a diagnostic the verdict column is left alone
	cells = record.FailureCells(cols, "")
	_, ok := cells[cols.Verdict]
	require.False(t, ok)
}
