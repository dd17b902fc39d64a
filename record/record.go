// Package record translates raw tabular rows into typed submission
// records at the boundary, so the orchestrator never handles header
// strings directly.
package record

import (
	"strconv"
	"time"

	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/recordstore"
)

// Record is one flowchart submission. Every field mirrors a master
// dataset column; the record is never deleted and serves as the audit
// trail.
type Record struct {
	RowNum int

	Timestamp    string
	Email        string
	ProblemCode  string // raw field; may embed a title after the code
	FlowchartURL string
	Status       Status

	ImageMimeType string
	CodeFileURL   string
	ModelUsed     string
	PromptVersion string
	GeneratedAt   string

	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	ThoughtsTokens int
	TextTokens     int
	ImageTokens    int
	ResponseTimeMs int

	SafetyRatings    string
	FinishReason     string
	CitationMetadata string
	ModelVersion     string
	ResponseID       string

	SubmissionID       string
	SubmissionAt       string
	SubmissionAccepted string
	Verdict            string
}

// FromRow decodes a raw dataset row into a Record. Unknown status values
// are kept verbatim so the orchestrator's guards simply never match them.
func FromRow(cols conf.Columns, row recordstore.Row) Record {
	return Record{
		RowNum:             row.Num,
		Timestamp:          row.Get(cols.Timestamp),
		Email:              row.Get(cols.Email),
		ProblemCode:        row.Get(cols.ProblemCode),
		FlowchartURL:       row.Get(cols.FlowchartURL),
		Status:             Status(row.Get(cols.Status)),
		ImageMimeType:      row.Get(cols.ImageMimeType),
		CodeFileURL:        row.Get(cols.CodeFileURL),
		ModelUsed:          row.Get(cols.ModelUsed),
		PromptVersion:      row.Get(cols.PromptVersion),
		GeneratedAt:        row.Get(cols.GenerationTimestamp),
		InputTokens:        atoi(row.Get(cols.InputTokens)),
		OutputTokens:       atoi(row.Get(cols.OutputTokens)),
		TotalTokens:        atoi(row.Get(cols.TotalTokens)),
		ThoughtsTokens:     atoi(row.Get(cols.ThoughtsTokens)),
		TextTokens:         atoi(row.Get(cols.TextTokens)),
		ImageTokens:        atoi(row.Get(cols.ImageTokens)),
		ResponseTimeMs:     atoi(row.Get(cols.ResponseTime)),
		SafetyRatings:      row.Get(cols.SafetyRatings),
		FinishReason:       row.Get(cols.FinishReason),
		CitationMetadata:   row.Get(cols.CitationMetadata),
		ModelVersion:       row.Get(cols.ModelVersion),
		ResponseID:         row.Get(cols.ResponseID),
		SubmissionID:       row.Get(cols.SubmissionID),
		SubmissionAt:       row.Get(cols.SubmissionTimestamp),
		SubmissionAccepted: row.Get(cols.SubmissionAccepted),
		Verdict:            row.Get(cols.Verdict),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// NewRowCells builds the cells of a freshly ingested form submission.
func NewRowCells(cols conf.Columns, timestamp, email, problemCode, flowchartURL string) map[string]string {
	return map[string]string{
		cols.Timestamp:    timestamp,
		cols.Email:        email,
		cols.ProblemCode:  problemCode,
		cols.FlowchartURL: flowchartURL,
		cols.Status:       string(StatusNew),
	}
}

// GenerationMeta is everything persisted after a successful AI call.
type GenerationMeta struct {
	CodeFileURL   string
	Model         string
	PromptVersion string
	GeneratedAt   time.Time

	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	ThoughtsTokens int
	TextTokens     int
	ImageTokens    int
	ResponseTimeMs int

	SafetyRatings    string
	FinishReason     string
	CitationMetadata string
	ModelVersion     string
	ResponseID       string
}

// GenerationCells maps generation metadata to master-sheet cell updates,
// including the status advancement to GEMINI_DONE.
func GenerationCells(cols conf.Columns, m GenerationMeta) map[string]string {
	return map[string]string{
		cols.CodeFileURL:         m.CodeFileURL,
		cols.ModelUsed:           m.Model,
		cols.PromptVersion:       m.PromptVersion,
		cols.GenerationTimestamp: m.GeneratedAt.UTC().Format(time.RFC3339),
		cols.InputTokens:         strconv.Itoa(m.InputTokens),
		cols.OutputTokens:        strconv.Itoa(m.OutputTokens),
		cols.TotalTokens:         strconv.Itoa(m.TotalTokens),
		cols.ThoughtsTokens:      strconv.Itoa(m.ThoughtsTokens),
		cols.TextTokens:          strconv.Itoa(m.TextTokens),
		cols.ImageTokens:         strconv.Itoa(m.ImageTokens),
		cols.ResponseTime:        strconv.Itoa(m.ResponseTimeMs),
		cols.SafetyRatings:       m.SafetyRatings,
		cols.FinishReason:        m.FinishReason,
		cols.CitationMetadata:    m.CitationMetadata,
		cols.ModelVersion:        m.ModelVersion,
		cols.ResponseID:          m.ResponseID,
		cols.Status:              string(StatusGeminiDone),
	}
}

// SubmissionCells maps a judge submission result to cell updates.
func SubmissionCells(cols conf.Columns, submissionID string, at time.Time) map[string]string {
	return map[string]string{
		cols.SubmissionID:        submissionID,
		cols.SubmissionTimestamp: at.UTC().Format(time.RFC3339),
		cols.SubmissionAccepted:  "true",
		cols.Status:              string(StatusJudgeSubmitted),
	}
}

// VerdictCells maps a judge verdict to cell updates.
func VerdictCells(cols conf.Columns, verdict string) map[string]string {
	return map[string]string{
		cols.Verdict: verdict,
		cols.Status:  string(StatusVerdictReady),
	}
}

// FailureCells marks a row terminally unprocessable with a diagnostic
// message in the verdict column.
func FailureCells(cols conf.Columns, diagnostic string) map[string]string {
	cells := map[string]string{
		cols.Status: string(StatusCannotProcess),
	}
	if diagnostic != "" {
		cells[cols.Verdict] = diagnostic
	}
	return cells
}
