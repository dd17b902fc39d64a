// Package lifecycle drives each submission record through its stages:
// NEW -> GEMINI_QUEUED -> GEMINI_DONE -> JUDGE_SUBMITTED -> VERDICT_READY,
// with CANNOT_PROCESS as the absorbing error state. Every trigger is a
// full linear scan that re-derives eligibility from current cell values,
// so overlapping or repeated runs are safe.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/gemini"
	"github.com/justuju/flowjudge/manifest"
	"github.com/justuju/flowjudge/problems"
	"github.com/justuju/flowjudge/record"
	"github.com/justuju/flowjudge/recordstore"
)

type aiClient interface {
	Model() string
	SniffBlobMime(ctx context.Context, blobID string) (string, error)
	Generate(ctx context.Context, blobID string, prompt string, temperature float64) (gemini.Result, error)
	BuildRequestLine(key string, mimeType string, data []byte, prompt string, temperature float64) ([]byte, error)
	UploadBatchFile(ctx context.Context, displayName string, jsonl []byte) (string, error)
	CreateBatch(ctx context.Context, displayName string, fileName string) (string, error)
	BatchState(ctx context.Context, jobName string) (gemini.JobStatus, error)
	FetchResults(ctx context.Context, st gemini.JobStatus, orderedKeys []string) ([]gemini.ResultLine, error)
	ResultFromLine(line gemini.ResultLine) (gemini.Result, error)
}

type judgeClient interface {
	Submit(ctx context.Context, code string, problemID problems.ID) (string, error)
	Poll(ctx context.Context, submissionID string) (string, bool, error)
}

type Orchestrator struct {
	logger *slog.Logger
	cfg    conf.Config

	blobs   blobstore.BlobStore
	master  recordstore.Dataset
	catalog *problems.Catalog
	ai      aiClient
	judge   judgeClient
	tracker *manifest.Tracker

	promptText    string
	promptVersion string

	now func() time.Time
}

func New(
	cfg conf.Config,
	blobs blobstore.BlobStore,
	master recordstore.Dataset,
	catalog *problems.Catalog,
	ai aiClient,
	judge judgeClient,
	tracker *manifest.Tracker,
	promptText string,
	promptVersion string,
) *Orchestrator {
	return &Orchestrator{
		logger:        slog.Default().With("module", "lifecycle"),
		cfg:           cfg,
		blobs:         blobs,
		master:        master,
		catalog:       catalog,
		ai:            ai,
		judge:         judge,
		tracker:       tracker,
		promptText:    promptText,
		promptVersion: promptVersion,
		now:           time.Now,
	}
}

// Report summarizes one trigger scan.
type Report struct {
	Scanned   int
	Processed int
	Failed    int
}

func (o *Orchestrator) ensureMaster(ctx context.Context) error {
	if err := o.master.EnsureHeaders(ctx, o.cfg.Columns.All()); err != nil {
		return fmt.Errorf("failed to ensure master dataset: %w", err)
	}
	return nil
}

func (o *Orchestrator) records(ctx context.Context) ([]record.Record, error) {
	rows, err := o.master.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read master dataset: %w", err)
	}
	recs := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, record.FromRow(o.cfg.Columns, row))
	}
	return recs, nil
}

var (
	nonIdChars = regexp.MustCompile(`[^-\w]+`)
	nonDigits  = regexp.MustCompile(`[^0-9]`)
	emailSafe  = strings.NewReplacer("@", "-at-", ".", "-")
)

// codeBlobID derives the blob id for a generated code file: dashed
// submission timestamp digits, the sanitized email and the problem
// code, under the code folder prefix. Ids must stay pure word/hyphen
// runs so IdFromURL can recover them from the URL.
func (o *Orchestrator) codeBlobID(rec record.Record, at time.Time) string {
	ts := rec.Timestamp
	if ts == "" {
		ts = at.UTC().Format(time.RFC3339)
	}
	name := fmt.Sprintf("%s-%s_%s_%s%s",
		o.cfg.Storage.CodeFolder,
		nonDigits.ReplaceAllString(ts, "-"),
		emailSafe.Replace(rec.Email),
		problems.CodeKey(rec.ProblemCode),
		o.cfg.Storage.CodeExtension,
	)
	return nonIdChars.ReplaceAllString(name, "-")
}

// Records returns every master row as a typed record, in row order.
func (o *Orchestrator) Records(ctx context.Context) ([]record.Record, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return nil, err
	}
	return o.records(ctx)
}

// IngestForm appends one NEW master row from a form submission.
func (o *Orchestrator) IngestForm(ctx context.Context, timestamp, email, problemCode, flowchartURL string) (int, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return 0, err
	}
	cells := record.NewRowCells(o.cfg.Columns, timestamp, email, problemCode, flowchartURL)
	num, err := o.master.Append(ctx, cells)
	if err != nil {
		return 0, fmt.Errorf("failed to append submission row: %w", err)
	}
	o.logger.Info("ingested form submission", "row", num, "email", email, "problem", problemCode)
	return num, nil
}
