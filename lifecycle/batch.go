package lifecycle

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/manifest"
	"github.com/justuju/flowjudge/record"
)

// EnqueueReport summarizes one batch enqueue.
type EnqueueReport struct {
	Enqueued   int
	Skipped    int
	BatchName  string
	ManifestID string
}

// IngestReport summarizes one ingestion scan across all registered
// batches.
type IngestReport struct {
	Batches int
	OK      int
	Err     int
}

// EnqueueGeminiBatch collects eligible NEW rows into one batch job:
// builds the JSONL request file, uploads it, creates the job, persists
// the manifest and registry entry, and only then flips the included
// rows to GEMINI_QUEUED. A row whose flowchart cannot be resolved is
// left NEW and excluded from the manifest.
func (o *Orchestrator) EnqueueGeminiBatch(ctx context.Context) (EnqueueReport, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return EnqueueReport{}, err
	}
	recs, err := o.records(ctx)
	if err != nil {
		return EnqueueReport{}, err
	}

	limit := o.cfg.Gemini.BatchCap
	var rep EnqueueReport
	var lines [][]byte
	var refs []manifest.RowRef
	var mimeCells []map[string]string

	for _, rec := range recs {
		if rec.Status != record.StatusNew || rec.FlowchartURL == "" {
			continue
		}
		if limit > 0 && len(refs) >= limit {
			break
		}

		blobID := blobstore.IdFromURL(rec.FlowchartURL)
		if blobID == "" {
			rep.Skipped++
			o.logger.Error("no blob id in flowchart url, row stays new",
				"row", rec.RowNum, "url", rec.FlowchartURL)
			continue
		}
		data, err := o.blobs.Fetch(ctx, blobID)
		if err != nil || len(data) == 0 {
			rep.Skipped++
			o.logger.Error("flowchart blob unavailable, row stays new",
				"row", rec.RowNum, "blob", blobID, "error", err)
			continue
		}
		mimeType := blobstore.SniffMIME(data)

		key := manifest.RowKey(rec.RowNum)
		line, err := o.ai.BuildRequestLine(key, mimeType, data, o.promptText, o.cfg.Gemini.Temperature)
		if err != nil {
			rep.Skipped++
			o.logger.Error("failed to build request line", "row", rec.RowNum, "error", err)
			continue
		}

		lines = append(lines, line)
		refs = append(refs, manifest.RowRef{
			Key:       key,
			RowNum:    rec.RowNum,
			Timestamp: rec.Timestamp,
			Email:     rec.Email,
			Problem:   rec.ProblemCode,
			MimeType:  mimeType,
		})
		mimeCells = append(mimeCells, map[string]string{
			o.cfg.Columns.ImageMimeType: mimeType,
			o.cfg.Columns.Status:        string(record.StatusGeminiQueued),
		})
	}

	if len(refs) == 0 {
		o.logger.Info("no eligible rows, nothing enqueued")
		return rep, nil
	}

	displayName := "flowjudge-batch-" + uuid.New().String()
	fileName, err := o.ai.UploadBatchFile(ctx, displayName, bytes.Join(lines, []byte("\n")))
	if err != nil {
		return rep, fmt.Errorf("failed to upload batch file: %w", err)
	}
	jobName, err := o.ai.CreateBatch(ctx, displayName, fileName)
	if err != nil {
		return rep, fmt.Errorf("failed to create batch job: %w", err)
	}

	m := manifest.Manifest{
		CreatedAt: o.now().UTC(),
		Model:     o.ai.Model(),
		Dataset:   o.cfg.Data.MasterDataset,
		Rows:      refs,
		BatchName: jobName,
	}
	manifestID, err := o.tracker.Save(ctx, m)
	if err != nil {
		return rep, fmt.Errorf("failed to save manifest: %w", err)
	}
	if err := o.tracker.Track(ctx, m, manifestID); err != nil {
		return rep, fmt.Errorf("failed to track batch: %w", err)
	}

	// rows flip only after the job and manifest both exist, so a crash
	// above leaves everything re-enqueueable
	for i, ref := range refs {
		if err := o.master.Update(ctx, ref.RowNum, mimeCells[i]); err != nil {
			o.logger.Error("failed to mark row queued", "row", ref.RowNum, "error", err)
			continue
		}
		rep.Enqueued++
	}

	rep.BatchName = jobName
	rep.ManifestID = manifestID
	o.logger.Info("batch enqueued",
		"job", jobName, "manifest", manifestID, "rows", rep.Enqueued, "skipped", rep.Skipped)
	return rep, nil
}

// IngestBatches walks the registry ledger, checks each batch job, and
// reconciles finished jobs against their manifests. A batch is consumed
// when none of its rows are still GEMINI_QUEUED; running jobs cause no
// writes at all.
func (o *Orchestrator) IngestBatches(ctx context.Context) (IngestReport, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return IngestReport{}, err
	}
	entries, err := o.tracker.Entries(ctx)
	if err != nil {
		return IngestReport{}, err
	}

	var rep IngestReport
	for _, entry := range entries {
		ok, errCount, err := o.ingestOne(ctx, entry)
		if err != nil {
			o.logger.Error("batch ingestion failed", "batch", entry.BatchHandle, "error", err)
			continue
		}
		if ok+errCount > 0 {
			rep.Batches++
			rep.OK += ok
			rep.Err += errCount
		}
	}
	o.logger.Info("ingestion scan done",
		"batches", rep.Batches, "ok", rep.OK, "err", rep.Err)
	return rep, nil
}

func (o *Orchestrator) ingestOne(ctx context.Context, entry manifest.Entry) (int, int, error) {
	m, err := o.tracker.Load(ctx, entry.ManifestID)
	if err != nil {
		return 0, 0, err
	}

	recs, err := o.records(ctx)
	if err != nil {
		return 0, 0, err
	}
	byNum := make(map[int]record.Record, len(recs))
	for _, rec := range recs {
		byNum[rec.RowNum] = rec
	}

	// collect the manifest rows still waiting on this batch; everything
	// else was either ingested before or moved on by an operator
	pending := make(map[string]record.Record)
	for _, ref := range m.Rows {
		rec, found := byNum[ref.RowNum]
		if found && rec.Status == record.StatusGeminiQueued {
			pending[ref.Key] = rec
		}
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	st, err := o.ai.BatchState(ctx, m.BatchName)
	if err != nil {
		return 0, 0, err
	}
	if !st.State.Terminal() {
		o.logger.Info("batch still running", "batch", m.BatchName, "state", string(st.State))
		return 0, 0, nil
	}
	if !st.State.Succeeded() {
		// rows stay queued; the operator decides whether to re-enqueue
		o.logger.Error("batch finished without success",
			"batch", m.BatchName, "state", string(st.State))
		return 0, 0, nil
	}

	lines, err := o.ai.FetchResults(ctx, st, m.Keys())
	if err != nil {
		return 0, 0, err
	}

	var ok, errCount int
	for _, line := range lines {
		rec, found := pending[line.Key]
		if !found {
			o.logger.Warn("result line has no pending row", "batch", m.BatchName, "key", line.Key)
			continue
		}
		result, err := o.ai.ResultFromLine(line)
		if err != nil {
			errCount++
			o.logger.Error("batch line failed", "row", rec.RowNum, "error", err)
			cells := record.FailureCells(o.cfg.Columns, fmt.Sprintf("batch generation failed: %v", err))
			if uerr := o.master.Update(ctx, rec.RowNum, cells); uerr != nil {
				o.logger.Error("failed to mark row unprocessable", "row", rec.RowNum, "error", uerr)
			}
			continue
		}
		if err := o.saveGeneration(ctx, rec, result.Content, result.Meta); err != nil {
			errCount++
			o.logger.Error("failed to persist batch result", "row", rec.RowNum, "error", err)
			continue
		}
		ok++
	}
	o.logger.Info("batch ingested", "batch", m.BatchName, "ok", ok, "err", errCount)
	return ok, errCount, nil
}
