package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/problems"
	"github.com/justuju/flowjudge/record"
)

// ProcessJudge scans for GEMINI_DONE rows and submits their generated
// code to the judge. An unmapped problem code is terminal for the row;
// a judge rejection is not, the row stays GEMINI_DONE for the next run.
func (o *Orchestrator) ProcessJudge(ctx context.Context) (Report, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return Report{}, err
	}
	recs, err := o.records(ctx)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for _, rec := range recs {
		rep.Scanned++
		if rec.Status != record.StatusGeminiDone {
			continue
		}
		if err := o.submitRow(ctx, rec); err != nil {
			rep.Failed++
			o.logger.Error("row submission failed", "row", rec.RowNum, "error", err)
			continue
		}
		rep.Processed++
	}
	o.logger.Info("judge scan done",
		"scanned", rep.Scanned, "processed", rep.Processed, "failed", rep.Failed)
	return rep, nil
}

func (o *Orchestrator) submitRow(ctx context.Context, rec record.Record) error {
	if rec.CodeFileURL == "" {
		return fmt.Errorf("row has no generated code file")
	}
	blobID := blobstore.IdFromURL(rec.CodeFileURL)
	if blobID == "" {
		return fmt.Errorf("no blob id in code url %q", rec.CodeFileURL)
	}
	code, err := o.blobs.Fetch(ctx, blobID)
	if err != nil {
		return fmt.Errorf("failed to fetch generated code: %w", err)
	}

	problemID, err := o.catalog.Lookup(ctx, rec.ProblemCode)
	if err != nil {
		var notFound *problems.ErrNotFound
		if errors.As(err, &notFound) {
			cells := record.FailureCells(o.cfg.Columns,
				fmt.Sprintf("no judge problem id for %q", problems.CodeKey(rec.ProblemCode)))
			if uerr := o.master.Update(ctx, rec.RowNum, cells); uerr != nil {
				return fmt.Errorf("failed to mark row unprocessable: %w", uerr)
			}
			o.logger.Warn("problem code not in catalog", "row", rec.RowNum, "code", rec.ProblemCode)
			return nil
		}
		return fmt.Errorf("catalog lookup failed: %w", err)
	}

	submissionID, err := o.judge.Submit(ctx, string(code), problemID)
	if err != nil {
		return fmt.Errorf("judge submission failed: %w", err)
	}
	if submissionID == "" {
		// rejected by the judge; retried on the next scan
		o.logger.Warn("judge did not accept submission", "row", rec.RowNum)
		return nil
	}

	cells := record.SubmissionCells(o.cfg.Columns, submissionID, o.now())
	if err := o.master.Update(ctx, rec.RowNum, cells); err != nil {
		return fmt.Errorf("failed to persist submission: %w", err)
	}
	o.logger.Info("submitted to judge", "row", rec.RowNum, "submission", submissionID)
	return nil
}

// PollVerdicts scans JUDGE_SUBMITTED rows and asks the judge for a
// verdict. Rows without one yet are left untouched.
func (o *Orchestrator) PollVerdicts(ctx context.Context) (Report, error) {
	if err := o.ensureMaster(ctx); err != nil {
		return Report{}, err
	}
	recs, err := o.records(ctx)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for _, rec := range recs {
		rep.Scanned++
		if rec.Status != record.StatusJudgeSubmitted || rec.SubmissionID == "" {
			continue
		}
		verdict, found, err := o.judge.Poll(ctx, rec.SubmissionID)
		if err != nil {
			rep.Failed++
			o.logger.Error("verdict poll failed", "row", rec.RowNum, "error", err)
			continue
		}
		if !found {
			continue
		}
		cells := record.VerdictCells(o.cfg.Columns, verdict)
		if err := o.master.Update(ctx, rec.RowNum, cells); err != nil {
			rep.Failed++
			o.logger.Error("failed to persist verdict", "row", rec.RowNum, "error", err)
			continue
		}
		rep.Processed++
		o.logger.Info("verdict recorded", "row", rec.RowNum, "verdict", verdict)
	}
	o.logger.Info("verdict scan done",
		"scanned", rep.Scanned, "processed", rep.Processed, "failed", rep.Failed)
	return rep, nil
}
