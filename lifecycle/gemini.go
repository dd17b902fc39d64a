package lifecycle

import (
	"context"
	"fmt"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/gemini"
	"github.com/justuju/flowjudge/record"
)

// ProcessGemini scans the master dataset and runs the synchronous AI
// path for every NEW row that has a flowchart. Rows without a flowchart
// stay untouched; a failing row is logged and skipped so the scan
// always completes.
func (o *Orchestrator) ProcessGemini(ctx context.Context) (Report, error) {
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
		if rec.Status != record.StatusNew || rec.FlowchartURL == "" {
			continue
		}
		if err := o.generateForRow(ctx, rec); err != nil {
			rep.Failed++
			o.logger.Error("row generation failed", "row", rec.RowNum, "error", err)
			continue
		}
		rep.Processed++
	}
	o.logger.Info("gemini scan done",
		"scanned", rep.Scanned, "processed", rep.Processed, "failed", rep.Failed)
	return rep, nil
}

func (o *Orchestrator) generateForRow(ctx context.Context, rec record.Record) error {
	blobID := blobstore.IdFromURL(rec.FlowchartURL)
	if blobID == "" {
		return fmt.Errorf("no blob id in flowchart url %q", rec.FlowchartURL)
	}

	// the MIME type is persisted before the model call so a crash
	// mid-row still leaves the sniff result behind
	mimeType, err := o.ai.SniffBlobMime(ctx, blobID)
	if err != nil {
		return fmt.Errorf("failed to sniff flowchart: %w", err)
	}
	if err := o.master.Update(ctx, rec.RowNum, map[string]string{
		o.cfg.Columns.ImageMimeType: mimeType,
	}); err != nil {
		return fmt.Errorf("failed to persist mime type: %w", err)
	}

	result, err := o.ai.Generate(ctx, blobID, o.promptText, o.cfg.Gemini.Temperature)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	return o.saveGeneration(ctx, rec, result.Content, result.Meta)
}

// saveGeneration stores the generated code as a blob and advances the
// row to GEMINI_DONE. Shared by the sync path and batch ingestion.
func (o *Orchestrator) saveGeneration(ctx context.Context, rec record.Record, code string, meta gemini.Meta) error {
	at := o.now()
	codeID := o.codeBlobID(rec, at)
	url, err := o.blobs.Save(ctx, codeID, []byte(code), "text/x-python")
	if err != nil {
		return fmt.Errorf("failed to save generated code: %w", err)
	}

	cells := record.GenerationCells(o.cfg.Columns, record.GenerationMeta{
		CodeFileURL:      url,
		Model:            o.ai.Model(),
		PromptVersion:    o.promptVersion,
		GeneratedAt:      at,
		InputTokens:      meta.InputTokens,
		OutputTokens:     meta.OutputTokens,
		TotalTokens:      meta.TotalTokens,
		ThoughtsTokens:   meta.ThoughtsTokens,
		TextTokens:       meta.TextTokens,
		ImageTokens:      meta.ImageTokens,
		ResponseTimeMs:   meta.ResponseTimeMs,
		SafetyRatings:    meta.SafetyRatings,
		FinishReason:     meta.FinishReason,
		CitationMetadata: meta.CitationMetadata,
		ModelVersion:     meta.ModelVersion,
		ResponseID:       meta.ResponseID,
	})
	if err := o.master.Update(ctx, rec.RowNum, cells); err != nil {
		return fmt.Errorf("failed to persist generation: %w", err)
	}
	o.logger.Info("generated code for row", "row", rec.RowNum, "code", codeID)
	return nil
}
