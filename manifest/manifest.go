// Package manifest persists the row-to-batch-job mapping needed to
// reconcile asynchronous AI results back to their originating records,
// including across process restarts.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/recordstore"
)

// RowRef ties a manifest key to its originating record. The key is the
// only join key back to the master dataset and must be unique within
// the manifest.
type RowRef struct {
	Key       string `json:"key"`
	RowNum    int    `json:"row"`
	Timestamp string `json:"timestamp"`
	Email     string `json:"email"`
	Problem   string `json:"problem"`
	MimeType  string `json:"mime_type"`
}

// RowKey builds the manifest key for a source row: "row-" + row number.
func RowKey(rowNum int) string {
	return "row-" + strconv.Itoa(rowNum)
}

// Manifest records one enqueued batch. Written once at enqueue time,
// read by polling, consumed once at ingestion.
type Manifest struct {
	CreatedAt   time.Time `json:"created_at"`
	Model       string    `json:"model"`
	Dataset     string    `json:"dataset"`
	Rows        []RowRef  `json:"rows"`
	BatchName   string    `json:"batch_name,omitempty"`
	ResultsFile string    `json:"results_file,omitempty"`
}

// Keys returns the manifest's row keys in order, for positional pairing
// of inline batch responses.
func (m Manifest) Keys() []string {
	keys := make([]string, len(m.Rows))
	for i, row := range m.Rows {
		keys[i] = row.Key
	}
	return keys
}

// Registry ledger columns.
const (
	ColTimestamp   = "Timestamp"
	ColBatchHandle = "Batch Handle"
	ColManifestID  = "Manifest ID"
	ColRowCount    = "Row Count"
)

// Entry is one append-only registry ledger row.
type Entry struct {
	Timestamp   string
	BatchHandle string
	ManifestID  string
	RowCount    int
}

// Tracker persists manifests in the blob store and records each batch
// in the append-only registry ledger.
type Tracker struct {
	logger   *slog.Logger
	blobs    blobstore.BlobStore
	registry recordstore.Dataset
}

func NewTracker(blobs blobstore.BlobStore, registry recordstore.Dataset) *Tracker {
	return &Tracker{
		logger:   slog.Default().With("module", "manifest"),
		blobs:    blobs,
		registry: registry,
	}
}

// ManifestID derives the deterministic blob id of a batch's manifest
// from its job handle.
func ManifestID(batchName string) string {
	return "manifest-" + blobstore.SanitizeName(batchName) + ".json"
}

// Save writes the manifest under its deterministic name. A pre-existing
// blob of that name is deleted first so a retried enqueue never leaves
// duplicates.
func (t *Tracker) Save(ctx context.Context, m Manifest) (string, error) {
	id := ManifestID(m.BatchName)

	exists, err := t.blobs.Exists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing manifest: %w", err)
	}
	if exists {
		if err := t.blobs.Delete(ctx, id); err != nil {
			return "", fmt.Errorf("failed to delete stale manifest %s: %w", id, err)
		}
		t.logger.Info("replaced stale manifest", "manifest", id)
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := t.blobs.Save(ctx, id, raw, "application/json"); err != nil {
		return "", fmt.Errorf("failed to save manifest: %w", err)
	}
	return id, nil
}

// Load reads a manifest back by its blob id.
func (t *Tracker) Load(ctx context.Context, id string) (Manifest, error) {
	raw, err := t.blobs.Fetch(ctx, id)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to fetch manifest %s: %w", id, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", id, err)
	}
	return m, nil
}

// Track appends one registry entry for an enqueued batch. The ledger is
// created with its header on first use and never mutated afterwards.
func (t *Tracker) Track(ctx context.Context, m Manifest, manifestID string) error {
	headers := []string{ColTimestamp, ColBatchHandle, ColManifestID, ColRowCount}
	if err := t.registry.EnsureHeaders(ctx, headers); err != nil {
		return fmt.Errorf("failed to ensure registry ledger: %w", err)
	}

	_, err := t.registry.Append(ctx, map[string]string{
		ColTimestamp:   m.CreatedAt.UTC().Format(time.RFC3339),
		ColBatchHandle: m.BatchName,
		ColManifestID:  manifestID,
		ColRowCount:    strconv.Itoa(len(m.Rows)),
	})
	if err != nil {
		return fmt.Errorf("failed to append registry entry: %w", err)
	}
	return nil
}

// Entries reads the registry ledger, oldest first. Polling walks these
// to find batches that may still need ingestion after a restart.
func (t *Tracker) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := t.registry.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry ledger: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		count, _ := strconv.Atoi(row.Get(ColRowCount))
		entries = append(entries, Entry{
			Timestamp:   row.Get(ColTimestamp),
			BatchHandle: row.Get(ColBatchHandle),
			ManifestID:  row.Get(ColManifestID),
			RowCount:    count,
		})
	}
	return entries, nil
}
