package manifest_test

import (
	"context"
	"testing"
	"time"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/manifest"
	"github.com/justuju/flowjudge/recordstore"
	"github.com/stretchr/testify/require"
)

func sampleManifest() manifest.Manifest {
	return manifest.Manifest{
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Model:     "gemini-2.5-flash",
		Dataset:   "Master",
		BatchName: "batches/operation-42",
		Rows: []manifest.RowRef{
			{Key: "row-2", RowNum: 2, Email: "a@example.com", Problem: "FCP045", MimeType: "image/png"},
			{Key: "row-5", RowNum: 5, Email: "b@example.com", Problem: "FCP100", MimeType: "image/jpeg"},
		},
	}
}

func TestRowKey(t *testing.T) {
	require.Equal(t, "row-2", manifest.RowKey(2))
	require.Equal(t, "row-17", manifest.RowKey(17))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemBlobs()
	tracker := manifest.NewTracker(blobs, recordstore.NewMemDataset())

	m := sampleManifest()
	id, err := tracker.Save(ctx, m)
	require.NoError(t, err)
	require.Equal(t, "manifest-batches-operation-42.json", id)

	got, err := tracker.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, m, got)
	require.Equal(t, []string{"row-2", "row-5"}, got.Keys())
}

func TestSaveOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemBlobs()
	tracker := manifest.NewTracker(blobs, recordstore.NewMemDataset())

	m := sampleManifest()
	_, err := tracker.Save(ctx, m)
	require.NoError(t, err)

	m.ResultsFile = "files/results-1"
	id, err := tracker.Save(ctx, m)
	require.NoError(t, err)

	// one blob, holding the latest content
	ids, err := blobs.List(ctx, "manifest-")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	got, err := tracker.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "files/results-1", got.ResultsFile)
}

func TestTrackAppendsLedger(t *testing.T) {
	ctx := context.Background()
	registry := recordstore.NewMemDataset()
	tracker := manifest.NewTracker(blobstore.NewMemBlobs(), registry)

	m := sampleManifest()
	require.NoError(t, tracker.Track(ctx, m, "manifest-batches-operation-42.json"))
	require.Equal(t,
		[]string{manifest.ColTimestamp, manifest.ColBatchHandle, manifest.ColManifestID, manifest.ColRowCount},
		registry.Headers())

	// ledger is append-only: a second batch adds a second row
	m2 := m
	m2.BatchName = "batches/operation-43"
	require.NoError(t, tracker.Track(ctx, m2, "manifest-batches-operation-43.json"))

	entries, err := tracker.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "batches/operation-42", entries[0].BatchHandle)
	require.Equal(t, 2, entries[0].RowCount)
	require.Equal(t, "2025-03-01T10:00:00Z", entries[0].Timestamp)
	require.Equal(t, "batches/operation-43", entries[1].BatchHandle)
}
