package blobstore_test

import (
	"context"
	"testing"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/stretchr/testify/require"
)

func TestIdFromURL(t *testing.T) {
	id := "1a2b3c4d5e6f7g8h9i0j1k2l3m4n5o"
	url := "https://drive.example.com/file/d/" + id + "/view?usp=sharing"
	require.Equal(t, id, blobstore.IdFromURL(url))

	// too short to be an id
	require.Equal(t, "", blobstore.IdFromURL("https://example.com/short"))
	require.Equal(t, "", blobstore.IdFromURL(""))
}

func TestMemBlobsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemBlobs()

	code := []byte("a=int(input())\nb=int(input())\nprint(a+b)\n")
	url, err := store.Save(ctx, "generated-codes-2024-01-01-someone-at-example-com-17", code, "text/x-python")
	require.NoError(t, err)

	id := blobstore.IdFromURL(url)
	require.NotEmpty(t, id)

	got, err := store.Fetch(ctx, id)
	require.NoError(t, err)
	require.Equal(t, code, got)
}

func TestMemBlobsFetchMissing(t *testing.T) {
	store := blobstore.NewMemBlobs()
	_, err := store.Fetch(context.Background(), "does-not-exist-aaaaaaaaaaaaaaaa")
	require.Error(t, err)
}

func TestMemBlobsDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemBlobs()

	_, err := store.Save(ctx, "manifests-batches-abc123def456ghi789jkl012", []byte("{}"), "application/json")
	require.NoError(t, err)

	ids, err := store.List(ctx, "manifests-")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	exists, err := store.Exists(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Delete(ctx, ids[0]))
	ids, err = store.List(ctx, "manifests-")
	require.NoError(t, err)
	require.Empty(t, ids)

	exists, err = store.Exists(ctx, "manifests-batches-abc123def456ghi789jkl012")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t,
		"batches-operation-1234567890abcdef",
		blobstore.SanitizeName("batches/operation:1234567890abcdef"))
}
