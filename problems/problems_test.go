package problems_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/justuju/flowjudge/problems"
	"github.com/justuju/flowjudge/recordstore"
	"github.com/stretchr/testify/require"
)

func catalogDataset(t *testing.T) *recordstore.MemDataset {
	t.Helper()
	ds := recordstore.NewMemDataset()
	ctx := context.Background()
	require.NoError(t, ds.EnsureHeaders(ctx, []string{"Problem Code", "Problem ID"}))
	_, err := ds.Append(ctx, map[string]string{"Problem Code": "FCP045", "Problem ID": "17"})
	require.NoError(t, err)
	_, err = ds.Append(ctx, map[string]string{"Problem Code": "FCP100", "Problem ID": "sumtask"})
	require.NoError(t, err)
	return ds
}

func TestCodeKey(t *testing.T) {
	require.Equal(t, "FCP045", problems.CodeKey("FCP045 - Loops and Conditionals"))
	require.Equal(t, "FCP045", problems.CodeKey("FCP045"))
	require.Equal(t, "FCP045", problems.CodeKey("  FCP045  "))
	require.Equal(t, "", problems.CodeKey(""))
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	cat := problems.NewCatalog(catalogDataset(t), false)

	id, err := cat.Lookup(ctx, "FCP045 - Loops and Conditionals")
	require.NoError(t, err)
	require.Equal(t, "17", id.String())

	_, err = cat.Lookup(ctx, "FCP999")
	var notFound *problems.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "FCP999", notFound.Code)
}

func TestIDMarshalJSON(t *testing.T) {
	ctx := context.Background()

	// opaque by default
	cat := problems.NewCatalog(catalogDataset(t), false)
	id, err := cat.Lookup(ctx, "FCP045")
	require.NoError(t, err)
	raw, err := json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `"17"`, string(raw))

	// numeric coercion when configured
	cat = problems.NewCatalog(catalogDataset(t), true)
	id, err = cat.Lookup(ctx, "FCP045")
	require.NoError(t, err)
	raw, err = json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `17`, string(raw))

	// non-numeric ids stay strings even with coercion on
	id, err = cat.Lookup(ctx, "FCP100")
	require.NoError(t, err)
	raw, err = json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `"sumtask"`, string(raw))
}
