package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/gemini"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *gemini.Client {
	cfg := conf.Default().Gemini
	cfg.Endpoint = baseURL
	cfg.UploadEndpoint = baseURL + "/upload"
	cfg.APIKey = "test-key"
	return gemini.NewClient(cfg, blobstore.NewMemBlobs(), gemini.RetryPolicy{MaxAttempts: 1})
}

func TestStateTerminal(t *testing.T) {
	require.True(t, gemini.State("BATCH_STATE_SUCCEEDED").Terminal())
	require.True(t, gemini.State("JOB_STATE_FAILED").Terminal())
	require.True(t, gemini.State("BATCH_STATE_CANCELLED").Terminal())
	require.True(t, gemini.State("JOB_STATE_EXPIRED").Terminal())

	require.False(t, gemini.State("BATCH_STATE_RUNNING").Terminal())
	require.False(t, gemini.State("JOB_STATE_PENDING").Terminal())
	require.False(t, gemini.State("").Terminal())

	require.True(t, gemini.State("JOB_STATE_SUCCEEDED").Succeeded())
	require.False(t, gemini.State("BATCH_STATE_FAILED").Succeeded())
}

func TestParseResultLines(t *testing.T) {
	payload := []byte(`{"key":"row-2","response":{"candidates":[{"content":{"parts":[{"text":"print(1)"}]}}]}}
{"key":"row-5","error":{"code":13,"message":"internal"}}

{"metadata":{"key":"row-9"},"response":{"candidates":[]}}`)

	lines, err := gemini.ParseResultLines(payload)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	require.Equal(t, "row-2", lines[0].Key)
	require.NotNil(t, lines[0].Response)
	require.Nil(t, lines[0].Error)

	require.Equal(t, "row-5", lines[1].Key)
	require.Nil(t, lines[1].Response)
	require.Equal(t, "internal", lines[1].Error.Message)

	// key under metadata is honored too
	require.Equal(t, "row-9", lines[2].Key)
}

func TestParseResultLinesMalformed(t *testing.T) {
	_, err := gemini.ParseResultLines([]byte("{not json}"))
	require.Error(t, err)
}

func TestBuildRequestLine(t *testing.T) {
	c := newTestClient("http://unused")
	line, err := c.BuildRequestLine("row-3", "image/png", []byte{1, 2, 3}, "convert this", 0.2)
	require.NoError(t, err)

	var parsed struct {
		Key     string `json:"key"`
		Request struct {
			Contents []struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				Temperature float64 `json:"temperature"`
			} `json:"generationConfig"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal(line, &parsed))
	require.Equal(t, "row-3", parsed.Key)
	require.Len(t, parsed.Request.Contents, 1)
	require.Len(t, parsed.Request.Contents[0].Parts, 2)
	require.Equal(t, "image/png", parsed.Request.Contents[0].Parts[0].InlineData.MimeType)
	require.Equal(t, "convert this", parsed.Request.Contents[0].Parts[1].Text)
	require.Equal(t, 0.2, parsed.Request.GenerationConfig.Temperature)
}

func TestUploadBatchFileHandshake(t *testing.T) {
	var uploadedBody []byte
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/upload/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Upload-Command") != "start" {
			http.Error(w, "expected start command", http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Goog-Upload-URL", srv.URL+"/upload/session-1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/upload/session-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Upload-Command") != "upload, finalize" {
			http.Error(w, "expected finalize command", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		uploadedBody = body
		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]any{"name": "files/batch-req-1"},
		})
	})

	c := newTestClient(srv.URL)
	name, err := c.UploadBatchFile(context.Background(), "flowchart-batch", []byte("{\"key\":\"row-2\"}\n"))
	require.NoError(t, err)
	require.Equal(t, "files/batch-req-1", name)
	require.Equal(t, "{\"key\":\"row-2\"}\n", string(uploadedBody))
}

func TestCreateBatchReturnsJobName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Batch struct {
				DisplayName string `json:"display_name"`
				InputConfig struct {
					FileName string `json:"file_name"`
				} `json:"input_config"`
			} `json:"batch"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "files/batch-req-1", payload.Batch.InputConfig.FileName)
		json.NewEncoder(w).Encode(map[string]string{"name": "batches/operation-42"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	jobName, err := c.CreateBatch(context.Background(), "flowchart-batch", "files/batch-req-1")
	require.NoError(t, err)
	require.Equal(t, "batches/operation-42", jobName)
}

func TestBatchStateAndInlineResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name":     "batches/operation-42",
			"metadata": map[string]any{"state": "BATCH_STATE_SUCCEEDED"},
			"response": map[string]any{
				"inlinedResponses": map[string]any{
					"inlinedResponses": []map[string]any{
						{"response": map[string]any{"candidates": []map[string]any{
							{"content": map[string]any{"parts": []map[string]any{{"text": "```python\nprint(1)\n```"}}}},
						}}},
						{"error": map[string]any{"code": 13, "message": "boom"}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	st, err := c.BatchState(context.Background(), "batches/operation-42")
	require.NoError(t, err)
	require.True(t, st.State.Terminal())
	require.True(t, st.State.Succeeded())
	require.Len(t, st.Inlined, 2)

	// inline responses get keys positionally from the manifest order
	lines, err := c.FetchResults(context.Background(), st, []string{"row-2", "row-5"})
	require.NoError(t, err)
	require.Equal(t, "row-2", lines[0].Key)
	require.Equal(t, "row-5", lines[1].Key)

	res, err := c.ResultFromLine(lines[0])
	require.NoError(t, err)
	require.Equal(t, "print(1)", res.Content)

	_, err = c.ResultFromLine(lines[1])
	require.Error(t, err)
}
