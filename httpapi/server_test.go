package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/gemini"
	"github.com/justuju/flowjudge/lifecycle"
	"github.com/justuju/flowjudge/manifest"
	"github.com/justuju/flowjudge/problems"
	"github.com/justuju/flowjudge/recordstore"
)

type stubAI struct {
	result gemini.Result
}

func (s *stubAI) Model() string { return "gemini-test" }

func (s *stubAI) SniffBlobMime(ctx context.Context, blobID string) (string, error) {
	return "image/png", nil
}

func (s *stubAI) Generate(ctx context.Context, blobID string, prompt string, temperature float64) (gemini.Result, error) {
	return s.result, nil
}

func (s *stubAI) BuildRequestLine(key string, mimeType string, data []byte, prompt string, temperature float64) ([]byte, error) {
	return json.Marshal(map[string]string{"key": key})
}

func (s *stubAI) UploadBatchFile(ctx context.Context, displayName string, jsonl []byte) (string, error) {
	return "files/input", nil
}

func (s *stubAI) CreateBatch(ctx context.Context, displayName string, fileName string) (string, error) {
	return "batches/op-1", nil
}

func (s *stubAI) BatchState(ctx context.Context, jobName string) (gemini.JobStatus, error) {
	return gemini.JobStatus{State: gemini.State("BATCH_STATE_RUNNING")}, nil
}

func (s *stubAI) FetchResults(ctx context.Context, st gemini.JobStatus, orderedKeys []string) ([]gemini.ResultLine, error) {
	return nil, nil
}

func (s *stubAI) ResultFromLine(line gemini.ResultLine) (gemini.Result, error) {
	return gemini.Result{}, nil
}

type stubJudge struct{}

func (stubJudge) Submit(ctx context.Context, code string, problemID problems.ID) (string, error) {
	return "42", nil
}

func (stubJudge) Poll(ctx context.Context, submissionID string) (string, bool, error) {
	return "", false, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *blobstore.MemBlobs) {
	t.Helper()
	cfg := conf.Default()
	blobs := blobstore.NewMemBlobs()
	master := recordstore.NewMemDataset()
	catalog := recordstore.NewMemDataset()
	registry := recordstore.NewMemDataset()

	orch := lifecycle.New(cfg, blobs, master, problems.NewCatalog(catalog, false),
		&stubAI{result: gemini.Result{Content: "print(1)"}}, stubJudge{},
		manifest.NewTracker(blobs, registry), "prompt", "v1")

	srv := httptest.NewServer(NewHttpServer(orch).Handler())
	t.Cleanup(srv.Close)
	return srv, blobs
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func TestIngestAndListRecords(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/submissions", map[string]string{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"email":         "student@example.com",
		"problem_code":  "P1",
		"flowchart_url": "https://blobs.test/d/flowchart-submission-abc-0001/view",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	require.Equal(t, "success", envelope["status"])

	listResp, err := http.Get(srv.URL + "/records")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	envelope = decodeEnvelope(t, listResp)
	records := envelope["data"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	require.Equal(t, "student@example.com", rec["email"])
	require.Equal(t, "NEW", rec["status"])
}

func TestIngestSubmissionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/submissions", map[string]string{
		"email": "student@example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	require.Equal(t, "error", envelope["status"])
	require.Equal(t, "invalid_request", envelope["code"])
}

func TestRequestIDAnnotatesErrorLogs(t *testing.T) {
	srv, _ := newTestServer(t)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	resp := postJSON(t, srv.URL+"/submissions", map[string]string{
		"email": "student@example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	require.Contains(t, logs.String(), "request_id=")
	require.Contains(t, logs.String(), "service error")
}

func TestTriggerGemini(t *testing.T) {
	srv, blobs := newTestServer(t)

	_, err := blobs.Save(context.Background(),
		"flowchart-submission-abc-0002", []byte("\x89PNGfake"), "image/png")
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/submissions", map[string]string{
		"email":         "student@example.com",
		"problem_code":  "P1",
		"flowchart_url": "https://blobs.test/d/flowchart-submission-abc-0002/view",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	trigResp := postJSON(t, srv.URL+"/triggers/gemini", nil)
	require.Equal(t, http.StatusOK, trigResp.StatusCode)
	envelope := decodeEnvelope(t, trigResp)
	data := envelope["data"].(map[string]any)
	require.Equal(t, float64(1), data["processed"])

	listResp, err := http.Get(srv.URL + "/records?status=GEMINI_DONE")
	require.NoError(t, err)
	envelope = decodeEnvelope(t, listResp)
	require.Len(t, envelope["data"].([]any), 1)
}
