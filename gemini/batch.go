package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// State is a batch job state reported by the provider. Two naming
// schemes are in the wild: BATCH_STATE_* and JOB_STATE_*.
type State string

var terminalStates = map[string]bool{
	"SUCCEEDED": true,
	"FAILED":    true,
	"CANCELLED": true,
	"EXPIRED":   true,
}

func (s State) suffix() string {
	str := string(s)
	for _, prefix := range []string{"BATCH_STATE_", "JOB_STATE_"} {
		if strings.HasPrefix(str, prefix) {
			return strings.TrimPrefix(str, prefix)
		}
	}
	return str
}

// Terminal reports whether no further transition will occur.
func (s State) Terminal() bool {
	return terminalStates[s.suffix()]
}

func (s State) Succeeded() bool {
	return s.suffix() == "SUCCEEDED"
}

// JobStatus is a snapshot of a batch job. Exactly one of ResultsFile and
// Inlined is populated on terminal success.
type JobStatus struct {
	Name        string
	State       State
	ResultsFile string
	Inlined     []ResultLine
}

// ResultLine is one line of a batch result: the manifest join key and
// either a response or a per-line error.
type ResultLine struct {
	Key      string           `json:"key,omitempty"`
	Response *json.RawMessage `json:"response,omitempty"`
	Error    *LineError       `json:"error,omitempty"`
}

type LineError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// lines may also carry the key under metadata, depending on how the
// batch was constructed
type resultLineWire struct {
	Key      string           `json:"key"`
	Metadata *struct {
		Key string `json:"key"`
	} `json:"metadata"`
	Response *json.RawMessage `json:"response"`
	Error    *LineError       `json:"error"`
}

// BuildRequestLine renders one JSONL request line for a batch file.
func (c *Client) BuildRequestLine(key string, mimeType string, data []byte, prompt string, temperature float64) ([]byte, error) {
	line := struct {
		Key     string          `json:"key"`
		Request generateRequest `json:"request"`
	}{
		Key: key,
		Request: generateRequest{
			Contents: []content{{
				Parts: []part{
					{InlineData: &inlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(data),
					}},
					{Text: prompt},
				},
			}},
			GenerationConfig: generationConfig{Temperature: temperature},
		},
	}
	return json.Marshal(line)
}

// UploadBatchFile uploads a JSONL payload via the two-phase resumable
// handshake and returns the provider file handle.
func (c *Client) UploadBatchFile(ctx context.Context, displayName string, jsonl []byte) (string, error) {
	var fileName string
	err := c.retry.do(ctx, func() error {
		var err error
		fileName, err = c.uploadOnce(ctx, displayName, jsonl)
		return err
	})
	return fileName, err
}

func (c *Client) uploadOnce(ctx context.Context, displayName string, jsonl []byte) (string, error) {
	// phase 1: start a resumable session; the upload URL comes back in a
	// response header
	startBody, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": displayName},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode upload start: %w", err)
	}

	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.uploadEndpoint+"/files", bytes.NewReader(startBody))
	if err != nil {
		return "", fmt.Errorf("failed to build upload start request: %w", err)
	}
	startReq.Header.Set("x-goog-api-key", c.apiKey)
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(jsonl)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", "application/jsonl")
	startReq.Header.Set("Content-Type", "application/json")

	startResp, err := c.http.Do(startReq)
	if err != nil {
		return "", fmt.Errorf("upload start failed: %w", err)
	}
	io.Copy(io.Discard, startResp.Body)
	startResp.Body.Close()
	if startResp.StatusCode < 200 || startResp.StatusCode >= 300 {
		return "", &HTTPError{Status: startResp.StatusCode, Body: "upload start rejected"}
	}

	uploadURL := startResp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("upload start response carries no upload url")
	}

	// phase 2: upload the bytes and finalize in one shot
	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(jsonl))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	upReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	upReq.Header.Set("X-Goog-Upload-Offset", "0")
	upReq.Header.Set("Content-Length", strconv.Itoa(len(jsonl)))

	upResp, err := c.http.Do(upReq)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer upResp.Body.Close()
	upBody, err := io.ReadAll(upResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if upResp.StatusCode < 200 || upResp.StatusCode >= 300 {
		return "", &HTTPError{Status: upResp.StatusCode, Body: string(upBody)}
	}

	var parsed struct {
		File struct {
			Name string `json:"name"`
		} `json:"file"`
	}
	if err := json.Unmarshal(upBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if parsed.File.Name == "" {
		return "", fmt.Errorf("upload response carries no file name")
	}
	return parsed.File.Name, nil
}

// CreateBatch creates a batch job referencing an uploaded request file
// and returns the job handle without waiting for completion.
func (c *Client) CreateBatch(ctx context.Context, displayName string, fileName string) (string, error) {
	payload := map[string]any{
		"batch": map[string]any{
			"display_name": displayName,
			"input_config": map[string]any{
				"file_name": fileName,
			},
		},
	}
	url := fmt.Sprintf("%s/models/%s:batchGenerateContent?key=%s", c.endpoint, c.model, c.apiKey)

	var jobName string
	err := c.retry.do(ctx, func() error {
		body, err := c.rawPost(ctx, url, payload)
		if err != nil {
			return err
		}
		var parsed struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to parse batch create response: %w", err)
		}
		if parsed.Name == "" {
			return fmt.Errorf("batch create response carries no job name")
		}
		jobName = parsed.Name
		return nil
	})
	return jobName, err
}

// BatchState fetches the current job snapshot by handle. Non-terminal
// states carry no results.
func (c *Client) BatchState(ctx context.Context, jobName string) (JobStatus, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.endpoint, jobName, c.apiKey)
	body, err := c.rawGet(ctx, url)
	if err != nil {
		return JobStatus{}, err
	}

	var op struct {
		Name     string `json:"name"`
		Metadata struct {
			State string `json:"state"`
		} `json:"metadata"`
		Response *struct {
			ResponsesFile    string `json:"responsesFile"`
			InlinedResponses *struct {
				InlinedResponses []resultLineWire `json:"inlinedResponses"`
			} `json:"inlinedResponses"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &op); err != nil {
		return JobStatus{}, fmt.Errorf("failed to parse batch status: %w", err)
	}

	st := JobStatus{Name: op.Name, State: State(op.Metadata.State)}
	if op.Response != nil {
		st.ResultsFile = op.Response.ResponsesFile
		if op.Response.InlinedResponses != nil {
			for _, w := range op.Response.InlinedResponses.InlinedResponses {
				st.Inlined = append(st.Inlined, w.normalize())
			}
		}
	}
	return st, nil
}

func (w resultLineWire) normalize() ResultLine {
	key := w.Key
	if key == "" && w.Metadata != nil {
		key = w.Metadata.Key
	}
	return ResultLine{Key: key, Response: w.Response, Error: w.Error}
}

// FetchResults materializes the result lines of a terminally succeeded
// job: downloaded from the results file when present, otherwise the
// inline responses paired positionally against the given ordered keys.
func (c *Client) FetchResults(ctx context.Context, st JobStatus, orderedKeys []string) ([]ResultLine, error) {
	if !st.State.Succeeded() {
		return nil, fmt.Errorf("job %s is not in a succeeded state: %s", st.Name, st.State)
	}
	if st.ResultsFile != "" {
		url := fmt.Sprintf("%s/%s:download?alt=media&key=%s", c.endpoint, st.ResultsFile, c.apiKey)
		body, err := c.rawGet(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to download results file: %w", err)
		}
		return ParseResultLines(body)
	}

	// inline responses arrive in request order without keys of their own
	lines := make([]ResultLine, 0, len(st.Inlined))
	for i, line := range st.Inlined {
		if line.Key == "" && i < len(orderedKeys) {
			line.Key = orderedKeys[i]
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ParseResultLines parses a one-JSON-object-per-line results payload.
func ParseResultLines(data []byte) ([]ResultLine, error) {
	var lines []ResultLine
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var w resultLineWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("malformed result line: %w", err)
		}
		lines = append(lines, w.normalize())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan results: %w", err)
	}
	return lines, nil
}

// ResultFromLine decodes one successful batch line into the same Result
// shape the synchronous path produces.
func (c *Client) ResultFromLine(line ResultLine) (Result, error) {
	if line.Error != nil {
		return Result{}, fmt.Errorf("line %s carries error %d: %s", line.Key, line.Error.Code, line.Error.Message)
	}
	if line.Response == nil {
		return Result{}, fmt.Errorf("line %s carries no response", line.Key)
	}
	var resp generateResponse
	if err := json.Unmarshal(*line.Response, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to parse line %s response: %w", line.Key, err)
	}
	return c.resultFromResponse(&resp, 0)
}

func (c *Client) rawPost(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRaw(req)
}

func (c *Client) rawGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.doRaw(req)
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
