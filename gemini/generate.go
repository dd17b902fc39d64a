package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justuju/flowjudge/blobstore"
)

// Generate runs the synchronous single-item call: resolve the blob,
// inline it as base64 next to the prompt, and return the fence-stripped
// candidate with usage metadata.
func (c *Client) Generate(ctx context.Context, blobID string, prompt string, temperature float64) (Result, error) {
	mimeType, data, err := c.fetchBlob(ctx, blobID)
	if err != nil {
		return Result{}, err
	}

	payload := generateRequest{
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
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)

	start := time.Now()
	resp, err := c.postJSON(ctx, url, payload)
	latencyMs := int(time.Since(start).Milliseconds())
	if err != nil {
		return Result{}, err
	}

	return c.resultFromResponse(resp, latencyMs)
}

// SniffBlobMime resolves a blob and reports its detected media type.
func (c *Client) SniffBlobMime(ctx context.Context, blobID string) (string, error) {
	mimeType, _, err := c.fetchBlob(ctx, blobID)
	return mimeType, err
}

func (c *Client) fetchBlob(ctx context.Context, blobID string) (string, []byte, error) {
	data, err := c.blobs.Fetch(ctx, blobID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: blob %s: %v", ErrFileUnavailable, blobID, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: blob %s is empty", ErrFileUnavailable, blobID)
	}
	return blobstore.SniffMIME(data), data, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return &parsed, nil
}
