// Package gemini is the client for the generative content API: the
// synchronous single-item call and the asynchronous file-based batch
// subsystem (upload, create, poll, results).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/conf"
)

var (
	// ErrFileUnavailable reports a source blob that could not be fetched
	// or was empty.
	ErrFileUnavailable = errors.New("file unavailable")

	// ErrNoCandidates reports a response with no candidate.
	ErrNoCandidates = errors.New("response has no candidates")
)

// HTTPError is a non-2xx provider response. The orchestrator treats it
// as a non-retryable failure for the row in the current pass.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini api error (%d): %s", e.Status, e.Body)
}

// RetryPolicy is a bounded retry with a linearly growing backoff,
// applied only to the batch upload and create calls.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.attempts(); attempt++ {
		if attempt > 0 && p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}

// retryable reports whether a failed call is worth repeating. Client
// errors other than 429 will fail identically on every attempt.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status == http.StatusTooManyRequests {
			return true
		}
		return httpErr.Status < 400 || httpErr.Status >= 500
	}
	return true
}

type Client struct {
	logger *slog.Logger
	http   *http.Client
	blobs  blobstore.BlobStore

	endpoint       string
	uploadEndpoint string
	model          string
	apiKey         string
	finishReason   string

	retry RetryPolicy
}

func NewClient(cfg conf.GeminiConfig, blobs blobstore.BlobStore, retry RetryPolicy) *Client {
	return &Client{
		logger:         slog.Default().With("module", "gemini"),
		http:           &http.Client{Timeout: 5 * time.Minute},
		blobs:          blobs,
		endpoint:       cfg.Endpoint,
		uploadEndpoint: cfg.UploadEndpoint,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		finishReason:   cfg.FinishReason,
		retry:          retry,
	}
}

// Model reports the configured model id.
func (c *Client) Model() string { return c.model }
