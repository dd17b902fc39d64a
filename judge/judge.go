// Package judge is the DOMjudge API client: contest-scoped submission
// creation with student credentials and judgement polling with admin
// credentials.
package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/problems"
	"github.com/klauspost/compress/zip"
)

type Client struct {
	logger *slog.Logger
	http   *http.Client
	cfg    conf.JudgeConfig
}

func NewClient(cfg conf.JudgeConfig) *Client {
	return &Client{
		logger: slog.Default().With("module", "judge"),
		http:   &http.Client{Timeout: 60 * time.Second},
		cfg:    cfg,
	}
}

type submitPayload struct {
	ProblemID  problems.ID  `json:"problem_id"`
	LanguageID string       `json:"language_id"`
	TeamID     string       `json:"team_id"`
	Files      []submitFile `json:"files"`
}

type submitFile struct {
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64 zip
}

// Submit packages code as a single-file zip and posts it to the contest
// submission endpoint with student credentials. An expected HTTP failure
// returns ("", nil); the caller leaves the row for the next scan.
func (c *Client) Submit(ctx context.Context, code string, problemID problems.ID) (string, error) {
	archive, err := zipSingleFile(c.cfg.SolutionFilename, []byte(code))
	if err != nil {
		return "", fmt.Errorf("failed to package submission: %w", err)
	}

	payload := submitPayload{
		ProblemID:  problemID,
		LanguageID: c.cfg.LanguageID,
		TeamID:     c.cfg.TeamID,
		Files: []submitFile{{
			Filename: c.cfg.ZipFilename,
			Data:     base64.StdEncoding.EncodeToString(archive),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	submissionsURL := fmt.Sprintf("%s/contests/%s/submissions", c.cfg.BaseURL, c.cfg.ContestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submissionsURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.StudentUser, c.cfg.StudentPass)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("judge submission request failed", "error", err, "problem", problemID.String())
		return "", nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("judge rejected submission",
			"status", resp.StatusCode, "body", string(respBody), "problem", problemID.String())
		return "", nil
	}

	var parsed struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.logger.Error("malformed judge submission response", "error", err, "body", string(respBody))
		return "", nil
	}

	c.logger.Info("submitted to judge", "submission_id", parsed.ID.String(), "problem", problemID.String())
	return parsed.ID.String(), nil
}

// Poll fetches judgements for one submission with admin credentials.
// strict=false tolerates judgements that are still pending. An empty
// judgement list yields found=false with no error.
func (c *Client) Poll(ctx context.Context, submissionID string) (string, bool, error) {
	judgementsURL := fmt.Sprintf("%s/contests/%s/judgements?submission_id=%s&strict=false",
		c.cfg.BaseURL, c.cfg.ContestID, url.QueryEscape(submissionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, judgementsURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build judgements request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AdminUser, c.cfg.AdminPass)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("judgements request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read judgements response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("judgements request returned %d: %s", resp.StatusCode, string(respBody))
	}

	var judgements []struct {
		JudgementTypeID string `json:"judgement_type_id"`
	}
	if err := json.Unmarshal(respBody, &judgements); err != nil {
		return "", false, fmt.Errorf("malformed judgements response: %w", err)
	}
	if len(judgements) == 0 {
		return "", false, nil
	}

	verdict := judgements[0].JudgementTypeID
	if verdict == "" {
		// judgement exists but has no verdict yet
		return "", false, nil
	}
	return verdict, true, nil
}

func zipSingleFile(name string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
