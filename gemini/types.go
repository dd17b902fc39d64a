package gemini

import "encoding/json"

// Wire types of the generate-content API.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	InlineData *inlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	ModelVersion  string         `json:"modelVersion"`
	ResponseID    string         `json:"responseId"`
}

type candidate struct {
	Content          content         `json:"content"`
	SafetyRatings    json.RawMessage `json:"safetyRatings"`
	FinishReason     string          `json:"finishReason"`
	CitationMetadata json.RawMessage `json:"citationMetadata"`
}

type usageMetadata struct {
	PromptTokenCount     int              `json:"promptTokenCount"`
	CandidatesTokenCount int              `json:"candidatesTokenCount"`
	TotalTokenCount      int              `json:"totalTokenCount"`
	ThoughtsTokenCount   int              `json:"thoughtsTokenCount"`
	PromptTokensDetails  []modalityTokens `json:"promptTokensDetails"`
}

type modalityTokens struct {
	Modality   string `json:"modality"`
	TokenCount int    `json:"tokenCount"`
}

// Meta is the usage and provenance metadata of one generation.
type Meta struct {
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	ThoughtsTokens int
	TextTokens     int
	ImageTokens    int

	ResponseTimeMs int

	SafetyRatings    string
	FinishReason     string
	CitationMetadata string
	ModelVersion     string
	ResponseID       string
}

// Result is the outcome of one generation: the fence-stripped candidate
// text plus its metadata.
type Result struct {
	Content string
	Meta    Meta
}

func (c *Client) resultFromResponse(resp *generateResponse, latencyMs int) (Result, error) {
	if len(resp.Candidates) == 0 {
		return Result{}, ErrNoCandidates
	}
	cand := resp.Candidates[0]
	if len(cand.Content.Parts) == 0 {
		return Result{}, ErrNoCandidates
	}

	meta := Meta{
		ResponseTimeMs:   latencyMs,
		SafetyRatings:    rawOr(cand.SafetyRatings, "[]"),
		FinishReason:     cand.FinishReason,
		CitationMetadata: rawOr(cand.CitationMetadata, "{}"),
		ModelVersion:     resp.ModelVersion,
		ResponseID:       resp.ResponseID,
	}
	if meta.FinishReason == "" {
		meta.FinishReason = c.finishReason
	}
	if meta.ModelVersion == "" {
		meta.ModelVersion = c.model
	}
	if u := resp.UsageMetadata; u != nil {
		meta.InputTokens = u.PromptTokenCount
		meta.OutputTokens = u.CandidatesTokenCount
		meta.TotalTokens = u.TotalTokenCount
		meta.ThoughtsTokens = u.ThoughtsTokenCount
		for _, d := range u.PromptTokensDetails {
			switch d.Modality {
			case "TEXT":
				meta.TextTokens = d.TokenCount
			case "IMAGE", "DOCUMENT":
				meta.ImageTokens = d.TokenCount
			}
		}
	}

	return Result{
		Content: StripCodeFences(cand.Content.Parts[0].Text),
		Meta:    meta,
	}, nil
}

func rawOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
