package conf

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is constructed once at startup and passed explicitly to every
// component. No package reads configuration from ambient state.
type Config struct {
	Gemini  GeminiConfig  `toml:"gemini"`
	Judge   JudgeConfig   `toml:"judge"`
	Storage StorageConfig `toml:"storage"`
	Data    DataConfig    `toml:"data"`
	Columns Columns       `toml:"columns"`
}

type GeminiConfig struct {
	Endpoint       string  `toml:"endpoint"`        // e.g. https://generativelanguage.googleapis.com/v1beta
	UploadEndpoint string  `toml:"upload_endpoint"` // e.g. https://generativelanguage.googleapis.com/upload/v1beta
	Model          string  `toml:"model"`
	APIKey         string  `toml:"api_key"`
	Temperature    float64 `toml:"temperature"`
	PromptVersion  string  `toml:"prompt_version"`
	FinishReason   string  `toml:"default_finish_reason"`
	BatchCap       int     `toml:"batch_cap"` // 0 means no cap on enqueue
}

type JudgeConfig struct {
	BaseURL    string `toml:"base_url"` // e.g. https://judge.example.org/api/v4
	ContestID  string `toml:"contest_id"`
	TeamID     string `toml:"team_id"`
	LanguageID string `toml:"language_id"`

	SolutionFilename string `toml:"solution_filename"` // file inside the zip
	ZipFilename      string `toml:"zip_filename"`

	StudentUser string `toml:"student_user"`
	StudentPass string `toml:"student_pass"`
	AdminUser   string `toml:"admin_user"`
	AdminPass   string `toml:"admin_pass"`

	// Some catalogs store numeric judge problem ids. When set, a
	// numeric-looking id is submitted as a JSON number instead of a string.
	CoerceNumericProblemIDs bool `toml:"coerce_numeric_problem_ids"`
}

type StorageConfig struct {
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`

	CodeFolder    string `toml:"code_folder"`    // prefix for generated code blobs
	CodeExtension string `toml:"code_extension"` // e.g. ".py"
}

type DataConfig struct {
	Table string `toml:"table"` // dynamodb table backing all datasets

	MasterDataset   string `toml:"master_dataset"`
	CatalogDataset  string `toml:"catalog_dataset"`
	RegistryDataset string `toml:"registry_dataset"`
}

// Columns names every master-sheet column. The record store addresses cells
// by header name, never by position.
type Columns struct {
	Timestamp           string `toml:"timestamp"`
	Email               string `toml:"email"`
	ProblemCode         string `toml:"problem_code"`
	FlowchartURL        string `toml:"flowchart_url"`
	Status              string `toml:"status"`
	ImageMimeType       string `toml:"image_mime_type"`
	CodeFileURL         string `toml:"code_file_url"`
	ModelUsed           string `toml:"model_used"`
	PromptVersion       string `toml:"prompt_version"`
	GenerationTimestamp string `toml:"generation_timestamp"`
	InputTokens         string `toml:"input_tokens"`
	OutputTokens        string `toml:"output_tokens"`
	TotalTokens         string `toml:"total_tokens"`
	ThoughtsTokens      string `toml:"thoughts_tokens"`
	TextTokens          string `toml:"text_tokens"`
	ImageTokens         string `toml:"image_tokens"`
	ResponseTime        string `toml:"response_time"`
	SafetyRatings       string `toml:"safety_ratings"`
	FinishReason        string `toml:"finish_reason"`
	CitationMetadata    string `toml:"citation_metadata"`
	ModelVersion        string `toml:"model_version"`
	ResponseID          string `toml:"response_id"`
	SubmissionID        string `toml:"submission_id"`
	SubmissionTimestamp string `toml:"submission_timestamp"`
	SubmissionAccepted  string `toml:"submission_accepted"`
	Verdict             string `toml:"verdict"`
}

// All returns the master dataset header in canonical order.
func (c Columns) All() []string {
	return []string{
		c.Timestamp, c.Email, c.ProblemCode, c.FlowchartURL, c.Status,
		c.ImageMimeType, c.CodeFileURL, c.ModelUsed, c.PromptVersion,
		c.GenerationTimestamp, c.InputTokens, c.OutputTokens, c.TotalTokens,
		c.ThoughtsTokens, c.TextTokens, c.ImageTokens, c.ResponseTime,
		c.SafetyRatings, c.FinishReason, c.CitationMetadata, c.ModelVersion,
		c.ResponseID, c.SubmissionID, c.SubmissionTimestamp,
		c.SubmissionAccepted, c.Verdict,
	}
}

func Default() Config {
	return Config{
		Gemini: GeminiConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
			UploadEndpoint: "https://generativelanguage.googleapis.com/upload/v1beta",
			Model:          "gemini-2.5-flash",
			Temperature:    0,
			PromptVersion:  "v1",
			FinishReason:   "UNKNOWN",
		},
		Judge: JudgeConfig{
			LanguageID:       "python3",
			SolutionFilename: "solution.py",
			ZipFilename:      "solution.zip",
		},
		Storage: StorageConfig{
			Region:        "eu-central-1",
			CodeFolder:    "generated-codes",
			CodeExtension: ".py",
		},
		Data: DataConfig{
			MasterDataset:   "Master",
			CatalogDataset:  "Meta",
			RegistryDataset: "BatchRegistry",
		},
		Columns: Columns{
			Timestamp:           "Timestamp",
			Email:               "Email Address",
			ProblemCode:         "Problem Number",
			FlowchartURL:        "Upload your Flowchart",
			Status:              "Status",
			ImageMimeType:       "Image MIME Type",
			CodeFileURL:         "Generated Code",
			ModelUsed:           "Model Used",
			PromptVersion:       "Prompt Version",
			GenerationTimestamp: "Generation Timestamp",
			InputTokens:         "Input Tokens",
			OutputTokens:        "Output Tokens",
			TotalTokens:         "Total Tokens",
			ThoughtsTokens:      "Thoughts Tokens",
			TextTokens:          "Text Tokens",
			ImageTokens:         "Image Tokens",
			ResponseTime:        "Response Time",
			SafetyRatings:       "Safety Ratings",
			FinishReason:        "Finish Reason",
			CitationMetadata:    "Citation Metadata",
			ModelVersion:        "Model Version",
			ResponseID:          "Response ID",
			SubmissionID:        "Submission ID",
			SubmissionTimestamp: "Submission Timestamp",
			SubmissionAccepted:  "Submission Accepted",
			Verdict:             "Verdict",
		},
	}
}

// Load builds a Config from defaults, an optional TOML file, and
// environment variables, in that order of precedence.
func Load(tomlPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		raw, err := os.ReadFile(tomlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := toml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setStr(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.Gemini.Model, "GEMINI_MODEL")
	setStr(&cfg.Gemini.Endpoint, "GEMINI_ENDPOINT")
	setStr(&cfg.Gemini.UploadEndpoint, "GEMINI_UPLOAD_ENDPOINT")

	setStr(&cfg.Judge.BaseURL, "DOMJUDGE_API_URL")
	setStr(&cfg.Judge.ContestID, "DOMJUDGE_CONTEST_ID")
	setStr(&cfg.Judge.TeamID, "DOMJUDGE_TEAM_ID")
	setStr(&cfg.Judge.LanguageID, "DOMJUDGE_LANGUAGE_ID")
	setStr(&cfg.Judge.StudentUser, "DOMJUDGE_USER")
	setStr(&cfg.Judge.StudentPass, "DOMJUDGE_PASS")
	setStr(&cfg.Judge.AdminUser, "DOMJUDGE_ADMIN_USER")
	setStr(&cfg.Judge.AdminPass, "DOMJUDGE_ADMIN_PASS")

	setStr(&cfg.Storage.Region, "AWS_REGION")
	setStr(&cfg.Storage.Bucket, "FLOWJUDGE_BUCKET")
	setStr(&cfg.Data.Table, "FLOWJUDGE_TABLE")

	if v := os.Getenv("GEMINI_BATCH_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gemini.BatchCap = n
		}
	}
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate reports setup failures. A missing credential aborts the whole
// trigger invocation; per-row failures never do.
func (c Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is not set")
	}
	if c.Judge.BaseURL == "" {
		return fmt.Errorf("judge base url is not set")
	}
	if c.Judge.ContestID == "" {
		return fmt.Errorf("judge contest id is not set")
	}
	if c.Judge.StudentUser == "" || c.Judge.StudentPass == "" {
		return fmt.Errorf("judge student credentials are not set")
	}
	if c.Judge.AdminUser == "" || c.Judge.AdminPass == "" {
		return fmt.Errorf("judge admin credentials are not set")
	}
	if c.Data.MasterDataset == "" {
		return fmt.Errorf("master dataset name is not set")
	}
	return nil
}
