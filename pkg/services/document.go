package services

import (
	"context"
	"errors"
	"time"

	"docparse/pkg/models"
)

// DocumentService defines the operations exposed by the CLI and the HTTP API
type DocumentService interface {
	// Parse sends one document through Document AI and the parser. Processing
	// failures are reported in the response, never as an error.
	Parse(ctx context.Context, req models.ParseRequest) *models.ParseResponse

	// ParseBatch parses every request with bounded concurrency and retries.
	// Responses are in request order.
	ParseBatch(ctx context.Context, reqs []models.ParseRequest, opts BatchOptions) *BatchParseResponse

	// Run executes the full pipeline: staging, OCR, Document AI, parsing,
	// classification and KAG input generation.
	Run(ctx context.Context, req PipelineRequest) *PipelineResult

	// Status returns the progress of a running pipeline.
	Status(pipelineID string) (PipelineStatus, bool)

	// ResultJSON returns the stored result of a finished pipeline, or an
	// error wrapping ErrPipelineNotFound.
	ResultJSON(ctx context.Context, pipelineID string) ([]byte, error)
}

// ErrPipelineNotFound is returned for pipeline ids with no stored result
var ErrPipelineNotFound = errors.New("pipeline not found")

// BatchOptions overrides the configured batch settings for one call. Zero
// values keep the configured ones.
type BatchOptions struct {
	MaxConcurrent int `json:"max_concurrent"`
	MaxAttempts   int `json:"retry_attempts"`
}

// BatchParseResponse holds one ParseResponse per request
type BatchParseResponse struct {
	BatchID               string                 `json:"batch_id"`
	Results               []models.ParseResponse `json:"results"`
	Succeeded             int                    `json:"succeeded"`
	Failed                int                    `json:"failed"`
	ProcessingTimeSeconds float64                `json:"processing_time_seconds"`
}

// PipelineRequest describes one document for the full pipeline. Either
// Content or Source must be set; Source may be a gs:// URI or a local path.
type PipelineRequest struct {
	Filename            string                 `json:"filename"`
	Content             []byte                 `json:"-"`
	Source              string                 `json:"source,omitempty"`
	UserSessionID       string                 `json:"user_session_id,omitempty"`
	ProcessorID         string                 `json:"processor_id,omitempty"`
	ConfidenceThreshold *float64               `json:"confidence_threshold,omitempty"`
	SkipOCR             bool                   `json:"skip_ocr"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// PipelineResult is the outcome of Run and the content of pipeline_result.json
type PipelineResult struct {
	Success       bool   `json:"success"`
	PipelineID    string `json:"pipeline_id"`
	Message       string `json:"message"`
	UserSessionID string `json:"user_session_id"`

	// Stage outputs
	GCSURI        string                        `json:"gcs_uri,omitempty"`
	OCR           *OCRSummary                   `json:"ocr,omitempty"`
	Document      *models.ParsedDocument        `json:"document,omitempty"`
	Verdict       *models.ClassificationVerdict `json:"classification,omitempty"`
	KAGInputPath  string                        `json:"kag_input_path,omitempty"`
	ArtifactsDir  string                        `json:"artifacts_dir"`
	ArtifactPaths map[string]string             `json:"artifact_paths"`

	// Timing
	StageTimings        map[string]float64 `json:"stage_timings"`
	TotalProcessingTime float64            `json:"total_processing_time"`
	CompletedAt         time.Time          `json:"completed_at"`

	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OCRSummary describes the Vision OCR stage
type OCRSummary struct {
	PageCount     int      `json:"page_count"`
	Confidence    float64  `json:"confidence"`
	LanguageCodes []string `json:"language_codes"`
	TextLength    int      `json:"text_length"`
	Source        string   `json:"source"` // "vision" or "local"
}

// PipelineStatus reports the current stage of a running pipeline
type PipelineStatus struct {
	PipelineID         string    `json:"pipeline_id"`
	CurrentStage       string    `json:"current_stage"`
	ProgressPercentage float64   `json:"progress_percentage"`
	CompletedStages    int       `json:"completed_stages"`
	TotalStages        int       `json:"total_stages"`
	StartTime          time.Time `json:"start_time"`
	CurrentStageStart  time.Time `json:"current_stage_start"`
	Warnings           []string  `json:"warnings"`
}
