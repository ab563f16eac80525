package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"docparse/internal/config"
	"docparse/internal/logger"
	"docparse/internal/ocr"
	"docparse/internal/staging"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

const (
	// DefaultMaxUploadBytes bounds uploaded PDFs when no limit is configured.
	DefaultMaxUploadBytes = 20 << 20

	// multipartOverhead is allowed on top of the file for form boundaries and fields.
	multipartOverhead = 1 << 20

	maxJSONBytes = 1 << 20
)

// Handler serves the /api/v1 endpoints.
type Handler struct {
	svc       services.DocumentService
	ocr       ocr.Service
	stager    *staging.Stager
	cfg       *config.Config
	maxUpload int64
	version   string
}

// Option configures a Handler.
type Option func(*Handler)

// WithOCR enables POST /ocr.
func WithOCR(s ocr.Service) Option {
	return func(h *Handler) { h.ocr = s }
}

// WithStager enables POST /upload.
func WithStager(s *staging.Stager) Option {
	return func(h *Handler) { h.stager = s }
}

// WithConfig reports cfg on /docai/config and takes the upload limit from it.
func WithConfig(cfg *config.Config) Option {
	return func(h *Handler) {
		h.cfg = cfg
		if cfg.MaxUploadBytes > 0 {
			h.maxUpload = cfg.MaxUploadBytes
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc services.DocumentService, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		maxUpload: DefaultMaxUploadBytes,
		version:   "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	docaiConfigured := h.cfg != nil && h.cfg.RequireCloud() == nil
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]bool{
			"docai":   docaiConfigured,
			"ocr":     h.ocr != nil,
			"staging": h.stager != nil,
		},
	})
}

// Upload handles POST /upload: a multipart "file" is staged to Cloud Storage.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.stager == nil {
		respondError(w, r, unavailable("Upload requires GCS_STAGING_BUCKET"))
		return
	}
	filename, data, err := h.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	session := r.FormValue("user_session_id")
	uri, err := h.stager.StageBytes(r.Context(), filename, data, session)
	if err != nil {
		if errors.Is(err, staging.ErrNotPDF) {
			respondError(w, r, badRequest(err.Error()))
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Staging failed")
		respondError(w, r, &httpError{Status: http.StatusBadGateway, Message: "Failed to store document"})
		return
	}

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{
		"gcs_uri":    uri,
		"filename":   filename,
		"size_bytes": len(data),
	})
}

// OCR handles POST /ocr with either a multipart "file" or {"gcs_uri": ...}.
func (h *Handler) OCR(w http.ResponseWriter, r *http.Request) {
	if h.ocr == nil {
		respondError(w, r, unavailable("OCR is not configured"))
		return
	}

	var src ocr.Source
	if isMultipart(r) {
		_, data, err := h.readUpload(w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		src.Content = data
	} else {
		var body struct {
			GCSURI string `json:"gcs_uri"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			respondError(w, r, err)
			return
		}
		if !staging.IsGCSURI(body.GCSURI) {
			respondError(w, r, badRequest("gcs_uri must start with gs://"))
			return
		}
		src.GCSURI = body.GCSURI
	}

	res, err := h.ocr.Recognize(r.Context(), src)
	if err != nil {
		respondError(w, r, ocrStatus(err))
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

func ocrStatus(err error) error {
	switch {
	case errors.Is(err, ocr.ErrInvalidPDF),
		errors.Is(err, ocr.ErrPDFTooLarge),
		errors.Is(err, ocr.ErrTooManyPages),
		errors.Is(err, ocr.ErrNoSource):
		return badRequest(err.Error())
	case errors.Is(err, ocr.ErrEmptyDocument):
		return &httpError{Status: http.StatusUnprocessableEntity, Message: err.Error()}
	}
	return &httpError{Status: http.StatusBadGateway, Message: err.Error()}
}

// DocAIConfig handles GET /docai/config.
func (h *Handler) DocAIConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		respondError(w, r, unavailable("No configuration loaded"))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"project_id":                   h.cfg.GoogleCloudProject,
		"location":                     h.cfg.GoogleCloudLocation,
		"default_processor_id":         h.cfg.DocumentAIProcessorID,
		"processor_version":            h.cfg.DocumentAIProcessorVersion,
		"default_confidence_threshold": h.cfg.ConfidenceThreshold,
		"staging_bucket":               h.cfg.GCSStagingBucket,
		"native_pdf_parsing":           h.cfg.EnableNativePDFParsing,
	})
}

// Parse handles POST /docai/parse. Malformed requests get 400; processing
// failures come back as 200 with success=false.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req models.ParseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.Validate(false); err != nil {
		respondError(w, r, badRequest(err.Error()))
		return
	}
	respondJSON(w, r, http.StatusOK, h.svc.Parse(r.Context(), req))
}

type batchParseRequest struct {
	GCSURIs                []string `json:"gcs_uris"`
	ProcessorID            string   `json:"processor_id"`
	ConfidenceThreshold    *float64 `json:"confidence_threshold"`
	EnableNativePDFParsing bool     `json:"enable_native_pdf_parsing"`
	IncludeRawResponse     bool     `json:"include_raw_response"`
	services.BatchOptions
}

// ParseBatch handles POST /docai/parse/batch.
func (h *Handler) ParseBatch(w http.ResponseWriter, r *http.Request) {
	var body batchParseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	switch {
	case len(body.GCSURIs) == 0:
		respondError(w, r, badRequest("No GCS URIs provided"))
		return
	case len(body.GCSURIs) > MaxBatchSize:
		respondError(w, r, badRequest(fmt.Sprintf("Batch size limited to %d documents", MaxBatchSize)))
		return
	}

	reqs := make([]models.ParseRequest, len(body.GCSURIs))
	for i, uri := range body.GCSURIs {
		reqs[i] = models.ParseRequest{
			GCSURI:                 uri,
			ProcessorID:            body.ProcessorID,
			ConfidenceThreshold:    body.ConfidenceThreshold,
			EnableNativePDFParsing: body.EnableNativePDFParsing,
			IncludeRawResponse:     body.IncludeRawResponse,
		}
		if err := reqs[i].Validate(false); err != nil {
			respondError(w, r, badRequest(fmt.Sprintf("gcs_uris[%d]: %v", i, err)))
			return
		}
	}

	respondJSON(w, r, http.StatusOK, h.svc.ParseBatch(r.Context(), reqs, body.BatchOptions))
}

// Pipeline handles POST /pipeline with a multipart "file" or a JSON body
// naming a gs:// source.
func (h *Handler) Pipeline(w http.ResponseWriter, r *http.Request) {
	var req services.PipelineRequest
	if isMultipart(r) {
		filename, data, err := h.readUpload(w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		req = services.PipelineRequest{
			Filename:      filename,
			Content:       data,
			UserSessionID: r.FormValue("user_session_id"),
			ProcessorID:   r.FormValue("processor_id"),
		}
		if v := r.FormValue("skip_ocr"); v != "" {
			if req.SkipOCR, err = strconv.ParseBool(v); err != nil {
				respondError(w, r, badRequest("skip_ocr must be a boolean"))
				return
			}
		}
		if v := r.FormValue("confidence_threshold"); v != "" {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				respondError(w, r, badRequest("confidence_threshold must be a number"))
				return
			}
			req.ConfidenceThreshold = &t
		}
	} else {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if !staging.IsGCSURI(req.Source) {
			respondError(w, r, badRequest("source must start with gs://"))
			return
		}
	}
	if t := req.ConfidenceThreshold; t != nil && (*t < 0 || *t > 1) {
		respondError(w, r, badRequest("confidence_threshold must be between 0.0 and 1.0"))
		return
	}

	respondJSON(w, r, http.StatusOK, h.svc.Run(r.Context(), req))
}

// PipelineStatus handles GET /pipeline/{id}/status.
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := h.svc.Status(id)
	if !ok {
		respondError(w, r, notFound(fmt.Sprintf("Pipeline %s not found or already completed", id)))
		return
	}
	respondJSON(w, r, http.StatusOK, st)
}

type resultSummary struct {
	PipelineID          string  `json:"pipeline_id"`
	Success             bool    `json:"success"`
	Message             string  `json:"message"`
	Label               string  `json:"label"`
	Score               float64 `json:"score"`
	Confidence          string  `json:"confidence"`
	NeedsReview         bool    `json:"needs_review"`
	PageCount           int64   `json:"page_count"`
	EntityCount         int64   `json:"entity_count"`
	ClauseCount         int64   `json:"clause_count"`
	KeyValueCount       int64   `json:"key_value_count"`
	KAGInputPath        string  `json:"kag_input_path"`
	TotalProcessingTime float64 `json:"total_processing_time"`
	WarningCount        int64   `json:"warning_count"`
	CompletedAt         string  `json:"completed_at"`
}

// Results handles GET /results/{id}. ?full=true returns the stored result
// as is; otherwise a summary is read out of it.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := h.svc.ResultJSON(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPipelineNotFound) {
			respondError(w, r, notFound(fmt.Sprintf("Results for pipeline %s not found", id)))
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Str("pipeline_id", id).Msg("Failed to read pipeline result")
		respondError(w, r, internalError("Failed to read pipeline result"))
		return
	}

	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		respondRaw(w, http.StatusOK, data)
		return
	}

	res := gjson.ParseBytes(data)
	respondJSON(w, r, http.StatusOK, resultSummary{
		PipelineID:          res.Get("pipeline_id").String(),
		Success:             res.Get("success").Bool(),
		Message:             res.Get("message").String(),
		Label:               res.Get("classification.label").String(),
		Score:               res.Get("classification.score").Float(),
		Confidence:          res.Get("classification.confidence").String(),
		NeedsReview:         res.Get("document.needs_review").Bool(),
		PageCount:           res.Get("document.metadata.page_count").Int(),
		EntityCount:         res.Get("document.named_entities.#").Int(),
		ClauseCount:         res.Get("document.clauses.#").Int(),
		KeyValueCount:       res.Get("document.key_value_pairs.#").Int(),
		KAGInputPath:        res.Get("kag_input_path").String(),
		TotalProcessingTime: res.Get("total_processing_time").Float(),
		WarningCount:        res.Get("warnings.#").Int(),
		CompletedAt:         res.Get("completed_at").String(),
	})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(fmt.Sprintf("Invalid JSON body: %v", err))
	}
	return nil
}

// readUpload returns the name and content of the multipart "file" field.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	tooLarge := &httpError{
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("File size exceeds %d bytes", h.maxUpload),
	}
	if r.ContentLength > h.maxUpload+multipartOverhead {
		return "", nil, tooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, tooLarge
		}
		return "", nil, badRequest("Invalid form data")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, badRequest("No file provided")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return "", nil, badRequest("Only PDF files are supported")
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return "", nil, internalError("Failed to read file")
	}
	switch {
	case int64(len(data)) > h.maxUpload:
		return "", nil, tooLarge
	case len(data) == 0:
		return "", nil, badRequest("Uploaded file is empty")
	}
	return header.Filename, data, nil
}
