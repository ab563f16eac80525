package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docparse/internal/logger"
)

type Config struct {
	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	GCSStagingBucket           string
	DocumentAITimeout          time.Duration

	// Parsing
	ConfidenceThreshold    float64
	EnableNativePDFParsing bool
	ArtifactsDir           string
	VertexEmbeddingEnabled bool
	OCRLanguageHints       []string

	// Classifier
	ClassifierTaxonomyPath string
	ClassifierDebug        bool

	// Batch
	BatchMaxConcurrent int
	BatchMaxAttempts   int
	BatchRetryBase     time.Duration

	// HTTP server
	HTTPAddr       string
	MaxUploadBytes int64

	// Optional S3-compatible artifact mirror
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Optional Google Sheets review queue
	ReviewSheetURL  string
	ReviewSheetName string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment. Only values that are
// malformed are rejected here; cloud settings are checked by RequireCloud
// when a command actually needs them.
func Load() (*Config, error) {
	config := &Config{
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GCSStagingBucket:           getEnv("GCS_STAGING_BUCKET", ""),
		DocumentAITimeout:          time.Duration(getEnvInt("DOCUMENT_AI_TIMEOUT_SECONDS", 120)) * time.Second,
		ConfidenceThreshold:        getEnvFloat("CONFIDENCE_THRESHOLD", 0.7),
		EnableNativePDFParsing:     getEnvBool("ENABLE_NATIVE_PDF_PARSING", true),
		ArtifactsDir:               getEnv("ARTIFACTS_DIR", "artifacts"),
		VertexEmbeddingEnabled:     getEnvBool("VERTEX_EMBEDDING_ENABLED", false),
		OCRLanguageHints:           getEnvList("OCR_LANGUAGE_HINTS", []string{"en"}),
		ClassifierTaxonomyPath:     getEnv("CLASSIFIER_TAXONOMY", ""),
		ClassifierDebug:            getEnvBool("CLASSIFIER_DEBUG", false),
		BatchMaxConcurrent:         getEnvInt("BATCH_MAX_CONCURRENT", 3),
		BatchMaxAttempts:           getEnvInt("BATCH_MAX_ATTEMPTS", 3),
		BatchRetryBase:             time.Duration(getEnvInt("BATCH_RETRY_BASE_MS", 1000)) * time.Millisecond,
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		MaxUploadBytes:             int64(getEnvInt("MAX_UPLOAD_BYTES", 20*1024*1024)),
		S3Endpoint:                 getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:              getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:          getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:               getEnv("S3_BUCKET", ""),
		S3UseSSL:                   getEnvBool("S3_USE_SSL", true),
		ReviewSheetURL:             getEnv("REVIEW_SHEET_URL", ""),
		ReviewSheetName:            getEnv("REVIEW_SHEET_NAME", "Review_Queue"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}
	if c.BatchMaxConcurrent < 1 {
		return fmt.Errorf("BATCH_MAX_CONCURRENT must be positive, got %d", c.BatchMaxConcurrent)
	}
	if c.BatchMaxAttempts < 1 {
		return fmt.Errorf("BATCH_MAX_ATTEMPTS must be positive, got %d", c.BatchMaxAttempts)
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("ARTIFACTS_DIR must not be empty")
	}
	return nil
}

// RequireCloud checks the settings needed to call Document AI.
func (c *Config) RequireCloud() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required")
	}
	return nil
}

// RequireStaging checks the settings needed to upload local files to GCS.
func (c *Config) RequireStaging() error {
	if c.GCSStagingBucket == "" {
		return fmt.Errorf("GCS_STAGING_BUCKET is required to process local files")
	}
	return nil
}

// MirrorEnabled reports whether artifacts should be copied to S3.
func (c *Config) MirrorEnabled() bool {
	return c.S3Endpoint != "" && c.S3BucketName != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
