package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIDENCE_THRESHOLD", "BATCH_MAX_CONCURRENT", "BATCH_MAX_ATTEMPTS", "ARTIFACTS_DIR", "GOOGLE_CLOUD_LOCATION"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.ConfidenceThreshold)
	}
	if cfg.BatchMaxConcurrent != 3 {
		t.Errorf("BatchMaxConcurrent = %d, want 3", cfg.BatchMaxConcurrent)
	}
	if cfg.GoogleCloudLocation != "us" {
		t.Errorf("GoogleCloudLocation = %q, want us", cfg.GoogleCloudLocation)
	}
	if cfg.BatchRetryBase != time.Second {
		t.Errorf("BatchRetryBase = %v, want 1s", cfg.BatchRetryBase)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestRequireCloud(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireCloud(); err == nil {
		t.Fatal("expected error without project")
	}
	cfg.GoogleCloudProject = "p"
	cfg.DocumentAIProcessorID = "abc"
	if err := cfg.RequireCloud(); err != nil {
		t.Fatalf("RequireCloud() error = %v", err)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "yes")
	if !getEnvBool("X_FLAG", false) {
		t.Error("yes should be true")
	}
	t.Setenv("X_FLAG", "off")
	if getEnvBool("X_FLAG", true) {
		t.Error("off should be false")
	}
	t.Setenv("X_FLAG", "maybe")
	if !getEnvBool("X_FLAG", true) {
		t.Error("unknown value should fall back to default")
	}
}

func TestLoadLanguageHints(t *testing.T) {
	t.Setenv("OCR_LANGUAGE_HINTS", " en, hi ,,ta")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.OCRLanguageHints) != 3 || cfg.OCRLanguageHints[1] != "hi" {
		t.Errorf("OCRLanguageHints = %v", cfg.OCRLanguageHints)
	}
}
