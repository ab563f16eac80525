package clients

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docparse/internal/config"
)

func TestCredentialOptions(t *testing.T) {
	tests := []struct {
		name       string
		inline     string
		file       string
		wantOption bool
	}{
		{"adc", "", "", false},
		{"inline", `{"type":"service_account"}`, "", true},
		{"file", "", "/tmp/key.json", true},
		{"both", `{"type":"service_account"}`, "/tmp/key.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_CREDENTIALS", tt.inline)
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", tt.file)
			if got := len(CredentialOptions()) == 1; got != tt.wantOption {
				t.Errorf("CredentialOptions() returned option = %v, want %v", got, tt.wantOption)
			}
		})
	}
}

func TestCredentialsJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(file, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := CredentialsJSON(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("CredentialsJSON() error = %v, want ErrMissingCredentials", err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	if got, err := CredentialsJSON(); err != nil || string(got) != `{"from":"file"}` {
		t.Errorf("CredentialsJSON() = %s, %v", got, err)
	}

	t.Setenv("GOOGLE_CREDENTIALS", `{"from":"env"}`)
	if got, err := CredentialsJSON(); err != nil || string(got) != `{"from":"env"}` {
		t.Errorf("CredentialsJSON() = %s, %v", got, err)
	}
}

func TestNewOffline(t *testing.T) {
	cfg := &config.Config{
		ArtifactsDir:          t.TempDir(),
		GoogleCloudProject:    "proj",
		DocumentAIProcessorID: "proc",
		ReviewSheetURL:        "https://docs.google.com/spreadsheets/d/abc/edit",
	}
	r, err := New(context.Background(), cfg, Offline())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	if r.Classifier == nil || r.Parser == nil || r.KAG == nil || r.Artifacts == nil {
		t.Fatalf("local components missing: %+v", r)
	}
	if r.DocAI != nil || r.OCR != nil || r.Stager != nil || r.Review != nil {
		t.Error("offline registry created cloud clients")
	}
	if r.Artifacts.Dir() != cfg.ArtifactsDir {
		t.Errorf("Artifacts.Dir() = %q", r.Artifacts.Dir())
	}
}

func TestNewBadTaxonomy(t *testing.T) {
	cfg := &config.Config{
		ArtifactsDir:           t.TempDir(),
		ClassifierTaxonomyPath: filepath.Join(t.TempDir(), "missing.yaml"),
	}
	if _, err := New(context.Background(), cfg, Offline()); err == nil {
		t.Fatal("expected error for missing taxonomy file")
	}
}

type keyMirror struct{ keys []string }

func (m *keyMirror) Upload(_ context.Context, key string, _ []byte, _ string) error {
	m.keys = append(m.keys, key)
	return nil
}

func TestNewWithMirror(t *testing.T) {
	cfg := &config.Config{ArtifactsDir: t.TempDir()}
	m := &keyMirror{}
	r, err := New(context.Background(), cfg, Offline(), WithMirror(m))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	if _, err := r.Artifacts.Sub("p1").WriteJSON(context.Background(), "kag_input.json", map[string]int{}); err != nil {
		t.Fatal(err)
	}
	if len(m.keys) != 1 || m.keys[0] != "p1/kag_input.json" {
		t.Errorf("mirrored keys = %v", m.keys)
	}
}
