package staging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

type memUploader struct {
	objects map[string][]byte
}

func (m *memUploader) Upload(_ context.Context, bucket, object string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+object] = data
	return nil
}

func (m *memUploader) Close() error { return nil }

func TestStageLocalFile(t *testing.T) {
	up := &memUploader{objects: map[string][]byte{}}
	s, err := NewStager("gs://docs-bucket/", up)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "policy doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	uri, err := s.Stage(context.Background(), path, "session-1")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	re := regexp.MustCompile(`^gs://docs-bucket/session-1/uploads/[0-9a-f-]{8}_policy_doc\.pdf$`)
	if !re.MatchString(uri) {
		t.Errorf("uri = %q", uri)
	}
	if len(up.objects) != 1 {
		t.Errorf("objects = %d, want 1", len(up.objects))
	}
}

func TestStagePassthroughAndErrors(t *testing.T) {
	up := &memUploader{objects: map[string][]byte{}}
	s, _ := NewStager("bucket", up)

	uri, err := s.Stage(context.Background(), "gs://other/doc.pdf", "s")
	if err != nil || uri != "gs://other/doc.pdf" {
		t.Errorf("Stage(gs://) = %q, %v", uri, err)
	}

	txt := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stage(context.Background(), txt, "s"); !errors.Is(err, ErrNotPDF) {
		t.Errorf("Stage(.txt) error = %v, want ErrNotPDF", err)
	}
	if _, err := s.Stage(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "s"); err == nil {
		t.Error("Stage(missing) error = nil")
	}
	if _, err := s.Stage(context.Background(), t.TempDir(), "s"); err == nil {
		t.Error("Stage(dir) error = nil")
	}
	if len(up.objects) != 0 {
		t.Errorf("unexpected uploads: %v", up.objects)
	}
}

func TestNewStagerRequiresBucket(t *testing.T) {
	if _, err := NewStager("gs://", &memUploader{}); !errors.Is(err, ErrNoBucket) {
		t.Errorf("NewStager() error = %v, want ErrNoBucket", err)
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("", "/tmp/a b.pdf", "1234abcd"); got != "anonymous/uploads/1234abcd_a_b.pdf" {
		t.Errorf("ObjectName() = %q", got)
	}
}
