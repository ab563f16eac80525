// Package staging copies local PDFs into a Cloud Storage bucket so Document AI
// and Vision can read them by gs:// URI.
package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docparse/internal/logger"
)

var (
	// ErrNotPDF is returned for inputs without a .pdf extension.
	ErrNotPDF = errors.New("only PDF files are supported")

	// ErrNoBucket is returned when staging is attempted without a bucket.
	ErrNoBucket = errors.New("no staging bucket configured")
)

// Uploader writes one object.
type Uploader interface {
	Upload(ctx context.Context, bucket, object string, r io.Reader, contentType string) error
	Close() error
}

// Stager uploads documents under <session>/uploads/ in one bucket.
type Stager struct {
	bucket   string
	uploader Uploader
	log      zerolog.Logger
}

// NewStager returns a Stager for bucket. A gs:// prefix on bucket is ignored.
func NewStager(bucket string, uploader Uploader) (*Stager, error) {
	bucket = strings.TrimSuffix(strings.TrimPrefix(bucket, "gs://"), "/")
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &Stager{
		bucket:   bucket,
		uploader: uploader,
		log:      logger.WithComponent("staging"),
	}, nil
}

// IsGCSURI reports whether path is already a gs:// URI.
func IsGCSURI(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// Stage returns input unchanged when it is a gs:// URI; otherwise it uploads
// the local PDF and returns its new URI.
func (s *Stager) Stage(ctx context.Context, input, session string) (string, error) {
	if IsGCSURI(input) {
		s.log.Debug().Str("uri", input).Msg("Input already in Cloud Storage")
		return input, nil
	}

	info, err := os.Stat(input)
	if err != nil {
		return "", fmt.Errorf("local file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is not a file: %s", input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", input, err)
	}
	return s.StageBytes(ctx, filepath.Base(input), data, session)
}

// StageBytes uploads data as filename and returns its gs:// URI.
func (s *Stager) StageBytes(ctx context.Context, filename string, data []byte, session string) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "", fmt.Errorf("%w, got %q", ErrNotPDF, filepath.Ext(filename))
	}
	object := ObjectName(session, filename, uuid.NewString()[:8])

	s.log.Info().
		Str("bucket", s.bucket).
		Str("object", object).
		Int("bytes", len(data)).
		Msg("Staging document to Cloud Storage")

	if err := s.uploader.Upload(ctx, s.bucket, object, bytes.NewReader(data), "application/pdf"); err != nil {
		return "", fmt.Errorf("stage %s: %w", filename, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// ObjectName builds <session>/uploads/<uid>_<filename>. An empty session becomes "anonymous".
func ObjectName(session, filename, uid string) string {
	if session == "" {
		session = "anonymous"
	}
	name := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	return fmt.Sprintf("%s/uploads/%s_%s", session, uid, name)
}

// Close releases the uploader.
func (s *Stager) Close() error {
	return s.uploader.Close()
}

// GCSUploader writes objects with the Cloud Storage client.
type GCSUploader struct {
	client *storage.Client
}

// NewGCSUploader creates a Cloud Storage client.
func NewGCSUploader(ctx context.Context, opts ...option.ClientOption) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client}, nil
}

// Upload streams r into bucket/object.
func (u *GCSUploader) Upload(ctx context.Context, bucket, object string, r io.Reader, contentType string) error {
	w := u.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close closes the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
