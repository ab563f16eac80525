// Package artifacts writes JSON outputs of a run to a local directory and,
// optionally, mirrors them to an object store.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"docparse/internal/logger"
)

// Mirror receives a copy of every artifact written through a Store.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Source is a Mirror that can return what it stored.
type Source interface {
	Mirror
	Download(ctx context.Context, key string) ([]byte, error)
}

// Store is rooted at one directory. The zero value is not usable; use New.
type Store struct {
	dir    string
	prefix string
	mirror Mirror
	log    zerolog.Logger
}

// New returns a Store writing under dir. mirror may be nil.
func New(dir string, mirror Mirror) *Store {
	return &Store{
		dir:    dir,
		mirror: mirror,
		log:    logger.WithComponent("artifacts"),
	}
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Sub returns a Store rooted at dir/name, sharing the mirror.
func (s *Store) Sub(name string) *Store {
	return &Store{
		dir:    filepath.Join(s.dir, name),
		prefix: path.Join(s.prefix, name),
		mirror: s.mirror,
		log:    s.log.With().Str("run", name).Logger(),
	}
}

// Path returns the local path for name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// WriteJSON marshals v with indentation and writes it atomically to name.
// A mirror failure is logged; only local write errors are returned.
func (s *Store) WriteJSON(ctx context.Context, name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.Write(ctx, name, data, "application/json")
}

// Write stores data under name via a temp file and rename.
func (s *Store) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	dest := s.Path(name)
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", name, err)
	}

	s.log.Debug().Str("path", dest).Int("bytes", len(data)).Msg("Artifact written")

	if s.mirror != nil {
		key := path.Join(s.prefix, name)
		if err := s.mirror.Upload(ctx, key, data, contentType); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Artifact mirror upload failed")
		}
	}

	return dest, nil
}

// ReadJSON decodes name into v.
func (s *Store) ReadJSON(name string, v interface{}) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Read returns the content of name. A file missing locally is fetched from
// the mirror when the mirror is a Source.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return data, err
	}

	src, ok := s.mirror.(Source)
	if !ok {
		return nil, err
	}
	key := path.Join(s.prefix, name)
	remote, dlErr := src.Download(ctx, key)
	if dlErr != nil {
		s.log.Warn().Err(dlErr).Str("key", key).Msg("Artifact not found in mirror")
		return nil, err
	}
	return remote, nil
}
