package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type recordingMirror struct {
	keys []string
	fail bool
}

func (m *recordingMirror) Upload(_ context.Context, key string, _ []byte, _ string) error {
	m.keys = append(m.keys, key)
	if m.fail {
		return errors.New("mirror down")
	}
	return nil
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	p, err := s.WriteJSON(context.Background(), "diagnostics.json", map[string]int{"clauses": 2})
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(dir, "diagnostics.json") {
		t.Errorf("path = %q", p)
	}

	var got map[string]int
	if err := s.ReadJSON("diagnostics.json", &got); err != nil {
		t.Fatal(err)
	}
	if got["clauses"] != 2 {
		t.Errorf("got %v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSubAndMirror(t *testing.T) {
	m := &recordingMirror{fail: true}
	s := New(t.TempDir(), m).Sub("run-1")

	if _, err := s.WriteJSON(context.Background(), "kag_input.json", struct{}{}); err != nil {
		t.Fatalf("mirror failure leaked: %v", err)
	}
	if len(m.keys) != 1 || m.keys[0] != "run-1/kag_input.json" {
		t.Errorf("mirror keys = %v", m.keys)
	}
	if _, err := os.Stat(s.Path("kag_input.json")); err != nil {
		t.Error(err)
	}
}

func TestWriteJSONUnmarshalable(t *testing.T) {
	s := New(t.TempDir(), nil)
	if _, err := s.WriteJSON(context.Background(), "bad.json", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

type memMirror struct {
	objects map[string][]byte
}

func (m *memMirror) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memMirror) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestReadFallsBackToMirror(t *testing.T) {
	ctx := context.Background()
	m := &memMirror{objects: map[string][]byte{}}
	s := New(t.TempDir(), m).Sub("run-2")

	if _, err := s.WriteJSON(ctx, "pipeline_result.json", map[string]bool{"success": true}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(s.Path("pipeline_result.json")); err != nil {
		t.Fatal(err)
	}

	data, err := s.Read(ctx, "pipeline_result.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != string(m.objects["run-2/pipeline_result.json"]) {
		t.Errorf("Read() = %s", data)
	}

	if _, err := s.Read(ctx, "missing.json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v, want ErrNotExist", err)
	}
	if _, err := New(t.TempDir(), nil).Read(ctx, "missing.json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read without mirror error = %v, want ErrNotExist", err)
	}
}
