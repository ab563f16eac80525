package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	attached := zerolog.New(&buf).With().Str("request_id", "req-1").Logger()

	tests := []struct {
		name     string
		ctx      context.Context
		attached bool
	}{
		{"attached logger", NewContext(context.Background(), attached), true},
		{"no logger", context.Background(), false},
		{"disabled logger", NewContext(context.Background(), zerolog.Nop()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			l := FromContext(tt.ctx)
			if l == nil {
				t.Fatal("FromContext() = nil")
			}
			if !tt.attached {
				if l != &log.Logger {
					t.Error("FromContext() did not fall back to the global logger")
				}
				return
			}
			l.Info().Msg("handled")
			if out := buf.String(); !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, "handled") {
				t.Errorf("output = %q", out)
			}
		})
	}
}

func TestWithDocumentID(t *testing.T) {
	var buf bytes.Buffer
	l := WithBatchID(WithDocumentID(zerolog.New(&buf), "doc-1"), "batch-1")
	l.Info().Msg("parsed")
	for _, want := range []string{`"document_id":"doc-1"`, `"batch_id":"batch-1"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q missing %s", buf.String(), want)
		}
	}
}
