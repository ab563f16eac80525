// Package pdftext reads the embedded text layer of a PDF without any cloud
// service. Scanned PDFs have no text layer and yield ErrNoText.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"docparse/internal/logger"
)

// ErrNoText is returned when no page produced any text.
var ErrNoText = errors.New("no text could be extracted from PDF")

// Result is the text layer of a PDF.
type Result struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	// EmptyPages lists 1-based pages without extractable text.
	EmptyPages []int `json:"empty_pages"`
}

// Extract reads the plain text of every page. Pages that fail to decode are
// logged and counted as empty.
func Extract(data []byte) (res *Result, err error) {
	log := logger.WithComponent("pdftext")

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	res = &Result{PageCount: reader.NumPage(), EmptyPages: []int{}}
	var pages []string
	for i := 1; i <= res.PageCount; i++ {
		text := pageText(log, reader, i)
		if strings.TrimSpace(text) == "" {
			res.EmptyPages = append(res.EmptyPages, i)
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	res.Text = strings.Join(pages, "\n\n")
	if res.Text == "" {
		return res, ErrNoText
	}

	log.Debug().
		Int("pages", res.PageCount).
		Int("empty_pages", len(res.EmptyPages)).
		Int("chars", len(res.Text)).
		Msg("PDF text layer extracted")
	return res, nil
}

func pageText(log zerolog.Logger, reader *pdf.Reader, n int) (text string) {
	// The decoder panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Int("page", n).Interface("panic", r).Msg("Failed to decode PDF page")
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		log.Warn().Err(err).Int("page", n).Msg("Failed to read PDF page text")
		return ""
	}
	return text
}
