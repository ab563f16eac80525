// Package sheets appends documents that need manual review to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docparse/internal/logger"
	"docparse/pkg/models"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Review"

var headers = []interface{}{
	"File", "Document ID", "Pages", "Mandatory fields found", "Fallback used",
	"Warnings", "Needs review", "Processed at",
}

// columns spans the header row, A to H.
const columns = "A:H"

// ReviewRow is one document awaiting review.
type ReviewRow struct {
	Filename        string
	DocumentID      string
	PageCount       int
	MandatoryFields []string
	FallbackUsed    bool
	Warnings        []string
	NeedsReview     bool
	ProcessedAt     time.Time
}

// RowFromDocument builds the review row for doc.
func RowFromDocument(doc *models.ParsedDocument) ReviewRow {
	meta := doc.Metadata
	row := ReviewRow{
		Filename:    meta.OriginalFilename,
		DocumentID:  meta.DocumentID,
		PageCount:   meta.PageCount,
		Warnings:    doc.ProcessingWarnings,
		NeedsReview: doc.NeedsReview,
		ProcessedAt: meta.ProcessingTimestamp,
	}
	switch found := meta.CustomMetadata["mandatory_fields_found"].(type) {
	case []string:
		row.MandatoryFields = found
	case []interface{}:
		for _, f := range found {
			row.MandatoryFields = append(row.MandatoryFields, fmt.Sprint(f))
		}
	}
	if used, ok := meta.CustomMetadata["fallback_used"].(bool); ok {
		row.FallbackUsed = used
	}
	return row
}

func (r ReviewRow) values() []interface{} {
	return []interface{}{
		r.Filename,
		r.DocumentID,
		r.PageCount,
		strings.Join(r.MandatoryFields, ", "),
		r.FallbackUsed,
		strings.Join(r.Warnings, "; "),
		r.NeedsReview,
		r.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

// ReviewQueue appends rows to one sheet of a spreadsheet.
type ReviewQueue struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// NewReviewQueue authenticates with service account credentials.
func NewReviewQueue(ctx context.Context, sheetURL, sheetName string, credentialsJSON []byte) (*ReviewQueue, error) {
	const op = "NewReviewQueue"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &ReviewQueue{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           logger.WithComponent("sheets"),
	}, nil
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

func extractSpreadsheetID(url string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format: %q", url)
	}
	return m[1], nil
}

// Append adds rows below the existing data, creating the sheet and its
// header row on first use.
func (q *ReviewQueue) Append(ctx context.Context, rows []ReviewRow) error {
	const op = "Append"
	if len(rows) == 0 {
		return nil
	}

	if err := q.ensureSheetWithHeaders(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = r.values()
	}

	_, err := q.svc.Spreadsheets.Values.Append(
		q.spreadsheetID,
		q.sheetName+"!"+columns,
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append rows: %w", op, err)
	}

	q.log.Info().
		Str("sheet", q.sheetName).
		Int("rows", len(values)).
		Msg("Documents added to review queue")
	return nil
}

func (q *ReviewQueue) ensureSheetWithHeaders(ctx context.Context) error {
	spreadsheet, err := q.svc.Spreadsheets.Get(q.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	var sheetID int64
	exists := false
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties.Title == q.sheetName {
			sheetID = sh.Properties.SheetId
			exists = true
			break
		}
	}

	if !exists {
		q.log.Info().Str("sheet", q.sheetName).Msg("Creating review sheet")
		resp, err := q.svc.Spreadsheets.BatchUpdate(q.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: q.sheetName}},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := q.sheetName + "!A1:H1"
	resp, err := q.svc.Spreadsheets.Values.Get(q.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get headers: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = q.svc.Spreadsheets.Values.Update(
		q.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add headers: %w", err)
	}

	if err := q.formatHeaders(ctx, sheetID); err != nil {
		q.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders bolds the header row and freezes it.
func (q *ReviewQueue) formatHeaders(ctx context.Context, sheetID int64) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(headers)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
	_, err := q.svc.Spreadsheets.BatchUpdate(q.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}
