package export

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/legacy"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

// GSheetSink keeps one tab per day in a spreadsheet.
type GSheetSink struct {
	sheetID       string
	sheetsService *sheets.Service
}

func NewGSheetSink(ctx context.Context, cfg app.GSheetConfig) (*GSheetSink, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GSheetSink{sheetID: cfg.SheetID, sheetsService: svc}, nil
}

func (s *GSheetSink) Name() string {
	return "gsheet:" + s.sheetID
}

func (s *GSheetSink) ensureTab(ctx context.Context, title string) error {
	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.sheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return nil
		}
	}

	_, err = s.sheetsService.Spreadsheets.BatchUpdate(s.sheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add tab %s: %w", title, err)
	}
	return nil
}

// sheetRange builds an A1 range on tab title. Titles like 2024-05-11 must
// be quoted, embedded quotes are doubled.
func sheetRange(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

func sheetValues(rows []models.Reservation) [][]interface{} {
	header := make([]interface{}, len(legacy.DayColumns))
	for i, c := range legacy.DayColumns {
		header[i] = c
	}
	values := [][]interface{}{header}
	for _, r := range rows {
		values = append(values, legacy.DayRow(r))
	}
	return values
}

func (s *GSheetSink) WriteDay(ctx context.Context, day string, rows []models.Reservation) error {
	if err := s.ensureTab(ctx, day); err != nil {
		return err
	}

	_, err := s.sheetsService.Spreadsheets.Values.Clear(s.sheetID, sheetRange(day, "A:Z"),
		&sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear tab %s: %w", day, err)
	}

	_, err = s.sheetsService.Spreadsheets.Values.Update(s.sheetID, sheetRange(day, "A1"),
		&sheets.ValueRange{Values: sheetValues(rows)}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update tab %s: %w", day, err)
	}
	return nil
}
