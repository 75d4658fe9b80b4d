package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shrimpsizemoose/labsync/internal/legacy"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

// XLSXSink writes <dir>/YYYY-MM-DD.xlsx in the legacy day layout, so the
// files stay readable by the importer.
type XLSXSink struct {
	dir string
}

func NewXLSXSink(dir string) (*XLSXSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &XLSXSink{dir: dir}, nil
}

func (s *XLSXSink) Name() string {
	return "xlsx"
}

func (s *XLSXSink) WriteDay(_ context.Context, day string, rows []models.Reservation) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, legacy.DayRow(r))
	}
	return legacy.WriteSheet(filepath.Join(s.dir, legacy.DayFile(day)), day, legacy.DayColumns, values)
}
