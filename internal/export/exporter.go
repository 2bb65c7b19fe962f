// Package export writes an xlsx snapshot of the content sheets and the sync
// journal for offline review.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contentops/internal/domain"
	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const intentsSheet = "Sync_Intents"

// Sheets copied into the workbook, in tab order.
var snapshotSheets = []string{
	models.SheetCalendar,
	models.SheetFacebookDB,
	models.SheetYoutubeDB,
	models.SheetHistory,
}

var intentHeaders = []string{
	"ID", "Media drive ID", "Platform", "Action", "Schedule time",
	"Status", "Last error", "Attempts", "Created", "Updated",
}

type Exporter struct {
	store   sheets.Store
	journal domain.IntentJournal
	dir     string
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewExporter(store sheets.Store, journal domain.IntentJournal, dir string, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{store: store, journal: journal, dir: dir, logger: logger, now: time.Now}
}

// Export writes the workbook into the export directory and returns its path.
// Access tokens are blanked.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return "", fmt.Errorf("error creating style: %w", err)
	}

	for _, sheet := range snapshotSheets {
		if err := e.writeSheet(ctx, f, sheet, header); err != nil {
			return "", err
		}
	}
	if err := e.writeIntents(ctx, f, header); err != nil {
		return "", err
	}

	if idx, err := f.GetSheetIndex(models.SheetCalendar); err == nil {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("contentops_%s.xlsx", e.now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel export created")
	return filePath, nil
}

func (e *Exporter) writeSheet(ctx context.Context, f *excelize.File, sheet string, header int) error {
	layout, err := sheets.LayoutFor(sheet)
	if err != nil {
		return err
	}
	rows, err := e.store.Rows(ctx, sheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	masked := make(map[int]bool)
	titles := make([]any, len(layout.Columns))
	for i, col := range layout.Columns {
		titles[i] = col
		if strings.HasSuffix(strings.ToLower(col), "access_token") {
			masked[i] = true
		}
	}
	if err := writeRow(f, sheet, 1, titles); err != nil {
		return err
	}
	_ = f.SetCellStyle(sheet, "A1", layout.LastColumn()+"1", header)

	for i, raw := range rows {
		cells, err := layout.Encode(raw)
		if err != nil {
			e.logger.Warn().Err(err).Str("sheet", sheet).Int("position", i).Msg("Skipping unreadable row")
			continue
		}
		for col := range masked {
			cells[col] = ""
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheet, "A", layout.LastColumn(), 18)
	return nil
}

func (e *Exporter) writeIntents(ctx context.Context, f *excelize.File, header int) error {
	intents, err := e.journal.ListIntents(ctx, "")
	if err != nil {
		return err
	}
	if _, err := f.NewSheet(intentsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	titles := make([]any, len(intentHeaders))
	for i, h := range intentHeaders {
		titles[i] = h
	}
	if err := writeRow(f, intentsSheet, 1, titles); err != nil {
		return err
	}
	_ = f.SetCellStyle(intentsSheet, "A1", sheets.ColumnLetter(len(intentHeaders)-1)+"1", header)

	for i, in := range intents {
		lastError := ""
		if in.LastError != nil {
			lastError = *in.LastError
		}
		row := []any{
			in.ID, in.MediaDriveID, string(in.Platform), in.Action, in.ScheduleTime,
			in.Status, lastError, in.Attempts,
			in.CreatedAt.Format("02.01.2006 15:04"), in.UpdatedAt.Format("02.01.2006 15:04"),
		}
		if err := writeRow(f, intentsSheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(intentsSheet, "A", "A", 38)
	_ = f.SetColWidth(intentsSheet, "B", "J", 18)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
