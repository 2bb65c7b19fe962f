package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"contentops/internal/config"
	"contentops/internal/sheets"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// SheetsService stores rows directly in the spreadsheet with the same
// layouts the dashboard server uses. Row 1 of every tab is the header.
type SheetsService struct {
	sheets        *gsheets.Service
	drive         *drive.Service
	spreadsheetID string
	logger        *zerolog.Logger

	tabsMu sync.RWMutex
	tabs   map[string]int64
}

var _ sheets.Store = (*SheetsService)(nil)

func NewSheetsService(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, gsheets.SpreadsheetsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := jwt.Client(ctx)

	sheetsSrv, err := gsheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	driveSrv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	return newSheetsService(sheetsSrv, driveSrv, cfg, logger), nil
}

func newSheetsService(sheetsSrv *gsheets.Service, driveSrv *drive.Service, cfg config.GoogleConfig, logger *zerolog.Logger) *SheetsService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	tabs := make(map[string]int64, len(cfg.Tabs))
	for name, id := range cfg.Tabs {
		tabs[name] = id
	}
	return &SheetsService{
		sheets:        sheetsSrv,
		drive:         driveSrv,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
		tabs:          tabs,
	}
}

// TestConnection reads the calendar header cell.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.sheets.Spreadsheets.Values.Get(s.spreadsheetID, "Media_Calendar!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns client_email from a service-account key file,
// the address the spreadsheet has to be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *SheetsService) Rows(ctx context.Context, sheet string) ([]json.RawMessage, error) {
	layout, err := sheets.LayoutFor(sheet)
	if err != nil {
		return nil, err
	}

	resp, err := s.sheets.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	if len(resp.Values) <= 1 {
		return []json.RawMessage{}, nil
	}

	rows := make([]json.RawMessage, 0, len(resp.Values)-1)
	for i, values := range resp.Values[1:] {
		raw, err := layout.Decode(values)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", sheet, i, err)
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

func (s *SheetsService) Append(ctx context.Context, sheet string, row any) error {
	layout, err := sheets.LayoutFor(sheet)
	if err != nil {
		return err
	}
	cells, err := layout.Encode(row)
	if err != nil {
		return err
	}

	valueRange := &gsheets.ValueRange{Values: [][]interface{}{cells}}
	_, err = s.sheets.Spreadsheets.Values.Append(s.spreadsheetID, sheet+"!A:A", valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", sheet, err)
	}
	return nil
}

// Update rewrites data row pos, which is sheet row pos+2.
func (s *SheetsService) Update(ctx context.Context, sheet string, pos int, row any) error {
	if pos < 0 {
		return fmt.Errorf("update %s: negative position %d", sheet, pos)
	}
	layout, err := sheets.LayoutFor(sheet)
	if err != nil {
		return err
	}
	cells, err := layout.Encode(row)
	if err != nil {
		return err
	}

	rowNum := pos + 2
	rangeData := fmt.Sprintf("%s!A%d:%s%d", sheet, rowNum, layout.LastColumn(), rowNum)
	valueRange := &gsheets.ValueRange{Values: [][]interface{}{cells}}
	_, err = s.sheets.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", sheet, pos, err)
	}
	return nil
}

// Delete removes data row pos. With deleteDrive the drive item named by the
// row's id column is deleted first; Media_Calendar is the only sheet with one.
func (s *SheetsService) Delete(ctx context.Context, sheet string, pos int, deleteDrive bool) error {
	if pos < 0 {
		return fmt.Errorf("delete %s: negative position %d", sheet, pos)
	}

	if deleteDrive {
		if err := s.deleteDriveItem(ctx, sheet, pos); err != nil {
			return err
		}
	}

	tabID, err := s.tabID(ctx, sheet)
	if err != nil {
		return err
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    tabID,
					Dimension:  "ROWS",
					StartIndex: int64(pos + 1),
					EndIndex:   int64(pos + 2),
				},
			},
		}},
	}
	if _, err := s.sheets.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s/%d: %w", sheet, pos, err)
	}
	return nil
}

func (s *SheetsService) deleteDriveItem(ctx context.Context, sheet string, pos int) error {
	rows, err := s.Rows(ctx, sheet)
	if err != nil {
		return err
	}
	if pos >= len(rows) {
		return fmt.Errorf("delete %s/%d: %w", sheet, pos, sheets.ErrNotFound)
	}

	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rows[pos], &row); err != nil || row.ID == "" {
		s.logger.Warn().Str("sheet", sheet).Int("position", pos).Msg("row has no drive id, skipping drive delete")
		return nil
	}

	if err := s.drive.Files.Delete(row.ID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete drive item %s: %w", row.ID, err)
	}
	s.logger.Info().Str("drive_id", row.ID).Msg("drive item deleted")
	return nil
}

// tabID returns the configured gid or looks it up by title once.
func (s *SheetsService) tabID(ctx context.Context, sheet string) (int64, error) {
	s.tabsMu.RLock()
	id, ok := s.tabs[sheet]
	s.tabsMu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.GetSheetIDByName(ctx, sheet)
	if err != nil {
		return 0, err
	}
	s.tabsMu.Lock()
	s.tabs[sheet] = id
	s.tabsMu.Unlock()
	return id, nil
}

func (s *SheetsService) GetSheetIDByName(ctx context.Context, sheetName string) (int64, error) {
	spreadsheet, err := s.sheets.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", sheetName)
}
