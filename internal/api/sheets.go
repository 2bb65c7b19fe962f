package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func sheetPath(sheet string) string {
	return "/api/v2/sheets/" + url.PathEscape(sheet)
}

func rowPath(sheet string, pos int) string {
	return sheetPath(sheet) + "/" + strconv.Itoa(pos)
}

// Rows returns every data row of the sheet in server order.
func (c *Client) Rows(ctx context.Context, sheet string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: sheetPath(sheet)}, &rows); err != nil {
		return nil, fmt.Errorf("list %s: %w", sheet, err)
	}
	return rows, nil
}

// Append adds row at the end of the sheet.
func (c *Client) Append(ctx context.Context, sheet string, row any) error {
	if err := c.doJSON(ctx, http.MethodPost, sheetPath(sheet), row, nil); err != nil {
		return fmt.Errorf("append %s: %w", sheet, err)
	}
	return nil
}

// Update replaces the row at pos.
func (c *Client) Update(ctx context.Context, sheet string, pos int, row any) error {
	if pos < 0 {
		return fmt.Errorf("update %s: negative position %d", sheet, pos)
	}
	if err := c.doJSON(ctx, http.MethodPut, rowPath(sheet, pos), row, nil); err != nil {
		return fmt.Errorf("update %s/%d: %w", sheet, pos, err)
	}
	return nil
}

// Delete removes the row at pos. deleteDrive asks the server to remove the
// drive folder linked to the row as well.
func (c *Client) Delete(ctx context.Context, sheet string, pos int, deleteDrive bool) error {
	if pos < 0 {
		return fmt.Errorf("delete %s: negative position %d", sheet, pos)
	}
	var q url.Values
	if deleteDrive {
		q = url.Values{"delete_drive": []string{"true"}}
	}
	if err := c.do(ctx, request{method: http.MethodDelete, path: rowPath(sheet, pos), query: q}, nil); err != nil {
		return fmt.Errorf("delete %s/%d: %w", sheet, pos, err)
	}
	return nil
}
