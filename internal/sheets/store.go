// Package sheets holds the row storage contract shared by the HTTP and Google
// backends, the sheet column layouts and a keyed table on top of positional
// addressing.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("row not found")

// Store addresses rows by zero-based data position in the latest fetch.
// Positions are only valid until the next write to the same sheet.
type Store interface {
	Rows(ctx context.Context, sheet string) ([]json.RawMessage, error)
	Append(ctx context.Context, sheet string, row any) error
	Update(ctx context.Context, sheet string, pos int, row any) error
	Delete(ctx context.Context, sheet string, pos int, deleteDrive bool) error
}

// Decode unmarshals every raw row into T.
func Decode[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadAll fetches the sheet and decodes it into T.
func ReadAll[T any](ctx context.Context, store Store, sheet string) ([]T, error) {
	rows, err := store.Rows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	out, err := Decode[T](rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sheet, err)
	}
	return out, nil
}
